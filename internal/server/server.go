package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/postgen/api"
	"github.com/tributary-ai/postgen/internal/middleware"
	"github.com/tributary-ai/postgen/internal/optimizer"
	"github.com/tributary-ai/postgen/internal/pipeline"
	"github.com/tributary-ai/postgen/internal/routing"
	"github.com/tributary-ai/postgen/internal/security"
	"github.com/tributary-ai/postgen/internal/types"
)

// Server exposes the pipeline over HTTP
type Server struct {
	pipeline   *pipeline.Orchestrator
	router     *routing.Router
	optimizer  *optimizer.Optimizer
	httpServer *http.Server
	logger     *logrus.Logger
	config     *ServerConfig

	securityMiddleware   *middleware.SecurityMiddleware
	validationMiddleware *middleware.ValidationMiddleware
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string                               `yaml:"port"`
	ReadTimeout    time.Duration                        `yaml:"read_timeout"`
	WriteTimeout   time.Duration                        `yaml:"write_timeout"`
	MaxHeaderBytes int                                  `yaml:"max_header_bytes"`
	Security       *middleware.SecurityMiddlewareConfig `yaml:"security"`
	Validation     *middleware.ValidationConfig         `yaml:"validation"`
}

// NewServer creates a new server instance
func NewServer(orchestrator *pipeline.Orchestrator, router *routing.Router, opt *optimizer.Optimizer, config *ServerConfig, logger *logrus.Logger) (*Server, error) {
	s := &Server{
		pipeline:  orchestrator,
		router:    router,
		optimizer: opt,
		logger:    logger,
		config:    config,
	}

	securityConfig := config.Security
	if securityConfig == nil {
		securityConfig = &middleware.SecurityMiddlewareConfig{}
	}
	securityMiddleware, err := middleware.NewSecurityMiddleware(securityConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize security middleware: %w", err)
	}
	s.securityMiddleware = securityMiddleware

	validationMiddleware, err := middleware.NewValidationMiddleware(config.Validation, api.OpenAPISpec, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize validation middleware: %w", err)
	}
	s.validationMiddleware = validationMiddleware

	return s, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:           ":" + s.config.Port,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	s.logger.WithField("port", s.config.Port).Info("Starting postgen server")
	return s.httpServer.ListenAndServe()
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping postgen server")
	s.securityMiddleware.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the full middleware chain around the routes. Security
// runs outside the mux so unknown paths and preflights are covered too.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.setupRoutes()
	handler = s.validationMiddleware.Middleware(handler)
	handler = s.securityMiddleware.Handler()(handler)
	return s.loggingMiddleware(handler)
}

func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/posts", s.handleCreatePost).Methods(http.MethodPost)
	v1.HandleFunc("/posts/image", s.handleCreateImagePost).Methods(http.MethodPost)
	v1.HandleFunc("/posts/scraped", s.handleCreateScrapedPost).Methods(http.MethodPost)
	v1.HandleFunc("/classify", s.handleClassify).Methods(http.MethodPost)
	v1.HandleFunc("/optimize", s.handleOptimize).Methods(http.MethodPost)
	v1.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
	v1.HandleFunc("/models", s.handleListModels).Methods(http.MethodGet)
	v1.HandleFunc("/health", s.handleHealthCheck).Methods(http.MethodGet)

	s.setupSwaggerRoutes(r)

	return r
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_ip":   security.ClientIP(r),
		}).Info("HTTP request")
	})
}

// Handlers

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req types.ContentRequest
	if !s.decode(w, r, &req) {
		return
	}
	prompt, ok := s.checkPrompt(w, req.Prompt)
	if !ok {
		return
	}

	result, err := s.pipeline.ProcessContent(r.Context(), prompt, req.UserContext)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateImagePost(w http.ResponseWriter, r *http.Request) {
	var req types.ImageContentRequest
	if !s.decode(w, r, &req) {
		return
	}
	prompt, ok := s.checkPrompt(w, req.Prompt)
	if !ok {
		return
	}
	if err := s.securityMiddleware.Validator().ValidateImage(&req.Image); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := s.pipeline.ProcessImageContent(r.Context(), prompt, &req.Image, req.UserContext)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateScrapedPost(w http.ResponseWriter, r *http.Request) {
	var req types.ScrapedContentRequest
	if !s.decode(w, r, &req) {
		return
	}
	prompt, ok := s.checkPrompt(w, req.Prompt)
	if !ok {
		return
	}
	if err := s.securityMiddleware.Validator().ValidateSources(req.Sources); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := s.pipeline.ProcessContentWithScrapedData(r.Context(), prompt, req.Sources, req.UserContext)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req types.ClassifyRequest
	if !s.decode(w, r, &req) {
		return
	}
	prompt, ok := s.checkPrompt(w, req.Prompt)
	if !ok {
		return
	}

	result, err := s.pipeline.ClassifyPrompt(r.Context(), prompt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleOptimize uses the supplied classification, else a story type hint,
// else classifies the text itself
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req types.OptimizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Text == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "validation_error", "text is required")
		return
	}

	classification := req.Classification
	switch {
	case classification != nil:
	case req.StoryType != "":
		if !req.StoryType.Valid() {
			s.writeErrorResponse(w, http.StatusBadRequest, "validation_error", fmt.Sprintf("unknown story type %q", req.StoryType))
			return
		}
		classification = &types.ClassificationResult{StoryType: req.StoryType, Audience: req.Audience}
	default:
		c, err := s.pipeline.ClassifyPrompt(r.Context(), req.Text)
		if err != nil {
			s.writeError(w, err)
			return
		}
		classification = c
	}

	text, trace := s.pipeline.Optimize(req.Text, classification)
	s.writeJSON(w, http.StatusOK, types.OptimizeResponse{Text: text, Trace: trace})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req types.AnalyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.optimizer.Analyze(req.Text))
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	registry := s.router.Registry()
	s.writeJSON(w, http.StatusOK, types.ModelsResponse{
		Object: "list",
		Data:   registry.Models(),
		Rules:  registry.Rules(),
	})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	providers := s.router.Stats()

	status := "unavailable"
	healthy := 0
	for _, p := range providers {
		switch p.Status {
		case "healthy":
			healthy++
			status = "degraded"
		case "degraded":
			status = "degraded"
		}
	}
	if healthy > 0 && healthy == len(providers) {
		status = "healthy"
	}

	code := http.StatusOK
	if status == "unavailable" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"providers": providers,
		"security":  s.securityMiddleware.Stats(),
		"timestamp": time.Now().Unix(),
	})
}

// Helper functions

func (s *Server) decode(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid_request_error", fmt.Sprintf("Invalid JSON: %v", err))
		return false
	}
	return true
}

// checkPrompt sanitizes then validates a prompt against the configured limits
func (s *Server) checkPrompt(w http.ResponseWriter, prompt string) (string, bool) {
	validator := s.securityMiddleware.Validator()
	prompt = validator.SanitizeInput(prompt)
	if err := validator.ValidatePrompt(prompt); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return "", false
	}
	return prompt, true
}

// writeError maps pipeline errors onto HTTP status codes
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid_request_error", err.Error())
	case errors.Is(err, pipeline.ErrImageAnalysis):
		s.writeErrorResponse(w, http.StatusBadGateway, "upstream_error", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.writeErrorResponse(w, http.StatusGatewayTimeout, "timeout_error", err.Error())
	case errors.Is(err, context.Canceled):
		s.writeErrorResponse(w, http.StatusRequestTimeout, "timeout_error", err.Error())
	default:
		s.logger.WithError(err).Error("Request failed")
		s.writeErrorResponse(w, http.StatusInternalServerError, "api_error", "internal error")
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errType, message string) {
	s.writeJSON(w, statusCode, types.ErrorResponse{
		Error: types.ErrorDetail{
			Message: message,
			Type:    errType,
			Code:    fmt.Sprintf("%d", statusCode),
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Warn("Failed to encode response")
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
