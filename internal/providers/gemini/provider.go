package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/tributary-ai/postgen/internal/credentials"
	"github.com/tributary-ai/postgen/internal/providers"
	"github.com/tributary-ai/postgen/internal/types"
)

// GeminiProvider implements GenerationProvider on the Gemini API
type GeminiProvider struct {
	config *GeminiConfig
	logger *logrus.Logger

	// one client per credential
	clients map[string]*genai.Client
	mutex   sync.Mutex
}

// GeminiConfig holds Gemini-specific configuration
type GeminiConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIVersion string `yaml:"api_version"`
}

// NewGeminiProvider creates a new Gemini provider instance
func NewGeminiProvider(config *GeminiConfig, logger *logrus.Logger) *GeminiProvider {
	if config == nil {
		config = &GeminiConfig{}
	}
	return &GeminiProvider{
		config:  config,
		logger:  logger,
		clients: make(map[string]*genai.Client),
	}
}

// GetProviderName returns the provider name
func (p *GeminiProvider) GetProviderName() string {
	return "gemini"
}

// SupportsVision reports inline image support
func (p *GeminiProvider) SupportsVision() bool {
	return true
}

// GetSupportedImageFormats returns accepted inline image MIME types
func (p *GeminiProvider) GetSupportedImageFormats() []string {
	return []string{"image/png", "image/jpeg", "image/webp", "image/heic", "image/heif"}
}

// Generate performs a single generateContent call with the given credential
func (p *GeminiProvider) Generate(ctx context.Context, credential string, req *types.GenerationRequest) (*types.GenerationResponse, error) {
	start := time.Now()

	client, err := p.client(ctx, credential)
	if err != nil {
		return nil, providers.NewProviderError(p.GetProviderName(), req.Model, 0, fmt.Errorf("failed to create client: %w", err))
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, buildContents(req), buildConfig(req))
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"model":  req.Model,
			"masked": credentials.Mask(credential),
		}).WithError(err).Debug("Gemini API call failed")
		return nil, providers.NewProviderError(p.GetProviderName(), req.Model, statusCode(err), err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, providers.NewProviderError(p.GetProviderName(), req.Model, 0, providers.ErrEmptyResponse)
	}

	finish := ""
	if len(resp.Candidates) > 0 {
		finish = string(resp.Candidates[0].FinishReason)
	}

	return &types.GenerationResponse{
		Text:         text,
		Provider:     p.GetProviderName(),
		Model:        req.Model,
		FinishReason: finish,
		Latency:      time.Since(start),
	}, nil
}

func (p *GeminiProvider) client(ctx context.Context, credential string) (*genai.Client, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if c, ok := p.clients[credential]; ok {
		return c, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  credential,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    p.config.BaseURL,
			APIVersion: p.config.APIVersion,
		},
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p.clients[credential] = c
	return c, nil
}

func buildContents(req *types.GenerationRequest) []*genai.Content {
	parts := []*genai.Part{}
	if req.Image != nil && len(req.Image.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func buildConfig(req *types.GenerationRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.TopP > 0 {
		cfg.TopP = genai.Ptr(float32(req.TopP))
	}
	if req.TopK > 0 {
		cfg.TopK = genai.Ptr(float32(req.TopK))
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.JSONResponse {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	return cfg
}

// statusCode extracts the HTTP status from a genai error, 0 when unknown
func statusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 0 && apiErr.Status == "RESOURCE_EXHAUSTED" {
			return http.StatusTooManyRequests
		}
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	return 0
}

// Ensure GeminiProvider implements the provider interfaces
var (
	_ providers.GenerationProvider = (*GeminiProvider)(nil)
	_ providers.VisionProvider     = (*GeminiProvider)(nil)
)
