package routing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/postgen/internal/credentials"
	"github.com/tributary-ai/postgen/internal/providers"
	"github.com/tributary-ai/postgen/internal/types"
)

// Config controls attempt timeouts and duplicate handling
type Config struct {
	TextTimeout           time.Duration `yaml:"text_timeout"`
	ImageTimeout          time.Duration `yaml:"image_timeout"`
	RetryDuplicateModels  bool          `yaml:"retry_duplicate_models"`
	ClassifierTemperature float64       `yaml:"classifier_temperature"`
}

// Request is one generation request routed across models and credentials
type Request struct {
	Prompt            string
	SystemInstruction string
	Image             *types.ImagePayload
	JSONResponse      bool
	Temperature       float64 // 0 keeps the model default
}

// Outcome describes what the router did, successful or not
type Outcome struct {
	Response      *types.GenerationResponse
	ModelID       string
	Provider      string
	SkippedModels []string
	Fallbacks     []string
	Attempts      int
	Duration      time.Duration
}

// Router runs the model and credential fallback chains
type Router struct {
	registry  *Registry
	config    *Config
	logger    *logrus.Logger
	providers map[string]providers.GenerationProvider
	pools     map[string]*credentials.Pool
	names     []string
	mutex     sync.RWMutex
}

// NewRouter creates a new router instance
func NewRouter(registry *Registry, config *Config, logger *logrus.Logger) *Router {
	if config == nil {
		config = &Config{}
	}
	if config.TextTimeout <= 0 {
		config.TextTimeout = 30 * time.Second
	}
	if config.ImageTimeout <= 0 {
		config.ImageTimeout = 60 * time.Second
	}
	if config.ClassifierTemperature <= 0 {
		config.ClassifierTemperature = 0.2
	}
	return &Router{
		registry:  registry,
		config:    config,
		logger:    logger,
		providers: make(map[string]providers.GenerationProvider),
		pools:     make(map[string]*credentials.Pool),
	}
}

// RegisterProvider adds a provider and the credential pool it draws from
func (r *Router) RegisterProvider(provider providers.GenerationProvider, pool *credentials.Pool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	name := provider.GetProviderName()
	if _, exists := r.providers[name]; !exists {
		r.names = append(r.names, name)
	}
	r.providers[name] = provider
	r.pools[name] = pool

	r.logger.WithFields(logrus.Fields{
		"provider":    name,
		"credentials": pool.Len(),
	}).Info("Provider registered")
}

// GetProvider returns a provider by name
func (r *Router) GetProvider(name string) (providers.GenerationProvider, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// ListProviders returns all registered provider names
func (r *Router) ListProviders() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Registry returns the model registry the router resolves against
func (r *Router) Registry() *Registry {
	return r.registry
}

// Stop stops every pool's reset goroutine
func (r *Router) Stop() {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	for _, pool := range r.pools {
		pool.Stop()
	}
}

// Generate attempts each model in order, and within a model each credential,
// stopping at the first success. The outcome is returned even on failure so
// callers can report what was skipped.
func (r *Router) Generate(ctx context.Context, order []string, req *Request) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{}

	candidates := r.candidates(order, out)

	resp, failures, err := AttemptInOrder(ctx, candidates,
		func(id string) string { return id },
		func(ctx context.Context, id string) (*types.GenerationResponse, error) {
			return r.attemptModel(ctx, id, req, out)
		},
	)

	for _, f := range failures {
		out.SkippedModels = append(out.SkippedModels, f.Candidate)
		out.Fallbacks = append(out.Fallbacks, "model:"+f.Candidate)
		r.logger.WithFields(logrus.Fields{
			"model": f.Candidate,
		}).WithError(f.Err).Warn("Model skipped")
	}
	out.Duration = time.Since(start)

	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"models":      order,
			"attempts":    out.Attempts,
			"duration_ms": out.Duration.Milliseconds(),
		}).Error("Every model in the priority chain failed")
		return out, err
	}

	out.Response = resp
	out.Provider = resp.Provider

	r.logger.WithFields(logrus.Fields{
		"provider":      out.Provider,
		"model":         out.ModelID,
		"attempts":      out.Attempts,
		"fallback_used": len(out.Fallbacks) > 0,
		"duration_ms":   out.Duration.Milliseconds(),
	}).Info("Request routed")

	return out, nil
}

// Complete runs a JSON-mode prompt through the classifier chain
func (r *Router) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := r.Generate(ctx, PriorityOrder(r.registry.ClassifierRule()), &Request{
		Prompt:       prompt,
		JSONResponse: true,
		Temperature:  r.config.ClassifierTemperature,
	})
	if err != nil {
		return "", err
	}
	return out.Response.Text, nil
}

// candidates drops repeated identifiers unless retries of the same model are enabled
func (r *Router) candidates(order []string, out *Outcome) []string {
	if r.config.RetryDuplicateModels {
		return order
	}
	seen := make(map[string]bool, len(order))
	result := make([]string, 0, len(order))
	for _, id := range order {
		if seen[id] {
			out.Fallbacks = append(out.Fallbacks, "duplicate:"+id)
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}

// attemptModel loops over the model's credential rotation
func (r *Router) attemptModel(ctx context.Context, id string, req *Request, out *Outcome) (*types.GenerationResponse, error) {
	model, err := r.registry.Resolve(id)
	if err != nil {
		return nil, err
	}

	r.mutex.RLock()
	provider, hasProvider := r.providers[model.Provider]
	pool := r.pools[model.Provider]
	r.mutex.RUnlock()

	if !hasProvider {
		return nil, fmt.Errorf("provider %s is not configured", model.Provider)
	}
	if req.Image != nil {
		if !model.Supports(types.CapabilityImage) {
			return nil, fmt.Errorf("model %s cannot read images", id)
		}
		if !providers.SupportsImage(provider, req.Image.MIMEType) {
			return nil, fmt.Errorf("provider %s does not accept %s", model.Provider, req.Image.MIMEType)
		}
	}

	rotation := pool.Rotation()
	if len(rotation) == 0 {
		return nil, fmt.Errorf("%s: %w", model.Provider, credentials.ErrEmptyPool)
	}

	genReq := buildGenerationRequest(model, req)
	timeout := r.config.TextTimeout
	if req.Image != nil {
		timeout = r.config.ImageTimeout
	}

	resp, failures, err := AttemptInOrder(ctx, rotation,
		(*credentials.Credential).Label,
		func(ctx context.Context, cred *credentials.Credential) (*types.GenerationResponse, error) {
			pool.RecordUse(cred)
			out.Attempts++

			attemptCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			resp, err := provider.Generate(attemptCtx, cred.Secret(), genReq)
			if err != nil {
				err = scrub(err, cred.Secret())
				rateLimited := providers.IsRateLimit(err)
				if rateLimited {
					pool.MarkExhausted(cred)
				}
				r.logger.WithFields(logrus.Fields{
					"provider":     model.Provider,
					"model":        id,
					"credential":   cred.Label(),
					"masked":       cred.Masked(),
					"rate_limited": rateLimited,
				}).WithError(err).Warn("Generation attempt failed")
				return nil, err
			}
			return resp, nil
		},
	)

	for _, f := range failures {
		reason := "failed"
		if providers.IsRateLimit(f.Err) {
			reason = "rate-limited"
		}
		out.Fallbacks = append(out.Fallbacks, fmt.Sprintf("credential:%s:%s", f.Candidate, reason))
	}

	if err != nil {
		return nil, err
	}

	out.ModelID = id
	return resp, nil
}

func buildGenerationRequest(model types.ModelDescriptor, req *Request) *types.GenerationRequest {
	temperature := model.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	return &types.GenerationRequest{
		Model:             model.Model,
		Prompt:            req.Prompt,
		SystemInstruction: req.SystemInstruction,
		Image:             req.Image,
		Temperature:       temperature,
		MaxOutputTokens:   model.MaxOutputTokens,
		TopP:              model.TopP,
		TopK:              model.TopK,
		JSONResponse:      req.JSONResponse,
	}
}

// Stats reports pool state for every registered provider
func (r *Router) Stats() []types.ProviderHealth {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	health := make([]types.ProviderHealth, 0, len(r.names))
	for _, name := range r.names {
		stats := r.pools[name].Stats()
		status := "unavailable"
		active := 0
		for _, s := range stats {
			if s.Active {
				active++
			}
		}
		switch {
		case len(stats) > 0 && active == len(stats):
			status = "healthy"
		case active > 0:
			status = "degraded"
		}
		health = append(health, types.ProviderHealth{
			Provider:    name,
			Status:      status,
			Credentials: stats,
		})
	}

	sort.Slice(health, func(i, j int) bool {
		return health[i].Provider < health[j].Provider
	})
	return health
}

// scrubbedError masks a credential that leaked into an error message
type scrubbedError struct {
	msg string
	err error
}

func (e *scrubbedError) Error() string { return e.msg }
func (e *scrubbedError) Unwrap() error { return e.err }

func scrub(err error, secret string) error {
	if secret == "" || !strings.Contains(err.Error(), secret) {
		return err
	}
	return &scrubbedError{
		msg: strings.ReplaceAll(err.Error(), secret, credentials.Mask(secret)),
		err: err,
	}
}

var _ error = (*scrubbedError)(nil)

// IsTotalFailure reports whether err means no model produced text
func IsTotalFailure(err error) bool {
	return errors.Is(err, ErrAllAttemptsFailed)
}
