package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/postgen/internal/classifier"
	"github.com/tributary-ai/postgen/internal/config"
	"github.com/tributary-ai/postgen/internal/credentials"
	"github.com/tributary-ai/postgen/internal/optimizer"
	"github.com/tributary-ai/postgen/internal/pipeline"
	"github.com/tributary-ai/postgen/internal/providers"
	"github.com/tributary-ai/postgen/internal/providers/providertest"
	"github.com/tributary-ai/postgen/internal/routing"
	"github.com/tributary-ai/postgen/internal/scrape"
	"github.com/tributary-ai/postgen/internal/server"
	"github.com/tributary-ai/postgen/internal/types"
)

const (
	geminiKey1 = "gemini-key-one-aaaaaaaa"
	geminiKey2 = "gemini-key-two-bbbbbbbb"
	openaiKey  = "sk-openai-key-cccccccc"
	clientKey  = "client-secret-12345678"

	achievementPrompt = "We just launched our new analytics product after 8 months of hard work, huge milestone for the team"

	generatedPost = "Eight months ago we started with a blank page.\n\n" +
		"Today our analytics product is live, and I am so proud of this team.\n\n" +
		"What launch are you working toward?\n\n#ProductLaunch #Milestone #Teamwork"
)

const configYAML = `
logging:
  level: panic
  format: text
providers:
  gemini:
    api_keys: ["` + geminiKey1 + `", "` + geminiKey2 + `"]
    requests_per_minute: 1
  openai:
    api_keys: ["` + openaiKey + `"]
    requests_per_minute: 10
security:
  api_keys: ["` + clientKey + `"]
  openapi_validation: true
`

// classifyingProvider answers JSON-mode requests with a fixed classification
// and hands everything else to the scripted provider
type classifyingProvider struct {
	*providertest.ScriptedProvider
	classifications atomic.Int32
}

func (p *classifyingProvider) Generate(ctx context.Context, credential string, req *types.GenerationRequest) (*types.GenerationResponse, error) {
	if !req.JSONResponse {
		return p.ScriptedProvider.Generate(ctx, credential, req)
	}
	p.classifications.Add(1)
	return &types.GenerationResponse{
		Text:     `{"storyType": "achievement", "confidence": 0.92, "reasoning": "a product launch milestone"}`,
		Provider: p.Name,
		Model:    req.Model,
	}, nil
}

type stack struct {
	config  *config.Config
	router  *routing.Router
	gemini  *classifyingProvider
	openai  *providertest.ScriptedProvider
	handler http.Handler
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"GEMINI_API_KEYS", "GEMINI_API_KEY",
		"OPENAI_API_KEYS", "OPENAI_API_KEY",
		"ANTHROPIC_API_KEYS", "ANTHROPIC_API_KEY",
		"POSTGEN_PORT", "POSTGEN_LOG_LEVEL", "POSTGEN_LOG_FORMAT",
		"POSTGEN_RPM", "POSTGEN_JWT_SECRET",
	} {
		t.Setenv(name, "")
	}
}

// newStack wires the same components the CLI does, with scripted providers
// in place of the vendor SDKs
func newStack(t *testing.T) *stack {
	t.Helper()
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "postgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0600))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	registry, err := routing.NewRegistry(cfg.Catalog(), routing.DefaultRules())
	require.NoError(t, err)
	router := routing.NewRouter(registry, cfg.ToRouterConfig(), logger)
	t.Cleanup(router.Stop)

	gemini := &classifyingProvider{ScriptedProvider: providertest.NewScriptedProvider(config.ProviderGemini, generatedPost)}
	openai := providertest.NewScriptedProvider(config.ProviderOpenAI, generatedPost)
	for _, p := range []providers.GenerationProvider{gemini, openai} {
		name := p.GetProviderName()
		router.RegisterProvider(p, credentials.NewPool(cfg.ToPoolConfig(name), cfg.APIKeys(name), logger))
	}

	clf, err := classifier.New(cfg.ToClassifierConfig(), router, logger)
	require.NoError(t, err)
	opt := optimizer.New(cfg.Optimizer, logger)
	orchestrator := pipeline.New(cfg.ToPipelineConfig(), router, clf, opt, scrape.NewSummarizer(cfg.ToScrapeConfig(), logger), logger)

	srv, err := server.NewServer(orchestrator, router, opt, cfg.ToServerConfig(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	return &stack{
		config:  cfg,
		router:  router,
		gemini:  gemini,
		openai:  openai,
		handler: srv.Handler(),
	}
}

func (s *stack) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", clientKey)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *stack) pool(provider string) []types.CredentialStats {
	for _, h := range s.router.Stats() {
		if h.Provider == provider {
			return h.Credentials
		}
	}
	return nil
}

func TestPostEndToEnd(t *testing.T) {
	s := newStack(t)

	rec := s.post(t, "/v1/posts", types.ContentRequest{
		Prompt:      achievementPrompt,
		UserContext: &types.UserContext{Name: "Dana", Industry: "software"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result types.OrchestrationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	assert.Equal(t, types.StoryAchievement, result.Classification.StoryType)
	assert.Equal(t, "gemini-flash", result.Metadata.ModelUsed)
	assert.Equal(t, config.ProviderGemini, result.Metadata.Provider)
	assert.Contains(t, result.Text, "analytics product is live")
	assert.NotEmpty(t, result.ProcessingPath)

	strategies := make(map[string]bool)
	for _, v := range result.Classification.Metadata.Votes {
		strategies[v.Strategy] = true
	}
	assert.True(t, strategies[classifier.StrategyAI], "model vote missing: %+v", result.Classification.Metadata.Votes)
	assert.Equal(t, int32(1), s.gemini.classifications.Load())

	// the classification call took the first key, so generation rotated to the second
	calls := s.gemini.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, geminiKey2, calls[0].Credential)
	for _, c := range s.pool(config.ProviderGemini) {
		assert.Equal(t, 1, c.Used, c.Label)
		assert.NotContains(t, c.Masked, "key-one")
	}

	assert.NotContains(t, rec.Body.String(), geminiKey1)
	assert.NotContains(t, rec.Body.String(), geminiKey2)
}

func TestRateLimitedCredentialsFallBackToSecondVendor(t *testing.T) {
	s := newStack(t)

	limited := func(model string) providertest.Outcome {
		return providertest.Outcome{Err: providers.NewProviderError(config.ProviderGemini, model, http.StatusTooManyRequests, errors.New("quota exceeded"))}
	}
	s.gemini.Script("gemini-2.5-flash", limited("gemini-2.5-flash"), limited("gemini-2.5-flash"))
	s.gemini.Script("gemini-2.5-pro", limited("gemini-2.5-pro"), limited("gemini-2.5-pro"))

	rec := s.post(t, "/v1/posts", types.ContentRequest{Prompt: achievementPrompt})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result types.OrchestrationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	assert.Equal(t, "gpt-4o-mini", result.Metadata.ModelUsed)
	assert.Equal(t, config.ProviderOpenAI, result.Metadata.Provider)
	assert.NotEmpty(t, result.Metadata.FallbacksUsed)
	assert.Len(t, s.openai.Calls(), 1)

	for _, c := range s.pool(config.ProviderGemini) {
		assert.False(t, c.Active, "%s should be exhausted", c.Label)
	}

	health := s.handlerGet(t, "/v1/health")
	assert.Equal(t, http.StatusOK, health.Code)
	assert.Contains(t, health.Body.String(), `"degraded"`)
}

func TestClassifyAndOptimizeEndToEnd(t *testing.T) {
	s := newStack(t)

	rec := s.post(t, "/v1/classify", types.ContentRequest{Prompt: achievementPrompt})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var classification types.ClassificationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &classification))
	assert.Equal(t, types.StoryAchievement, classification.StoryType)

	// the same prompt is served from the classification cache
	rec = s.post(t, "/v1/classify", types.ContentRequest{Prompt: achievementPrompt})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), s.gemini.classifications.Load())

	rec = s.post(t, "/v1/optimize", map[string]interface{}{
		"text":           "we shipped it. the team was amazing and i learned a lot about focus",
		"classification": classification,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var optimized types.OptimizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &optimized))
	assert.Contains(t, optimized.Text, "#")
	assert.NotEmpty(t, optimized.Trace.Applied)
}

func TestRequestsWithoutClientKeyAreRejected(t *testing.T) {
	s := newStack(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/posts", bytes.NewBufferString(`{"prompt":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, s.gemini.Calls())
}

func (s *stack) handlerGet(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}
