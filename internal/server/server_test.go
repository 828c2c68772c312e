package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/postgen/internal/classifier"
	"github.com/tributary-ai/postgen/internal/credentials"
	"github.com/tributary-ai/postgen/internal/middleware"
	"github.com/tributary-ai/postgen/internal/optimizer"
	"github.com/tributary-ai/postgen/internal/pipeline"
	"github.com/tributary-ai/postgen/internal/providers"
	"github.com/tributary-ai/postgen/internal/providers/providertest"
	"github.com/tributary-ai/postgen/internal/routing"
	"github.com/tributary-ai/postgen/internal/security"
	"github.com/tributary-ai/postgen/internal/types"
)

const generatedPost = "Six months ago we set out to rebuild our release pipeline.\n\n" +
	"Today it shipped, and I could not be prouder of this team.\n\n" +
	"What milestone are you chasing this quarter?\n\n#Milestone #Teamwork #Engineering"

type testServer struct {
	handler http.Handler
	gemini  *providertest.ScriptedProvider
	server  *Server
}

func newTestServer(t *testing.T, config *ServerConfig) *testServer {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	registry, err := routing.NewRegistry(routing.DefaultCatalog(), routing.DefaultRules())
	require.NoError(t, err)
	router := routing.NewRouter(registry, nil, logger)
	t.Cleanup(router.Stop)

	gemini := providertest.NewScriptedProvider("gemini", generatedPost)
	router.RegisterProvider(gemini, credentials.NewPool(&credentials.Config{
		Provider:          "gemini",
		RequestsPerMinute: 100,
		ResetInterval:     time.Hour,
	}, []string{"gemini-key-aaaaaaaa"}, logger))

	c, err := classifier.New(classifier.Config{CacheSize: 16}, nil, logger)
	require.NoError(t, err)
	opt := optimizer.New(optimizer.DefaultConfig(), logger)
	orchestrator := pipeline.New(pipeline.Config{}, router, c, opt, nil, logger)

	if config == nil {
		config = &ServerConfig{Validation: &middleware.ValidationConfig{Enabled: true}}
	}
	s, err := NewServer(orchestrator, router, opt, config, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.securityMiddleware.Stop() })

	return &testServer{handler: s.Handler(), gemini: gemini, server: s}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestCreatePost(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/v1/posts", types.ContentRequest{
		Prompt:      "I shipped a major release after 6 months of work, so proud of the team",
		UserContext: &types.UserContext{Name: "Dana"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decodeBody[types.OrchestrationResult](t, rec)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, types.StoryAchievement, result.Classification.StoryType)
	assert.Equal(t, "gemini-flash", result.Metadata.ModelUsed)
	assert.Contains(t, result.Text, "Six months ago")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestCreatePostValidation(t *testing.T) {
	ts := newTestServer(t, &ServerConfig{
		Validation: &middleware.ValidationConfig{Enabled: true},
		Security: &middleware.SecurityMiddlewareConfig{
			Validation: &security.ValidationConfig{
				MaxPromptLength: 50,
				BlockedPatterns: []string{`(?i)forbidden`},
			},
		},
	})

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{name: "missing prompt", body: map[string]string{}, status: http.StatusBadRequest},
		{name: "empty prompt", body: types.ContentRequest{Prompt: ""}, status: http.StatusBadRequest},
		{name: "prompt too long", body: types.ContentRequest{Prompt: strings.Repeat("a", 51)}, status: http.StatusBadRequest},
		{name: "blocked pattern", body: types.ContentRequest{Prompt: "this is Forbidden"}, status: http.StatusBadRequest},
		{name: "malformed json", body: `{"prompt":`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/v1/posts", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
	assert.Empty(t, ts.gemini.Calls(), "no request should reach a provider")
}

func TestCreatePostWithoutSchemaValidation(t *testing.T) {
	ts := newTestServer(t, &ServerConfig{})

	rec := ts.do(t, http.MethodPost, "/v1/posts", types.ContentRequest{Prompt: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request_error")
}

func TestCreateImagePost(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/v1/posts/image", types.ImageContentRequest{
		Prompt: "Our team at the hackathon finals",
		Image:  types.ImagePayload{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decodeBody[types.OrchestrationResult](t, rec)
	assert.Contains(t, result.ProcessingPath, pipeline.StageAnalyzeImage)
	assert.NotEmpty(t, result.Metadata.ImageAnalysis)

	calls := ts.gemini.Calls()
	require.NotEmpty(t, calls)
	assert.True(t, calls[0].HasImage)
}

func TestCreateImagePostAnalysisFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.gemini.Default = providertest.Outcome{Err: providers.NewProviderError("gemini", "m", 500, errors.New("boom"))}

	rec := ts.do(t, http.MethodPost, "/v1/posts/image", types.ImageContentRequest{
		Prompt: "Our team at the hackathon finals",
		Image:  types.ImagePayload{MIMEType: "image/png", Data: []byte{1, 2, 3}},
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "upstream_error")
}

func TestCreateScrapedPost(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/v1/posts/scraped", types.ScrapedContentRequest{
		Prompt: "What I learned from this article about incident reviews",
		Sources: []types.ScrapedSource{{
			URL:     "https://blog.example.com/reviews",
			Title:   "Blameless reviews",
			Content: "<article><h1>Blameless reviews</h1><p>Teams that review incidents without blame fix root causes faster.</p></article>",
		}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decodeBody[types.OrchestrationResult](t, rec)
	assert.Equal(t, 1, result.Metadata.SourcesUsed)
	assert.Contains(t, result.PromptSent, "Blameless reviews")
}

func TestClassify(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/v1/classify", types.ClassifyRequest{
		Prompt: "Deep dive into how we refactored our database architecture to cut API latency",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decodeBody[types.ClassificationResult](t, rec)
	assert.Equal(t, types.StoryTechnical, result.StoryType)
	assert.Empty(t, ts.gemini.Calls(), "classification without an AI backend makes no provider calls")
}

func TestOptimize(t *testing.T) {
	ts := newTestServer(t, nil)

	t.Run("story type hint", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/v1/optimize", types.OptimizeRequest{
			Text:      "## Big news\n\nWe **launched** the beta today.",
			StoryType: types.StoryAchievement,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decodeBody[types.OptimizeResponse](t, rec)
		assert.NotContains(t, resp.Text, "**")
		assert.NotContains(t, resp.Text, "##")
		assert.Contains(t, resp.Text, "#Milestone")
		assert.Contains(t, resp.Trace.Applied, "cleaned")
	})

	t.Run("classifies when no hint", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/v1/optimize", types.OptimizeRequest{
			Text: "I learned a hard lesson about estimates this week.",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decodeBody[types.OptimizeResponse](t, rec)
		assert.Contains(t, resp.Text, "#ProfessionalGrowth")
	})

	t.Run("rejects unknown story type", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/v1/optimize", types.OptimizeRequest{Text: "x", StoryType: "poem"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAnalyze(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/v1/analyze", types.AnalyzeRequest{Text: generatedPost})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	analysis := decodeBody[types.Analysis](t, rec)
	assert.Equal(t, 3, analysis.Metrics.HashtagCount)
	assert.Greater(t, analysis.Metrics.Overall, 0.0)
}

func TestListModels(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/v1/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[types.ModelsResponse](t, rec)
	assert.Equal(t, "list", resp.Object)
	assert.Len(t, resp.Data, len(routing.DefaultCatalog()))
	assert.NotEmpty(t, resp.Rules)
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `"status":"healthy"`)
	assert.Contains(t, body, "gemini#1")
	assert.NotContains(t, body, "gemini-key-aaaaaaaa")
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, &ServerConfig{
		Security: &middleware.SecurityMiddlewareConfig{
			Auth: &security.Config{APIKeys: []string{"client-key-123"}, RequireAuth: true},
		},
	})

	rec := ts.do(t, http.MethodPost, "/v1/classify", types.ClassifyRequest{Prompt: "hello"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/classify", types.ClassifyRequest{Prompt: "hello"}, "X-API-Key", "client-key-123")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")
}

func TestOpenAPIDocs(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/docs/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")

	rec = ts.do(t, http.MethodGet, "/docs/openapi.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
	assert.Contains(t, doc["paths"], "/v1/posts")

	rec = ts.do(t, http.MethodGet, "/docs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")
}

func TestJSONCompatible(t *testing.T) {
	in := map[interface{}]interface{}{
		"a": []interface{}{map[interface{}]interface{}{1: "one"}},
	}
	out := jsonCompatible(in)
	_, err := json.Marshal(out)
	assert.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": []interface{}{map[string]interface{}{"1": "one"}}}, out)
}
