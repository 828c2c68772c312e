package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/postgen/internal/security"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewSecurityMiddleware(t *testing.T) {
	m, err := NewSecurityMiddleware(&SecurityMiddlewareConfig{
		Auth:      &security.Config{APIKeys: []string{"test-key"}, RequireAuth: true},
		RateLimit: &security.RateLimitConfig{Enabled: true, RequestsPerMinute: 60},
	}, quietLogger())
	require.NoError(t, err)
	defer m.Stop()

	assert.NotNil(t, m.Authenticator())
	assert.NotNil(t, m.Validator())
	assert.Equal(t, map[string]bool{
		"authentication": true,
		"rate_limiting":  true,
		"cors":           false,
	}, m.Stats())
}

func TestNewSecurityMiddleware_BadPattern(t *testing.T) {
	m, err := NewSecurityMiddleware(&SecurityMiddlewareConfig{
		Validation: &security.ValidationConfig{BlockedPatterns: []string{"[invalid"}},
	}, quietLogger())
	assert.Error(t, err)
	assert.Nil(t, m)
	assert.Contains(t, err.Error(), "invalid blocked pattern")
}

func TestSecurityMiddleware_Handler(t *testing.T) {
	m, err := NewSecurityMiddleware(&SecurityMiddlewareConfig{
		Auth: &security.Config{APIKeys: []string{"valid-key"}, RequireAuth: true},
	}, quietLogger())
	require.NoError(t, err)
	handler := m.Handler()(okHandler())

	t.Run("authenticated json post", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/posts", strings.NewReader(`{"prompt":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", "valid-key")
		req.Header.Set("X-Request-ID", "req-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	})

	t.Run("unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/posts", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	})

	t.Run("authenticated but wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/posts", strings.NewReader("x"))
		req.Header.Set("Content-Type", "text/plain")
		req.Header.Set("X-API-Key", "valid-key")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}

func TestSecurityMiddleware_RateLimitPerSubject(t *testing.T) {
	m, err := NewSecurityMiddleware(&SecurityMiddlewareConfig{
		Auth:      &security.Config{APIKeys: []string{"key-a", "key-b"}, RequireAuth: true},
		RateLimit: &security.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, BurstSize: 1},
	}, quietLogger())
	require.NoError(t, err)
	defer m.Stop()
	handler := m.Handler()(okHandler())

	send := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
		req.Header.Set("X-API-Key", key)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("key-a"))
	assert.Equal(t, http.StatusTooManyRequests, send("key-a"))
	assert.Equal(t, http.StatusOK, send("key-b"))
}

func TestSecurityMiddleware_CORS(t *testing.T) {
	m, err := NewSecurityMiddleware(&SecurityMiddlewareConfig{
		AllowedOrigins: []string{"https://app.example.com"},
	}, quietLogger())
	require.NoError(t, err)
	handler := m.Handler()(okHandler())

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/v1/posts", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
