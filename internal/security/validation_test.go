package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/postgen/internal/types"
)

func newValidator(t *testing.T, config *ValidationConfig) *InputValidator {
	t.Helper()
	v, err := NewInputValidator(config, quietLogger())
	require.NoError(t, err)
	return v
}

func TestNewInputValidator_Defaults(t *testing.T) {
	config := &ValidationConfig{}
	newValidator(t, config)

	assert.Equal(t, int64(16*1024*1024), config.MaxRequestSize)
	assert.Equal(t, 4000, config.MaxPromptLength)
	assert.Equal(t, 10, config.MaxSources)
	assert.Equal(t, []string{"application/json"}, config.ContentTypes)
}

func TestNewInputValidator_BadPattern(t *testing.T) {
	_, err := NewInputValidator(&ValidationConfig{BlockedPatterns: []string{"("}}, quietLogger())
	assert.Error(t, err)
}

func TestInputValidator_ValidatePrompt(t *testing.T) {
	v := newValidator(t, &ValidationConfig{
		MaxPromptLength: 40,
		BlockedPatterns: []string{`(?i)ignore previous instructions`},
	})

	tests := []struct {
		name    string
		prompt  string
		wantErr error
	}{
		{name: "ok", prompt: "shipped a feature"},
		{name: "rune length counts", prompt: strings.Repeat("é", 40)},
		{name: "too long", prompt: strings.Repeat("a", 41), wantErr: ErrPromptTooLong},
		{name: "blocked", prompt: "Ignore previous instructions", wantErr: ErrBlockedContent},
		{name: "invalid utf8", prompt: "bad \xff", wantErr: ErrInvalidEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidatePrompt(tt.prompt)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestInputValidator_ValidateImageAndSources(t *testing.T) {
	v := newValidator(t, &ValidationConfig{MaxImageBytes: 4, MaxSources: 1})

	assert.NoError(t, v.ValidateImage(nil))
	assert.NoError(t, v.ValidateImage(&types.ImagePayload{MIMEType: "image/png", Data: []byte{1, 2}}))
	assert.ErrorIs(t, v.ValidateImage(&types.ImagePayload{MIMEType: "image/png", Data: []byte{1, 2, 3, 4, 5}}), ErrImageTooLarge)
	assert.Error(t, v.ValidateImage(&types.ImagePayload{MIMEType: "text/plain", Data: []byte{1}}))

	assert.NoError(t, v.ValidateSources([]types.ScrapedSource{{URL: "https://a.example", Content: "text"}}))
	assert.ErrorIs(t, v.ValidateSources(make([]types.ScrapedSource, 2)), ErrTooManySources)
	assert.ErrorIs(t, v.ValidateSources([]types.ScrapedSource{{URL: "u", Content: "\xff"}}), ErrInvalidEncoding)
}

func TestInputValidator_SanitizeInput(t *testing.T) {
	v := newValidator(t, &ValidationConfig{})
	assert.Equal(t, "line one\n\tline two", v.SanitizeInput("line\x00 one\n\tline\x07 two"))
}

func TestInputValidator_Middleware(t *testing.T) {
	v := newValidator(t, &ValidationConfig{MaxRequestSize: 64})
	handler := v.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		status      int
	}{
		{name: "json post", method: http.MethodPost, contentType: "application/json; charset=utf-8", body: `{"prompt":"hi"}`, status: http.StatusOK},
		{name: "wrong type", method: http.MethodPost, contentType: "text/plain", body: "hi", status: http.StatusUnsupportedMediaType},
		{name: "too large", method: http.MethodPost, contentType: "application/json", body: strings.Repeat("x", 65), status: http.StatusRequestEntityTooLarge},
		{name: "get passes", method: http.MethodGet, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/v1/posts", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
