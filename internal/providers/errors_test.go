package providers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRateLimit(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429 provider error", NewProviderError("gemini", "gemini-2.5-flash", 429, errors.New("slow down")), true},
		{"wrapped 429", fmt.Errorf("attempt failed: %w", NewProviderError("openai", "gpt-4o-mini", 429, errors.New("x"))), true},
		{"500 provider error", NewProviderError("gemini", "gemini-2.5-pro", 500, errors.New("internal")), false},
		{"resource exhausted message", errors.New("rpc error: RESOURCE_EXHAUSTED"), true},
		{"quota message", errors.New("You exceeded your current quota"), true},
		{"timeout", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimit(tt.err))
		})
	}
}

func TestProviderError(t *testing.T) {
	inner := errors.New("boom")
	err := NewProviderError("anthropic", "claude-3-5-haiku-latest", 503, inner)

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "anthropic/claude-3-5-haiku-latest")
	assert.Contains(t, err.Error(), "503")

	noStatus := NewProviderError("gemini", "m", 0, inner)
	assert.Equal(t, "gemini/m: boom", noStatus.Error())
}
