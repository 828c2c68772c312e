package integration_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/postgen/internal/providers"
	"github.com/tributary-ai/postgen/internal/providers/anthropic"
	"github.com/tributary-ai/postgen/internal/providers/gemini"
	"github.com/tributary-ai/postgen/internal/providers/openai"
	"github.com/tributary-ai/postgen/internal/types"
)

// TestLiveProviders calls the real vendor APIs. It only runs with
// POSTGEN_LIVE_TESTS=1 and skips each vendor whose key is not set.
func TestLiveProviders(t *testing.T) {
	if os.Getenv("POSTGEN_LIVE_TESTS") != "1" {
		t.Skip("POSTGEN_LIVE_TESTS not set")
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	cases := []struct {
		name     string
		envVar   string
		model    string
		provider providers.GenerationProvider
	}{
		{"gemini", "GEMINI_API_KEY", "gemini-2.5-flash", gemini.NewGeminiProvider(nil, logger)},
		{"openai", "OPENAI_API_KEY", "gpt-4o-mini", openai.NewOpenAIProvider(nil, logger)},
		{"anthropic", "ANTHROPIC_API_KEY", "claude-3-5-haiku-latest", anthropic.NewAnthropicProvider(nil, logger)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key := os.Getenv(tc.envVar)
			if key == "" {
				t.Skipf("%s not set", tc.envVar)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			resp, err := tc.provider.Generate(ctx, key, &types.GenerationRequest{
				Model:           tc.model,
				Prompt:          "Write one short sentence announcing a product launch.",
				Temperature:     0.5,
				MaxOutputTokens: 64,
			})
			require.NoError(t, err)
			assert.NotEmpty(t, resp.Text)
			assert.Equal(t, tc.name, resp.Provider)
			t.Logf("%s answered in %v: %s", tc.name, resp.Latency, resp.Text)
		})
	}
}
