package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/postgen/internal/providers"
	"github.com/tributary-ai/postgen/internal/types"
)

func TestAnthropicProvider_GetProviderName(t *testing.T) {
	provider := createTestProvider(t, "")

	if name := provider.GetProviderName(); name != "anthropic" {
		t.Errorf("Expected provider name 'anthropic', got %s", name)
	}
}

func TestAnthropicProvider_ConvertRequest(t *testing.T) {
	provider := createTestProvider(t, "")

	params := provider.convertRequest(&types.GenerationRequest{
		Model:             "claude-3-5-haiku-latest",
		Prompt:            "Write a post",
		SystemInstruction: "You are a ghostwriter.",
		Temperature:       0.8,
		MaxOutputTokens:   2048,
		JSONResponse:      true,
	})

	if string(params.Model) != "claude-3-5-haiku-latest" {
		t.Errorf("Unexpected model %s", params.Model)
	}
	if params.MaxTokens != 2048 {
		t.Errorf("Expected max tokens 2048, got %d", params.MaxTokens)
	}
	if len(params.System) != 1 || !strings.Contains(params.System[0].Text, "JSON") {
		t.Error("Expected system prompt with JSON instruction")
	}
	if len(params.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(params.Messages))
	}

	defaults := provider.convertRequest(&types.GenerationRequest{Model: "m", Prompt: "p"})
	if defaults.MaxTokens != defaultMaxTokens {
		t.Errorf("Expected default max tokens, got %d", defaults.MaxTokens)
	}
	if len(defaults.System) != 0 {
		t.Error("Expected no system prompt")
	}
}

func TestAnthropicProvider_ConvertRequestWithImage(t *testing.T) {
	provider := createTestProvider(t, "")

	params := provider.convertRequest(&types.GenerationRequest{
		Model:  "claude-3-5-haiku-latest",
		Prompt: "Describe",
		Image:  &types.ImagePayload{MIMEType: "image/png", Data: []byte("png")},
	})

	if len(params.Messages[0].Content) != 2 {
		t.Errorf("Expected image and text blocks, got %d", len(params.Messages[0].Content))
	}
}

func TestAnthropicProvider_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest","content":[{"type":"text","text":"Proud moment."}],"stop_reason":"end_turn","usage":{"input_tokens":5,"output_tokens":3}}`)
	}))
	defer server.Close()

	provider := createTestProvider(t, server.URL)
	resp, err := provider.Generate(context.Background(), "sk-ant-test-credential", &types.GenerationRequest{Model: "claude-3-5-haiku-latest", Prompt: "Write"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Text != "Proud moment." {
		t.Errorf("Expected 'Proud moment.', got %q", resp.Text)
	}
	if resp.FinishReason != "end_turn" {
		t.Errorf("Expected end_turn, got %s", resp.FinishReason)
	}
}

func TestAnthropicProvider_GenerateRateLimited(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"Number of requests has exceeded your rate limit"}}`)
	}))
	defer server.Close()

	provider := createTestProvider(t, server.URL)
	_, err := provider.Generate(context.Background(), "sk-ant-test-credential", &types.GenerationRequest{Model: "claude-3-5-haiku-latest", Prompt: "Write"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if !providers.IsRateLimit(err) {
		t.Errorf("Expected rate limit error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("SDK retries should be disabled, got %d calls", calls)
	}
}

func createTestProvider(t *testing.T, baseURL string) *AnthropicProvider {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewAnthropicProvider(&AnthropicConfig{BaseURL: baseURL}, logger)
}
