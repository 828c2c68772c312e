package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/postgen/internal/providers"
	"github.com/tributary-ai/postgen/internal/types"
)

func TestOpenAIProvider_GetProviderName(t *testing.T) {
	provider := createTestProvider(t, "")

	if name := provider.GetProviderName(); name != "openai" {
		t.Errorf("Expected provider name 'openai', got %s", name)
	}
}

func TestOpenAIProvider_ConvertRequest(t *testing.T) {
	provider := createTestProvider(t, "")

	tests := []struct {
		name         string
		request      *types.GenerationRequest
		wantMessages int
		wantMulti    bool
		wantJSON     bool
	}{
		{
			name:         "Plain prompt",
			request:      &types.GenerationRequest{Model: "gpt-4o-mini", Prompt: "Hello", Temperature: 0.8, MaxOutputTokens: 512},
			wantMessages: 1,
		},
		{
			name:         "System instruction and JSON",
			request:      &types.GenerationRequest{Model: "gpt-4o-mini", Prompt: "Classify", SystemInstruction: "Return JSON", JSONResponse: true},
			wantMessages: 2,
			wantJSON:     true,
		},
		{
			name: "Inline image",
			request: &types.GenerationRequest{
				Model:  "gpt-4o-mini",
				Prompt: "Describe",
				Image:  &types.ImagePayload{MIMEType: "image/jpeg", Data: []byte("jpg")},
			},
			wantMessages: 1,
			wantMulti:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := provider.convertRequest(tt.request)

			if req.Model != tt.request.Model {
				t.Errorf("Expected model %s, got %s", tt.request.Model, req.Model)
			}
			if len(req.Messages) != tt.wantMessages {
				t.Fatalf("Expected %d messages, got %d", tt.wantMessages, len(req.Messages))
			}
			last := req.Messages[len(req.Messages)-1]
			if tt.wantMulti {
				if len(last.MultiContent) != 2 {
					t.Fatalf("Expected text and image parts, got %d", len(last.MultiContent))
				}
				if !strings.HasPrefix(last.MultiContent[1].ImageURL.URL, "data:image/jpeg;base64,") {
					t.Errorf("Unexpected image URL %s", last.MultiContent[1].ImageURL.URL)
				}
			} else if last.Content != tt.request.Prompt {
				t.Errorf("Expected prompt content, got %q", last.Content)
			}
			if tt.wantJSON && (req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject) {
				t.Error("Expected JSON response format")
			}
			if req.MaxTokens != tt.request.MaxOutputTokens {
				t.Errorf("Expected max tokens %d, got %d", tt.request.MaxOutputTokens, req.MaxTokens)
			}
		})
	}
}

func TestOpenAIProvider_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test-credential" {
			t.Errorf("Unexpected authorization header %q", auth)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-1","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"A post."},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	provider := createTestProvider(t, server.URL+"/v1")
	resp, err := provider.Generate(context.Background(), "sk-test-credential", &types.GenerationRequest{Model: "gpt-4o-mini", Prompt: "Write"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Text != "A post." {
		t.Errorf("Expected 'A post.', got %q", resp.Text)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("Expected finish reason stop, got %s", resp.FinishReason)
	}
}

func TestOpenAIProvider_GenerateRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"Rate limit reached for requests","type":"requests","code":"rate_limit_exceeded"}}`)
	}))
	defer server.Close()

	provider := createTestProvider(t, server.URL+"/v1")
	_, err := provider.Generate(context.Background(), "sk-test-credential", &types.GenerationRequest{Model: "gpt-4o-mini", Prompt: "Write"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if !providers.IsRateLimit(err) {
		t.Errorf("Expected rate limit error, got %v", err)
	}
	if statusCode(err) != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", statusCode(err))
	}
}

func TestOpenAIProvider_GenerateEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-1","object":"chat.completion","model":"gpt-4o-mini","choices":[]}`)
	}))
	defer server.Close()

	provider := createTestProvider(t, server.URL+"/v1")
	_, err := provider.Generate(context.Background(), "sk-test-credential", &types.GenerationRequest{Model: "gpt-4o-mini", Prompt: "Write"})
	if err == nil || !strings.Contains(err.Error(), providers.ErrEmptyResponse.Error()) {
		t.Errorf("Expected empty response error, got %v", err)
	}
}

func createTestProvider(t *testing.T, baseURL string) *OpenAIProvider {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewOpenAIProvider(&OpenAIConfig{BaseURL: baseURL}, logger)
}
