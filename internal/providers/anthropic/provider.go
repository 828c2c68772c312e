package anthropic

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/postgen/internal/credentials"
	"github.com/tributary-ai/postgen/internal/providers"
	"github.com/tributary-ai/postgen/internal/types"
)

const defaultMaxTokens = 1024 // Anthropic requires max_tokens

// AnthropicProvider implements GenerationProvider for the Messages API
type AnthropicProvider struct {
	config *AnthropicConfig
	logger *logrus.Logger
}

// AnthropicConfig holds Anthropic-specific configuration
type AnthropicConfig struct {
	BaseURL string `yaml:"base_url"`
}

// NewAnthropicProvider creates a new Anthropic provider instance
func NewAnthropicProvider(config *AnthropicConfig, logger *logrus.Logger) *AnthropicProvider {
	if config == nil {
		config = &AnthropicConfig{}
	}
	return &AnthropicProvider{
		config: config,
		logger: logger,
	}
}

// GetProviderName returns the provider name
func (p *AnthropicProvider) GetProviderName() string {
	return "anthropic"
}

// SupportsVision implements VisionProvider
func (p *AnthropicProvider) SupportsVision() bool {
	return true
}

// GetSupportedImageFormats implements VisionProvider
func (p *AnthropicProvider) GetSupportedImageFormats() []string {
	return []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
}

// Generate sends a single message request with the given credential
func (p *AnthropicProvider) Generate(ctx context.Context, credential string, req *types.GenerationRequest) (*types.GenerationResponse, error) {
	start := time.Now()

	client := p.newClient(credential)
	resp, err := client.Messages.New(ctx, p.convertRequest(req))
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"model":  req.Model,
			"masked": credentials.Mask(credential),
		}).WithError(err).Debug("Anthropic API call failed")
		return nil, providers.NewProviderError(p.GetProviderName(), req.Model, statusCode(err), err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	out := strings.TrimSpace(text.String())
	if out == "" {
		return nil, providers.NewProviderError(p.GetProviderName(), req.Model, 0, providers.ErrEmptyResponse)
	}

	return &types.GenerationResponse{
		Text:         out,
		Provider:     p.GetProviderName(),
		Model:        string(resp.Model),
		FinishReason: string(resp.StopReason),
		Latency:      time.Since(start),
	}, nil
}

func (p *AnthropicProvider) newClient(credential string) anthropic.Client {
	// retries belong to the router's credential loop
	opts := []option.RequestOption{
		option.WithAPIKey(credential),
		option.WithMaxRetries(0),
	}

	if p.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.config.BaseURL))
	}

	return anthropic.NewClient(opts...)
}

// convertRequest converts a generation request to Anthropic's format
func (p *AnthropicProvider) convertRequest(req *types.GenerationRequest) anthropic.MessageNewParams {
	var blocks []anthropic.ContentBlockParamUnion
	if req.Image != nil && len(req.Image.Data) > 0 {
		blocks = append(blocks, anthropic.NewImageBlockBase64(req.Image.MIMEType, base64.StdEncoding.EncodeToString(req.Image.Data)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
		MaxTokens: defaultMaxTokens,
	}

	if req.MaxOutputTokens > 0 {
		params.MaxTokens = int64(req.MaxOutputTokens)
	}

	system := req.SystemInstruction
	if req.JSONResponse {
		system = strings.TrimSpace(system + "\nRespond with a single JSON object and nothing else.")
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system, Type: "text"},
		}
	}

	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = anthropic.Float(req.TopP)
	}
	if req.TopK > 0 {
		params.TopK = anthropic.Int(int64(req.TopK))
	}

	return params
}

// statusCode extracts the HTTP status from an SDK error, 0 when unknown
func statusCode(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Ensure AnthropicProvider implements the provider interfaces
var (
	_ providers.GenerationProvider = (*AnthropicProvider)(nil)
	_ providers.VisionProvider     = (*AnthropicProvider)(nil)
)
