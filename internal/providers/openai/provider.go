package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/postgen/internal/credentials"
	"github.com/tributary-ai/postgen/internal/providers"
	"github.com/tributary-ai/postgen/internal/types"
)

// OpenAIProvider implements GenerationProvider for OpenAI chat completions
type OpenAIProvider struct {
	config *OpenAIConfig
	logger *logrus.Logger
}

// OpenAIConfig holds OpenAI-specific configuration
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	OrgID   string `yaml:"org_id"`
}

// NewOpenAIProvider creates a new OpenAI provider instance
func NewOpenAIProvider(config *OpenAIConfig, logger *logrus.Logger) *OpenAIProvider {
	if config == nil {
		config = &OpenAIConfig{}
	}
	return &OpenAIProvider{
		config: config,
		logger: logger,
	}
}

// GetProviderName returns the provider name
func (p *OpenAIProvider) GetProviderName() string {
	return "openai"
}

// SupportsVision implements VisionProvider
func (p *OpenAIProvider) SupportsVision() bool {
	return true
}

// GetSupportedImageFormats implements VisionProvider
func (p *OpenAIProvider) GetSupportedImageFormats() []string {
	return []string{"image/png", "image/jpeg", "image/webp", "image/gif"}
}

// Generate performs a chat completion with the given credential
func (p *OpenAIProvider) Generate(ctx context.Context, credential string, req *types.GenerationRequest) (*types.GenerationResponse, error) {
	start := time.Now()

	resp, err := p.newClient(credential).CreateChatCompletion(ctx, p.convertRequest(req))
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"model":  req.Model,
			"masked": credentials.Mask(credential),
		}).WithError(err).Debug("OpenAI API call failed")
		return nil, providers.NewProviderError(p.GetProviderName(), req.Model, statusCode(err), err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, providers.NewProviderError(p.GetProviderName(), req.Model, 0, providers.ErrEmptyResponse)
	}

	return &types.GenerationResponse{
		Text:         strings.TrimSpace(resp.Choices[0].Message.Content),
		Provider:     p.GetProviderName(),
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
		Latency:      time.Since(start),
	}, nil
}

func (p *OpenAIProvider) newClient(credential string) *openai.Client {
	clientConfig := openai.DefaultConfig(credential)

	if p.config.BaseURL != "" {
		clientConfig.BaseURL = p.config.BaseURL
	}
	if p.config.OrgID != "" {
		clientConfig.OrgID = p.config.OrgID
	}

	return openai.NewClientWithConfig(clientConfig)
}

// convertRequest converts a generation request to OpenAI's format
func (p *OpenAIProvider) convertRequest(req *types.GenerationRequest) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage

	if req.SystemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemInstruction,
		})
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if req.Image != nil && len(req.Image.Data) > 0 {
		dataURL := fmt.Sprintf("data:%s;base64,%s", req.Image.MIMEType, base64.StdEncoding.EncodeToString(req.Image.Data))
		user.MultiContent = []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: req.Prompt,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: openai.ImageURLDetailAuto,
				},
			},
		}
	} else {
		user.Content = req.Prompt
	}
	messages = append(messages, user)

	openaiReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
		MaxTokens:   req.MaxOutputTokens,
	}

	if req.JSONResponse {
		openaiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return openaiReq
}

// statusCode extracts the HTTP status from a go-openai error, 0 when unknown
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// Ensure OpenAIProvider implements the provider interfaces
var (
	_ providers.GenerationProvider = (*OpenAIProvider)(nil)
	_ providers.VisionProvider     = (*OpenAIProvider)(nil)
)
