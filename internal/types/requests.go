package types

// UserContext carries optional author details used when building prompts
type UserContext struct {
	UserID      string            `json:"user_id,omitempty"`
	Name        string            `json:"name,omitempty"`
	Role        string            `json:"role,omitempty"`
	Industry    string            `json:"industry,omitempty"`
	Company     string            `json:"company,omitempty"`
	Audience    string            `json:"audience,omitempty"`
	Tone        string            `json:"tone,omitempty"`
	Goals       []string          `json:"goals,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
}

// ImagePayload is an inline image attached to a request
type ImagePayload struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// ScrapedSource is one page fetched by the external link-scraping tool.
// Content may be plain text or raw HTML.
type ScrapedSource struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// GenerationRequest is what a provider receives for a single attempt
type GenerationRequest struct {
	Model             string
	Prompt            string
	SystemInstruction string
	Image             *ImagePayload
	Temperature       float64
	MaxOutputTokens   int
	TopP              float64
	TopK              int
	JSONResponse      bool
}

// HTTP request bodies

type ContentRequest struct {
	Prompt      string       `json:"prompt"`
	UserContext *UserContext `json:"user_context,omitempty"`
}

type ImageContentRequest struct {
	Prompt      string       `json:"prompt"`
	Image       ImagePayload `json:"image"`
	UserContext *UserContext `json:"user_context,omitempty"`
}

type ScrapedContentRequest struct {
	Prompt      string          `json:"prompt"`
	Sources     []ScrapedSource `json:"sources"`
	UserContext *UserContext    `json:"user_context,omitempty"`
}

type ClassifyRequest struct {
	Prompt string `json:"prompt"`
}

type OptimizeRequest struct {
	Text           string                `json:"text"`
	StoryType      StoryType             `json:"story_type,omitempty"`
	Audience       string                `json:"audience,omitempty"`
	Classification *ClassificationResult `json:"classification,omitempty"`
}

type AnalyzeRequest struct {
	Text string `json:"text"`
}
