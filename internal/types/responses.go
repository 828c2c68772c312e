package types

import (
	"time"
)

// ClassificationResult is the ensemble's decision for one prompt
type ClassificationResult struct {
	StoryType   StoryType              `json:"story_type"`
	Confidence  float64                `json:"confidence"`
	Reasoning   string                 `json:"reasoning"`
	ContentType string                 `json:"content_type"`
	Tone        string                 `json:"tone"`
	Audience    string                 `json:"audience"`
	Keywords    []string               `json:"keywords"`
	Language    string                 `json:"language,omitempty"`
	Metadata    ClassificationMetadata `json:"metadata"`
}

type ClassificationMetadata struct {
	Uncertainty       float64            `json:"uncertainty"`
	AlternativeType   StoryType          `json:"alternative_type,omitempty"`
	FeatureScores     map[string]float64 `json:"feature_scores"`
	Validation        ValidationMetrics  `json:"validation"`
	Votes             []StrategyVote     `json:"votes"`
	CalibrationFactor float64            `json:"calibration_factor"`
	Emergency         bool               `json:"emergency,omitempty"`
	Cached            bool               `json:"cached,omitempty"`
}

// ValidationMetrics summarize how the strategies agreed
type ValidationMetrics struct {
	StrategiesUsed   int                   `json:"strategies_used"`
	StrategiesFailed []string              `json:"strategies_failed,omitempty"`
	Agreement        float64               `json:"agreement"`
	WinnerScore      float64               `json:"winner_score"`
	RunnerUpScore    float64               `json:"runner_up_score"`
	VoteDistribution map[StoryType]float64 `json:"vote_distribution"`
}

// StrategyVote is one strategy's candidate classification
type StrategyVote struct {
	Strategy   string    `json:"strategy"`
	StoryType  StoryType `json:"story_type"`
	Confidence float64   `json:"confidence"`
	Weight     float64   `json:"weight"`
	Reasoning  string    `json:"reasoning,omitempty"`
}

// GenerationResponse is a provider's answer for a single attempt
type GenerationResponse struct {
	Text         string        `json:"text"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	FinishReason string        `json:"finish_reason,omitempty"`
	Latency      time.Duration `json:"latency"`
}

// OrchestrationResult is returned by every caller-facing pipeline flow
type OrchestrationResult struct {
	ID             string                `json:"id"`
	Classification *ClassificationResult `json:"classification"`
	PromptSent     string                `json:"prompt_sent"`
	Text           string                `json:"text"`
	Confidence     float64               `json:"confidence"`
	ProcessingPath []string              `json:"processing_path"`
	Metadata       OrchestrationMetadata `json:"metadata"`
}

type OrchestrationMetadata struct {
	ModelUsed            string          `json:"model_used,omitempty"`
	Provider             string          `json:"provider,omitempty"`
	Elapsed              time.Duration   `json:"elapsed"`
	Optimizations        []string        `json:"optimizations"`
	FallbacksUsed        []string        `json:"fallbacks_used"`
	SkippedModels        []string        `json:"skipped_models"`
	UsedFallbackTemplate bool            `json:"used_fallback_template"`
	ImageAnalysis        string          `json:"image_analysis,omitempty"`
	SourcesUsed          int             `json:"sources_used,omitempty"`
	Metrics              *QualityMetrics `json:"metrics,omitempty"`
}

// OptimizationTrace lists the named transformations the optimizer applied
type OptimizationTrace struct {
	Applied  []string       `json:"applied"`
	Warnings []string       `json:"warnings,omitempty"`
	Metrics  QualityMetrics `json:"metrics"`
}

// QualityMetrics are independent 0-100 heuristics plus raw counts
type QualityMetrics struct {
	CharacterCount      int     `json:"character_count"`
	WordCount           int     `json:"word_count"`
	ParagraphCount      int     `json:"paragraph_count"`
	HashtagCount        int     `json:"hashtag_count"`
	EmojiCount          int     `json:"emoji_count"`
	Readability         float64 `json:"readability"`
	EngagementPotential float64 `json:"engagement_potential"`
	MobileReadability   float64 `json:"mobile_readability"`
	Discoverability     float64 `json:"discoverability"`
	Virality            float64 `json:"virality"`
	Professionalism     float64 `json:"professionalism"`
	Overall             float64 `json:"overall"`
}

// Analysis is the diagnostic view of a piece of text
type Analysis struct {
	Metrics     QualityMetrics `json:"metrics"`
	Suggestions []string       `json:"suggestions"`
}

type OptimizeResponse struct {
	Text  string            `json:"text"`
	Trace OptimizationTrace `json:"trace"`
}

// CredentialStats is a masked view of one credential's window usage
type CredentialStats struct {
	Label       string    `json:"label"`
	Masked      string    `json:"masked"`
	Active      bool      `json:"active"`
	Used        int       `json:"used"`
	Limit       int       `json:"limit"`
	WindowStart time.Time `json:"window_start"`
}

// ProviderHealth reports pool state for a registered provider
type ProviderHealth struct {
	Provider    string            `json:"provider"`
	Status      string            `json:"status"` // "healthy", "degraded", "unavailable"
	Credentials []CredentialStats `json:"credentials"`
}

// Error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ModelsResponse lists the catalog and selection rules
type ModelsResponse struct {
	Object string            `json:"object"`
	Data   []ModelDescriptor `json:"data"`
	Rules  []SelectionRule   `json:"rules"`
}
