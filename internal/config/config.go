package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tributary-ai/postgen/internal/classifier"
	"github.com/tributary-ai/postgen/internal/credentials"
	"github.com/tributary-ai/postgen/internal/middleware"
	"github.com/tributary-ai/postgen/internal/optimizer"
	"github.com/tributary-ai/postgen/internal/pipeline"
	"github.com/tributary-ai/postgen/internal/providers/anthropic"
	"github.com/tributary-ai/postgen/internal/providers/gemini"
	"github.com/tributary-ai/postgen/internal/providers/openai"
	"github.com/tributary-ai/postgen/internal/routing"
	"github.com/tributary-ai/postgen/internal/scrape"
	"github.com/tributary-ai/postgen/internal/security"
	"github.com/tributary-ai/postgen/internal/server"
	"github.com/tributary-ai/postgen/internal/types"
)

// Provider names as registered with the router
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig            `yaml:"server"`
	Logging    LoggingConfig           `yaml:"logging"`
	Providers  ProvidersConfig         `yaml:"providers"`
	Models     []types.ModelDescriptor `yaml:"models,omitempty"`
	Pipeline   PipelineConfig          `yaml:"pipeline"`
	Classifier ClassifierConfig        `yaml:"classifier"`
	Optimizer  optimizer.Config        `yaml:"optimizer"`
	Scrape     ScrapeConfig            `yaml:"scrape"`
	Security   SecurityConfig          `yaml:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or file path
}

// ProviderConfig is one vendor's credential list and endpoint
type ProviderConfig struct {
	APIKeys           []string `yaml:"api_keys"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	BaseURL           string   `yaml:"base_url,omitempty"`
	APIVersion        string   `yaml:"api_version,omitempty"` // gemini only
	OrgID             string   `yaml:"org_id,omitempty"`      // openai only
}

// ProvidersConfig holds configuration for all providers
type ProvidersConfig struct {
	Gemini    ProviderConfig `yaml:"gemini"`
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
}

// PipelineConfig controls model selection and attempt timeouts
type PipelineConfig struct {
	ConfidenceThreshold  float64       `yaml:"confidence_threshold"`
	TextTimeout          time.Duration `yaml:"text_timeout"`
	ImageTimeout         time.Duration `yaml:"image_timeout"`
	RetryDuplicateModels bool          `yaml:"retry_duplicate_models"`
}

// ClassifierConfig controls the ensemble classifier
type ClassifierConfig struct {
	CacheSize      int  `yaml:"cache_size"`
	DetectLanguage bool `yaml:"detect_language"`
}

// ScrapeConfig limits how much scraped material reaches a prompt
type ScrapeConfig struct {
	MaxSources      int `yaml:"max_sources"`
	MaxSummaryChars int `yaml:"max_summary_chars"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	APIKeys           []string                 `yaml:"api_keys"`
	JWTSecret         string                   `yaml:"jwt_secret"`
	JWTExpiry         time.Duration            `yaml:"jwt_expiry"`
	MaxPromptLength   int                      `yaml:"max_prompt_length"`
	MaxRequestSize    int64                    `yaml:"max_request_size"`
	BlockedPatterns   []string                 `yaml:"blocked_patterns"`
	OpenAPIValidation bool                     `yaml:"openapi_validation"`
	AllowedOrigins    []string                 `yaml:"allowed_origins"`
	RateLimiting      security.RateLimitConfig `yaml:"rate_limiting"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	config.setDefaults()

	if configPath != "" {
		if err := config.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	config.loadFromEnv()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values
func (c *Config) setDefaults() {
	c.Server = ServerConfig{
		Port:           "8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stderr",
	}

	c.Providers = ProvidersConfig{
		Gemini:    ProviderConfig{RequestsPerMinute: 60},
		OpenAI:    ProviderConfig{RequestsPerMinute: 60},
		Anthropic: ProviderConfig{RequestsPerMinute: 60},
	}

	c.Pipeline = PipelineConfig{
		ConfidenceThreshold: routing.DefaultConfidenceThreshold,
		TextTimeout:         30 * time.Second,
		ImageTimeout:        60 * time.Second,
	}

	c.Classifier = ClassifierConfig{
		CacheSize:      classifier.DefaultCacheSize,
		DetectLanguage: true,
	}

	c.Optimizer = optimizer.DefaultConfig()

	c.Scrape = ScrapeConfig{
		MaxSources:      scrape.DefaultMaxSources,
		MaxSummaryChars: scrape.DefaultMaxSummaryChars,
	}

	c.Security = SecurityConfig{
		JWTExpiry:         24 * time.Hour,
		MaxPromptLength:   4000,
		MaxRequestSize:    16 * 1024 * 1024,
		OpenAPIValidation: true,
		RateLimiting: security.RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         10,
		},
	}
}

// loadFromFile loads configuration from YAML file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
// A plural *_API_KEYS variable replaces the file's list; a singular
// *_API_KEY variable is used only when no list is set at all.
func (c *Config) loadFromEnv() {
	envKeys(&c.Providers.Gemini, "GEMINI_API_KEYS", "GEMINI_API_KEY")
	envKeys(&c.Providers.OpenAI, "OPENAI_API_KEYS", "OPENAI_API_KEY")
	envKeys(&c.Providers.Anthropic, "ANTHROPIC_API_KEYS", "ANTHROPIC_API_KEY")

	if port := os.Getenv("POSTGEN_PORT"); port != "" {
		c.Server.Port = port
	}

	if level := os.Getenv("POSTGEN_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if format := os.Getenv("POSTGEN_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	if rpm := os.Getenv("POSTGEN_RPM"); rpm != "" {
		if n, err := strconv.Atoi(rpm); err == nil && n > 0 {
			c.Providers.Gemini.RequestsPerMinute = n
			c.Providers.OpenAI.RequestsPerMinute = n
			c.Providers.Anthropic.RequestsPerMinute = n
		}
	}

	if secret := os.Getenv("POSTGEN_JWT_SECRET"); secret != "" {
		c.Security.JWTSecret = secret
	}
}

func envKeys(p *ProviderConfig, listVar, singleVar string) {
	if list := os.Getenv(listVar); list != "" {
		p.APIKeys = splitList(list)
		return
	}
	if key := strings.TrimSpace(os.Getenv(singleVar)); key != "" && len(p.APIKeys) == 0 {
		p.APIKeys = []string{key}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	validLogLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
		"panic": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if len(c.GetEnabledProviders()) == 0 {
		return fmt.Errorf("at least one provider must have an API key configured")
	}

	if t := c.Pipeline.ConfidenceThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("pipeline.confidence_threshold must be in (0, 1], got %v", t)
	}
	if c.Pipeline.TextTimeout <= 0 || c.Pipeline.ImageTimeout <= 0 {
		return fmt.Errorf("pipeline timeouts must be positive")
	}
	if c.Classifier.CacheSize < 0 {
		return fmt.Errorf("classifier.cache_size cannot be negative")
	}

	o := c.Optimizer
	if o.MinHashtags > o.MaxHashtags {
		return fmt.Errorf("optimizer.min_hashtags (%d) exceeds max_hashtags (%d)", o.MinHashtags, o.MaxHashtags)
	}
	if o.MinLength >= o.MaxLength {
		return fmt.Errorf("optimizer.min_length (%d) must be below max_length (%d)", o.MinLength, o.MaxLength)
	}

	if s := c.Security.JWTSecret; s != "" && len(s) < 16 {
		return fmt.Errorf("security.jwt_secret must be at least 16 characters")
	}

	return nil
}

// ToServerConfig converts to server.ServerConfig
func (c *Config) ToServerConfig() *server.ServerConfig {
	return &server.ServerConfig{
		Port:           c.Server.Port,
		ReadTimeout:    c.Server.ReadTimeout,
		WriteTimeout:   c.Server.WriteTimeout,
		MaxHeaderBytes: c.Server.MaxHeaderBytes,
		Security:       c.ToSecurityMiddlewareConfig(),
		Validation:     &middleware.ValidationConfig{Enabled: c.Security.OpenAPIValidation},
	}
}

// ToSecurityMiddlewareConfig converts to middleware.SecurityMiddlewareConfig
func (c *Config) ToSecurityMiddlewareConfig() *middleware.SecurityMiddlewareConfig {
	rateLimit := c.Security.RateLimiting
	return &middleware.SecurityMiddlewareConfig{
		Auth: &security.Config{
			APIKeys:     c.Security.APIKeys,
			JWTSecret:   c.Security.JWTSecret,
			JWTExpiry:   c.Security.JWTExpiry,
			RequireAuth: len(c.Security.APIKeys) > 0 || c.Security.JWTSecret != "",
		},
		RateLimit: &rateLimit,
		Validation: &security.ValidationConfig{
			MaxRequestSize:  c.Security.MaxRequestSize,
			MaxPromptLength: c.Security.MaxPromptLength,
			MaxSources:      c.Scrape.MaxSources,
			BlockedPatterns: c.Security.BlockedPatterns,
		},
		AllowedOrigins: c.Security.AllowedOrigins,
	}
}

// ToRouterConfig converts to routing.Config
func (c *Config) ToRouterConfig() *routing.Config {
	return &routing.Config{
		TextTimeout:          c.Pipeline.TextTimeout,
		ImageTimeout:         c.Pipeline.ImageTimeout,
		RetryDuplicateModels: c.Pipeline.RetryDuplicateModels,
	}
}

// ToPipelineConfig converts to pipeline.Config
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{ConfidenceThreshold: c.Pipeline.ConfidenceThreshold}
}

// ToClassifierConfig converts to classifier.Config
func (c *Config) ToClassifierConfig() classifier.Config {
	return classifier.Config{
		CacheSize:      c.Classifier.CacheSize,
		DetectLanguage: c.Classifier.DetectLanguage,
	}
}

// ToScrapeConfig converts to scrape.Config
func (c *Config) ToScrapeConfig() scrape.Config {
	return scrape.Config{
		MaxSources:      c.Scrape.MaxSources,
		MaxSummaryChars: c.Scrape.MaxSummaryChars,
	}
}

// ToPoolConfig returns the credential pool settings for a provider
func (c *Config) ToPoolConfig(provider string) *credentials.Config {
	return &credentials.Config{
		Provider:          provider,
		RequestsPerMinute: c.provider(provider).RequestsPerMinute,
	}
}

// ToGeminiConfig converts to gemini.GeminiConfig
func (c *Config) ToGeminiConfig() *gemini.GeminiConfig {
	return &gemini.GeminiConfig{
		BaseURL:    c.Providers.Gemini.BaseURL,
		APIVersion: c.Providers.Gemini.APIVersion,
	}
}

// ToOpenAIConfig converts to openai.OpenAIConfig
func (c *Config) ToOpenAIConfig() *openai.OpenAIConfig {
	return &openai.OpenAIConfig{
		BaseURL: c.Providers.OpenAI.BaseURL,
		OrgID:   c.Providers.OpenAI.OrgID,
	}
}

// ToAnthropicConfig converts to anthropic.AnthropicConfig
func (c *Config) ToAnthropicConfig() *anthropic.AnthropicConfig {
	return &anthropic.AnthropicConfig{BaseURL: c.Providers.Anthropic.BaseURL}
}

// Catalog returns the configured models, or the built-in catalog
func (c *Config) Catalog() []types.ModelDescriptor {
	if len(c.Models) > 0 {
		return c.Models
	}
	return routing.DefaultCatalog()
}

// APIKeys returns the credential list for a provider
func (c *Config) APIKeys(provider string) []string {
	return c.provider(provider).APIKeys
}

func (c *Config) provider(name string) ProviderConfig {
	switch name {
	case ProviderGemini:
		return c.Providers.Gemini
	case ProviderOpenAI:
		return c.Providers.OpenAI
	case ProviderAnthropic:
		return c.Providers.Anthropic
	}
	return ProviderConfig{}
}

// SaveToFile saves the current configuration to a YAML file.
// Credentials are written masked.
func (c *Config) SaveToFile(path string) error {
	redacted := *c
	redacted.Providers.Gemini.APIKeys = maskAll(c.Providers.Gemini.APIKeys)
	redacted.Providers.OpenAI.APIKeys = maskAll(c.Providers.OpenAI.APIKeys)
	redacted.Providers.Anthropic.APIKeys = maskAll(c.Providers.Anthropic.APIKeys)
	redacted.Security.APIKeys = maskAll(c.Security.APIKeys)
	if c.Security.JWTSecret != "" {
		redacted.Security.JWTSecret = credentials.Mask(c.Security.JWTSecret)
	}

	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func maskAll(keys []string) []string {
	if keys == nil {
		return nil
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = credentials.Mask(k)
	}
	return out
}

// GetEnabledProviders returns providers that have at least one credential
func (c *Config) GetEnabledProviders() []string {
	var providers []string
	for _, name := range []string{ProviderGemini, ProviderOpenAI, ProviderAnthropic} {
		if hasKey(c.APIKeys(name)) {
			providers = append(providers, name)
		}
	}
	return providers
}

func hasKey(keys []string) bool {
	for _, k := range keys {
		if strings.TrimSpace(k) != "" {
			return true
		}
	}
	return false
}
