package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/postgen/internal/classifier"
	"github.com/tributary-ai/postgen/internal/config"
	"github.com/tributary-ai/postgen/internal/credentials"
	"github.com/tributary-ai/postgen/internal/optimizer"
	"github.com/tributary-ai/postgen/internal/pipeline"
	"github.com/tributary-ai/postgen/internal/providers"
	"github.com/tributary-ai/postgen/internal/providers/anthropic"
	"github.com/tributary-ai/postgen/internal/providers/gemini"
	"github.com/tributary-ai/postgen/internal/providers/openai"
	"github.com/tributary-ai/postgen/internal/routing"
	"github.com/tributary-ai/postgen/internal/scrape"
)

// Application holds the wired pipeline components
type Application struct {
	config       *config.Config
	logger       *logrus.Logger
	router       *routing.Router
	optimizer    *optimizer.Optimizer
	orchestrator *pipeline.Orchestrator
}

// NewApplication loads configuration and wires providers, router,
// classifier, optimizer and orchestrator
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	if err := setupLogger(logger, cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	registry, err := routing.NewRegistry(cfg.Catalog(), routing.DefaultRules())
	if err != nil {
		return nil, fmt.Errorf("failed to build model registry: %w", err)
	}

	router := routing.NewRouter(registry, cfg.ToRouterConfig(), logger)
	if err := registerProviders(router, cfg, logger); err != nil {
		router.Stop()
		return nil, fmt.Errorf("failed to register providers: %w", err)
	}

	// the router doubles as the AI strategy's backend
	clf, err := classifier.New(cfg.ToClassifierConfig(), router, logger)
	if err != nil {
		router.Stop()
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	opt := optimizer.New(cfg.Optimizer, logger)
	summarizer := scrape.NewSummarizer(cfg.ToScrapeConfig(), logger)
	orchestrator := pipeline.New(cfg.ToPipelineConfig(), router, clf, opt, summarizer, logger)

	return &Application{
		config:       cfg,
		logger:       logger,
		router:       router,
		optimizer:    opt,
		orchestrator: orchestrator,
	}, nil
}

// Close stops the credential pool goroutines
func (app *Application) Close() {
	app.router.Stop()
}

// registerProviders creates a provider and credential pool for every
// provider that has at least one key
func registerProviders(router *routing.Router, cfg *config.Config, logger *logrus.Logger) error {
	for _, name := range cfg.GetEnabledProviders() {
		var provider providers.GenerationProvider
		switch name {
		case config.ProviderGemini:
			provider = gemini.NewGeminiProvider(cfg.ToGeminiConfig(), logger)
		case config.ProviderOpenAI:
			provider = openai.NewOpenAIProvider(cfg.ToOpenAIConfig(), logger)
		case config.ProviderAnthropic:
			provider = anthropic.NewAnthropicProvider(cfg.ToAnthropicConfig(), logger)
		default:
			return fmt.Errorf("unknown provider %q", name)
		}

		pool := credentials.NewPool(cfg.ToPoolConfig(name), cfg.APIKeys(name), logger)
		router.RegisterProvider(provider, pool)
	}

	if len(router.ListProviders()) == 0 {
		return fmt.Errorf("no providers registered")
	}
	return nil
}

// setupLogger configures the logger based on configuration
func setupLogger(logger *logrus.Logger, config config.LoggingConfig) error {
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", config.Level, err)
	}
	logger.SetLevel(level)

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	default:
		return fmt.Errorf("invalid log format: %s", config.Format)
	}

	switch config.Output {
	case "", "stderr":
		logger.SetOutput(os.Stderr)
	case "stdout":
		logger.SetOutput(os.Stdout)
	default:
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", config.Output, err)
		}
		logger.SetOutput(file)
	}

	return nil
}
