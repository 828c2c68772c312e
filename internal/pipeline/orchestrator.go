// Package pipeline runs the classify, route, generate and optimize flow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/postgen/internal/routing"
	"github.com/tributary-ai/postgen/internal/scrape"
	"github.com/tributary-ai/postgen/internal/types"
)

var (
	// ErrInvalidInput is returned before any stage runs
	ErrInvalidInput = errors.New("invalid input")
	// ErrImageAnalysis means the image-capable model could not describe the image
	ErrImageAnalysis = errors.New("image analysis failed")
)

// Stage names recorded in the processing path
const (
	StageClassify            = "classify"
	StageSelectModel         = "select-model"
	StageBuildPrompt         = "build-prompt"
	StageGenerate            = "generate"
	StageOptimize            = "optimize"
	StageFallbackTemplate    = "fallback-template"
	StageAnalyzeImage        = "analyze-image"
	StageBuildEnhancedPrompt = "build-enhanced-prompt"
	StageSummarizeSources    = "summarize-sources"
	StageBuildEnrichedPrompt = "build-enriched-prompt"
)

// FallbackConfidence is reported when the templated response is returned
const FallbackConfidence = 0.1

// Generator routes a request across the model priority chain
type Generator interface {
	Generate(ctx context.Context, order []string, req *routing.Request) (*routing.Outcome, error)
	Registry() *routing.Registry
}

// Classifier labels a prompt. It must not fail.
type Classifier interface {
	Classify(ctx context.Context, prompt string) *types.ClassificationResult
}

// ContentOptimizer post-processes generated text
type ContentOptimizer interface {
	Optimize(text string, classification *types.ClassificationResult) (string, types.OptimizationTrace)
}

// Config controls model selection
type Config struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// Orchestrator is the caller-facing entry point of the generation pipeline
type Orchestrator struct {
	config     Config
	generator  Generator
	classifier Classifier
	optimizer  ContentOptimizer
	summarizer *scrape.Summarizer
	prompts    PromptBuilder
	logger     *logrus.Logger
}

// New creates an orchestrator with the default prompt template
func New(config Config, generator Generator, classifier Classifier, optimizer ContentOptimizer, summarizer *scrape.Summarizer, logger *logrus.Logger) *Orchestrator {
	if config.ConfidenceThreshold <= 0 {
		config.ConfidenceThreshold = routing.DefaultConfidenceThreshold
	}
	if logger == nil {
		logger = logrus.New()
	}
	if summarizer == nil {
		summarizer = scrape.NewSummarizer(scrape.Config{}, logger)
	}
	return &Orchestrator{
		config:     config,
		generator:  generator,
		classifier: classifier,
		optimizer:  optimizer,
		summarizer: summarizer,
		prompts:    TemplateBuilder{},
		logger:     logger,
	}
}

// WithPromptBuilder replaces the prompt template collaborator
func (o *Orchestrator) WithPromptBuilder(builder PromptBuilder) *Orchestrator {
	o.prompts = builder
	return o
}

// run tracks one request through its stages
type run struct {
	start  time.Time
	result *types.OrchestrationResult
	logger *logrus.Entry
}

func (o *Orchestrator) newRun(flow, prompt string) *run {
	id := uuid.NewString()
	return &run{
		start: time.Now(),
		result: &types.OrchestrationResult{
			ID:             id,
			ProcessingPath: []string{},
			Metadata: types.OrchestrationMetadata{
				Optimizations: []string{},
				FallbacksUsed: []string{},
				SkippedModels: []string{},
			},
		},
		logger: o.logger.WithFields(logrus.Fields{
			"request_id":    id,
			"flow":          flow,
			"prompt_length": len(prompt),
		}),
	}
}

func (r *run) stage(name string) {
	r.result.ProcessingPath = append(r.result.ProcessingPath, name)
	r.logger.WithField("stage", name).Debug("Pipeline stage")
}

func (r *run) finish() *types.OrchestrationResult {
	r.result.Metadata.Elapsed = time.Since(r.start)
	r.logger.WithFields(logrus.Fields{
		"path":          r.result.ProcessingPath,
		"model":         r.result.Metadata.ModelUsed,
		"fallback_used": r.result.Metadata.UsedFallbackTemplate,
		"duration_ms":   r.result.Metadata.Elapsed.Milliseconds(),
	}).Info("Pipeline completed")
	return r.result
}

func validatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	return nil
}

// ProcessContent generates a post from a text prompt. Only invalid input
// returns an error; total generation failure yields the fallback template.
func (o *Orchestrator) ProcessContent(ctx context.Context, prompt string, user *types.UserContext) (result *types.OrchestrationResult, err error) {
	if err := validatePrompt(prompt); err != nil {
		return nil, err
	}
	r := o.newRun("text", prompt)
	defer func() {
		if rec := recover(); rec != nil {
			result = o.recovered(r, prompt, rec)
		}
	}()

	classification := o.classify(ctx, r, prompt)

	r.stage(StageSelectModel)
	decision := o.decide(r, classification)

	r.stage(StageBuildPrompt)
	built := o.prompts.Build(prompt, classification, user)

	o.generateAndOptimize(ctx, r, prompt, built, decision, classification)
	return r.finish(), nil
}

// ProcessImageContent describes the image with the image-capable model, then
// generates from the prompt plus that description. Analysis failure is an error.
func (o *Orchestrator) ProcessImageContent(ctx context.Context, prompt string, image *types.ImagePayload, user *types.UserContext) (result *types.OrchestrationResult, err error) {
	if err := validatePrompt(prompt); err != nil {
		return nil, err
	}
	if image == nil || len(image.Data) == 0 {
		return nil, fmt.Errorf("%w: image is required", ErrInvalidInput)
	}
	if image.MIMEType == "" {
		return nil, fmt.Errorf("%w: image mime type is required", ErrInvalidInput)
	}

	r := o.newRun("image", prompt)
	defer func() {
		if rec := recover(); rec != nil {
			result, err = o.recovered(r, prompt, rec), nil
		}
	}()

	classification := o.classify(ctx, r, prompt)

	r.stage(StageAnalyzeImage)
	analysis, err := o.generator.Generate(ctx, o.generator.Registry().DecideImage().Order, &routing.Request{
		Prompt: imageAnalysisPrompt(prompt),
		Image:  image,
	})
	if analysis != nil {
		r.recordFallbacks(analysis)
	}
	if err != nil {
		r.logger.WithError(err).Error("Image analysis failed")
		return nil, fmt.Errorf("%w: %w", ErrImageAnalysis, err)
	}
	r.result.Metadata.ImageAnalysis = analysis.Response.Text

	r.stage(StageBuildEnhancedPrompt)
	built := withImageAnalysis(o.prompts.Build(prompt, classification, user), analysis.Response.Text)

	decision := o.decide(r, classification)
	o.generateAndOptimize(ctx, r, prompt, built, decision, classification)
	return r.finish(), nil
}

// ProcessContentWithScrapedData enriches the prompt with summaries of
// already-scraped sources and otherwise behaves like ProcessContent
func (o *Orchestrator) ProcessContentWithScrapedData(ctx context.Context, prompt string, sources []types.ScrapedSource, user *types.UserContext) (result *types.OrchestrationResult, err error) {
	if err := validatePrompt(prompt); err != nil {
		return nil, err
	}
	r := o.newRun("scraped", prompt)
	defer func() {
		if rec := recover(); rec != nil {
			result = o.recovered(r, prompt, rec)
		}
	}()

	classification := o.classify(ctx, r, prompt)

	r.stage(StageSelectModel)
	decision := o.decide(r, classification)

	r.stage(StageSummarizeSources)
	summaries := o.summarizer.Summarize(sources)
	r.result.Metadata.SourcesUsed = len(summaries)

	r.stage(StageBuildEnrichedPrompt)
	built := withSources(o.prompts.Build(prompt, classification, user), scrape.BuildContext(summaries))

	o.generateAndOptimize(ctx, r, prompt, built, decision, classification)
	return r.finish(), nil
}

// ClassifyPrompt runs only the classifier
func (o *Orchestrator) ClassifyPrompt(ctx context.Context, prompt string) (*types.ClassificationResult, error) {
	if err := validatePrompt(prompt); err != nil {
		return nil, err
	}
	return o.classifier.Classify(ctx, prompt), nil
}

// Optimize runs only the content optimizer
func (o *Orchestrator) Optimize(text string, classification *types.ClassificationResult) (string, types.OptimizationTrace) {
	return o.optimizer.Optimize(text, classification)
}

func (o *Orchestrator) classify(ctx context.Context, r *run, prompt string) *types.ClassificationResult {
	r.stage(StageClassify)
	classification := o.classifier.Classify(ctx, prompt)
	r.result.Classification = classification
	r.result.Confidence = classification.Confidence
	r.logger.WithFields(logrus.Fields{
		"story_type": classification.StoryType,
		"confidence": classification.Confidence,
	}).Info("Prompt classified")
	return classification
}

func (o *Orchestrator) decide(r *run, classification *types.ClassificationResult) *routing.RoutingDecision {
	decision := o.generator.Registry().Decide(classification, o.config.ConfidenceThreshold)
	r.logger.WithFields(logrus.Fields{
		"rule":           decision.Rule.Name,
		"order":          decision.Order,
		"low_confidence": decision.LowConfidence,
	}).Debug("Model order selected")
	return decision
}

func (o *Orchestrator) generateAndOptimize(ctx context.Context, r *run, prompt, built string, decision *routing.RoutingDecision, classification *types.ClassificationResult) {
	r.result.PromptSent = built

	r.stage(StageGenerate)
	outcome, err := o.generator.Generate(ctx, decision.Order, &routing.Request{
		Prompt:            built,
		SystemInstruction: systemInstruction,
	})
	if outcome != nil {
		r.recordFallbacks(outcome)
	}
	if err != nil {
		r.logger.WithError(err).Error("Generation failed, returning fallback template")
		o.applyTemplate(r, prompt)
		return
	}

	r.result.Metadata.ModelUsed = outcome.ModelID
	r.result.Metadata.Provider = outcome.Provider

	r.stage(StageOptimize)
	text, trace := o.optimizer.Optimize(outcome.Response.Text, classification)
	r.result.Text = text
	r.result.Metadata.Optimizations = trace.Applied
	metrics := trace.Metrics
	r.result.Metadata.Metrics = &metrics
}

func (r *run) recordFallbacks(outcome *routing.Outcome) {
	r.result.Metadata.FallbacksUsed = append(r.result.Metadata.FallbacksUsed, outcome.Fallbacks...)
	r.result.Metadata.SkippedModels = append(r.result.Metadata.SkippedModels, outcome.SkippedModels...)
}

func (o *Orchestrator) applyTemplate(r *run, prompt string) {
	r.stage(StageFallbackTemplate)
	r.result.Text = fallbackTemplate(prompt)
	r.result.Confidence = FallbackConfidence
	r.result.Metadata.UsedFallbackTemplate = true
}

// recovered is the single catch-all recovery path: a panic in any stage
// becomes the fallback template
func (o *Orchestrator) recovered(r *run, prompt string, rec any) *types.OrchestrationResult {
	r.logger.WithField("panic", rec).Error("Pipeline panicked, returning fallback template")
	o.applyTemplate(r, prompt)
	return r.finish()
}
