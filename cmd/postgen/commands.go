package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tributary-ai/postgen/internal/security"
	"github.com/tributary-ai/postgen/internal/server"
	"github.com/tributary-ai/postgen/internal/types"
)

func serveAction(c *cli.Context) error {
	app, err := NewApplication(c.String("config"))
	if err != nil {
		return err
	}
	defer app.Close()

	srv, err := server.NewServer(app.orchestrator, app.router, app.optimizer, app.config.ToServerConfig(), app.logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		app.logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.logger.Info("Graceful shutdown completed")
	return nil
}

func classifyAction(c *cli.Context) error {
	prompt := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(prompt) == "" {
		return cli.Exit("classify needs a prompt", 2)
	}

	app, err := NewApplication(c.String("config"))
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.orchestrator.ClassifyPrompt(c.Context, prompt)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, result)
}

func optimizeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("optimize needs a file path or -", 2)
	}
	text, err := readInput(c.Args().First(), c.App.Reader)
	if err != nil {
		return err
	}

	app, err := NewApplication(c.String("config"))
	if err != nil {
		return err
	}
	defer app.Close()

	var classification *types.ClassificationResult
	if name := c.String("story-type"); name != "" {
		storyType, ok := types.ParseStoryType(name)
		if !ok {
			return cli.Exit(fmt.Sprintf("unknown story type %q", name), 2)
		}
		classification = &types.ClassificationResult{StoryType: storyType, Audience: c.String("audience")}
	} else if classification, err = app.orchestrator.ClassifyPrompt(c.Context, text); err != nil {
		return err
	}

	optimized, trace := app.orchestrator.Optimize(text, classification)
	if !c.Bool("analyze") {
		fmt.Fprintln(c.App.Writer, optimized)
		return nil
	}
	return printJSON(c.App.Writer, map[string]interface{}{
		"text":     optimized,
		"trace":    trace,
		"analysis": app.optimizer.Analyze(optimized),
	})
}

func generateAction(c *cli.Context) error {
	prompt := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(prompt) == "" {
		return cli.Exit("generate needs a prompt", 2)
	}

	app, err := NewApplication(c.String("config"))
	if err != nil {
		return err
	}
	defer app.Close()

	var result *types.OrchestrationResult
	switch {
	case c.String("image") != "":
		image, err := readImage(c.String("image"))
		if err != nil {
			return err
		}
		result, err = app.orchestrator.ProcessImageContent(c.Context, prompt, image, nil)
		if err != nil {
			return err
		}
	case len(c.StringSlice("source")) > 0:
		sources, err := readSources(c.StringSlice("source"))
		if err != nil {
			return err
		}
		result, err = app.orchestrator.ProcessContentWithScrapedData(c.Context, prompt, sources, nil)
		if err != nil {
			return err
		}
	default:
		result, err = app.orchestrator.ProcessContent(c.Context, prompt, nil)
		if err != nil {
			return err
		}
	}

	if c.Bool("text-only") {
		fmt.Fprintln(c.App.Writer, result.Text)
		return nil
	}
	return printJSON(c.App.Writer, result)
}

func tokenAction(c *cli.Context) error {
	app, err := NewApplication(c.String("config"))
	if err != nil {
		return err
	}
	defer app.Close()

	auth := security.NewAuthenticator(app.config.ToSecurityMiddlewareConfig().Auth, app.logger)
	token, err := auth.IssueToken(c.String("subject"), []string{"posts:write"})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}

func readInput(path string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}

func readImage(path string) (*types.ImagePayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return &types.ImagePayload{MIMEType: http.DetectContentType(data), Data: data}, nil
}

func readSources(paths []string) ([]types.ScrapedSource, error) {
	sources := make([]types.ScrapedSource, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read source %s: %w", path, err)
		}
		abs, _ := filepath.Abs(path)
		sources = append(sources, types.ScrapedSource{
			URL:     "file://" + filepath.ToSlash(abs),
			Content: string(data),
		})
	}
	return sources, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
