package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "postgen",
		Usage: "classify post ideas and generate optimized social posts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML config file",
				EnvVars: []string{"POSTGEN_CONFIG"},
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "dotenv files to load before reading configuration",
				Value: cli.NewStringSlice(".env"),
			},
		},
		Before: loadEnvFiles,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serveAction,
			},
			{
				Name:      "classify",
				Usage:     "classify a prompt and print the result as JSON",
				ArgsUsage: "<prompt>",
				Action:    classifyAction,
			},
			{
				Name:      "optimize",
				Usage:     "optimize post text read from a file or stdin",
				ArgsUsage: "<file|->",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "story-type", Usage: "journey, technical, achievement, learning or general"},
					&cli.StringFlag{Name: "audience", Usage: "target audience hint"},
					&cli.BoolFlag{Name: "analyze", Usage: "also print quality metrics and suggestions"},
				},
				Action: optimizeAction,
			},
			{
				Name:      "generate",
				Usage:     "run the full pipeline for a prompt",
				ArgsUsage: "<prompt>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "image", Usage: "path to an image to describe and post about"},
					&cli.StringSliceFlag{Name: "source", Usage: "path to a scraped HTML or text file (repeatable)"},
					&cli.BoolFlag{Name: "text-only", Usage: "print only the post text"},
				},
				Action: generateAction,
			},
			{
				Name:  "token",
				Usage: "issue a signed API token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Required: true, Usage: "token subject"},
				},
				Action: tokenAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "postgen: %v\n", err)
		os.Exit(1)
	}
}

// loadEnvFiles loads every dotenv file that exists. Existing environment
// variables win.
func loadEnvFiles(c *cli.Context) error {
	for _, path := range c.StringSlice("env-file") {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}
