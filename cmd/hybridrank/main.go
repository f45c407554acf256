// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/hybridrank"
	"github.com/poiesic/hybridrank/ai"
	"github.com/poiesic/hybridrank/ai/openai"
	"github.com/poiesic/hybridrank/config"
)

// newProvider builds the embedding provider for commands that open an index.
var newProvider = func(cfg *ai.Config) (ai.AIProvider, error) {
	return openai.NewProvider(cfg)
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	dbFlag := &cli.StringFlag{
		Name:    "db",
		Aliases: []string{"d"},
		Usage:   "Path to BadgerDB database directory (overrides config)",
	}

	return &cli.App{
		Name:  "hybridrank",
		Usage: "Hybrid lexical and semantic document retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file (default ./hybridrank.yaml or ~/.config/hybridrank/config.yaml)",
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Load environment variables from `FILE` before reading config",
				Value: cli.NewStringSlice(".env"),
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Index documents from YAML or JSON files",
				ArgsUsage: "FILE... (- for stdin)",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					dbFlag,
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Concurrent embedding workers (0 uses config)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Rank documents against a query",
				ArgsUsage: "QUERY...",
				Action:    searchCommand,
				Flags: []cli.Flag{
					dbFlag,
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results (0 uses config)",
					},
					&cli.StringSliceFlag{
						Name:  "document-set",
						Usage: "Restrict to documents in `SET` (repeatable, any matches)",
					},
					&cli.StringSliceFlag{
						Name:  "source-type",
						Usage: "Restrict to documents of `TYPE` (repeatable, any matches)",
					},
					&cli.StringSliceFlag{
						Name:  "meta",
						Usage: "Require metadata `KEY=VALUE` (repeatable, all must match)",
					},
					&cli.TimestampFlag{
						Name:   "since",
						Usage:  "Only documents updated on or after this date",
						Layout: time.DateOnly,
					},
					&cli.TimestampFlag{
						Name:   "until",
						Usage:  "Only documents updated on or before this date",
						Layout: time.DateOnly,
					},
					&cli.BoolFlag{
						Name:  "include-hidden",
						Usage: "Include hidden documents",
					},
					&cli.BoolFlag{
						Name:  "explain",
						Usage: "Print per-stage fusion details",
					},
				},
			},
			{
				Name:      "feedback",
				Usage:     "Adjust a document's feedback count",
				ArgsUsage: "ID",
				Action:    feedbackCommand,
				Flags: []cli.Flag{
					dbFlag,
					&cli.IntFlag{
						Name:  "delta",
						Usage: "Amount added to the boost count; negative demotes",
						Value: 1,
					},
				},
			},
			{
				Name:      "hide",
				Usage:     "Exclude a document from default searches",
				ArgsUsage: "ID",
				Action:    hiddenCommand(true),
				Flags:     []cli.Flag{dbFlag},
			},
			{
				Name:      "unhide",
				Usage:     "Restore a hidden document",
				ArgsUsage: "ID",
				Action:    hiddenCommand(false),
				Flags:     []cli.Flag{dbFlag},
			},
			{
				Name:      "delete",
				Usage:     "Remove a document from the index",
				ArgsUsage: "ID",
				Action:    deleteCommand,
				Flags:     []cli.Flag{dbFlag},
			},
			{
				Name:   "reembed",
				Usage:  "Re-derive every document's vectors with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					dbFlag,
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL (overrides config)",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name (overrides config)",
					},
					&cli.IntFlag{
						Name:  "dimension",
						Usage: "Embedding dimension (overrides config)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per document",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.BoolFlag{
						Name:  "restart",
						Usage: "Ignore any saved checkpoint and start from the first document",
					},
				},
			},
			{
				Name:  "config",
				Usage: "Manage the configuration file",
				Subcommands: []*cli.Command{
					{
						Name:   "init",
						Usage:  "Write a config file with default values",
						Action: configInitCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "path",
								Usage: "Where to write the file",
								Value: config.FileName,
							},
							&cli.BoolFlag{
								Name:  "force",
								Usage: "Overwrite an existing file",
							},
						},
					},
				},
			},
		},
	}
}

// setup loads .env files and the config, then configures logging. The
// --log-level flag wins over the config file.
func setup(c *cli.Context) error {
	if err := config.LoadEnv(c.StringSlice("env-file")...); err != nil {
		return err
	}

	var (
		cfg *config.AppConfig
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.Load(config.FileName)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	c.App.Metadata = map[string]any{"config": cfg}

	level := cfg.LogLevel
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	return setupLogger(level)
}

func setupLogger(levelStr string) error {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// appConfig returns the config loaded by setup with command flag overrides
// applied.
func appConfig(c *cli.Context) *config.AppConfig {
	cfg, ok := c.App.Metadata["config"].(*config.AppConfig)
	if !ok {
		cfg = config.Default()
	}
	if c.IsSet("db") {
		cfg.Storage.Path = c.String("db")
	}
	return cfg
}

// openIndex opens the index described by cfg.
func openIndex(cfg *config.AppConfig) (*hybridrank.Index, error) {
	if cfg.Storage.Path == "" && !cfg.Storage.InMemory {
		return nil, fmt.Errorf("database path is required")
	}

	fusionConfig, err := cfg.FusionConfig()
	if err != nil {
		return nil, err
	}

	aiConfig := cfg.AIConfig()
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	provider, err := newProvider(aiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	opts := []hybridrank.Option{
		hybridrank.WithProvider(provider),
		hybridrank.WithFusionConfig(fusionConfig),
		hybridrank.WithLogger(slog.Default()),
	}
	if cfg.Storage.InMemory {
		opts = append(opts, hybridrank.WithInMemory())
	}

	idx, err := hybridrank.NewIndex(cfg.Storage.Path, opts...)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return idx, nil
}
