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
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/passage"
	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "passage",
		Usage: "Document retrieval and duplicate detection",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				Value:   "passage.yaml",
				EnvVars: []string{"PASSAGE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides config)",
				EnvVars: []string{"PASSAGE_DB"},
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Add documents, then chunk and embed them",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "title",
						Usage: "Document title (single file only, defaults to the file name)",
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Workflow status stored on each document",
					},
					&cli.StringSliceFlag{
						Name:  "tag",
						Usage: "Topical tag, may be repeated",
					},
					&cli.StringSliceFlag{
						Name:  "meta",
						Usage: "Metadata as key=value, may be repeated",
					},
					&cli.BoolFlag{
						Name:  "legal-hold",
						Usage: "Mark documents as under legal hold",
					},
					&cli.BoolFlag{
						Name:  "markdown",
						Usage: "Treat input as Markdown regardless of file extension",
					},
					&cli.BoolFlag{
						Name:  "dedup",
						Usage: "Record duplicate lineage for each ingested document",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Find the passages most relevant to a query",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Maximum number of passages",
					},
					&cli.BoolFlag{
						Name:  "use-threshold",
						Usage: "Drop passages below the similarity threshold",
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Similarity threshold used with --use-threshold",
					},
					&cli.IntFlag{
						Name:  "min-results",
						Usage: "Passages kept even when below the threshold",
					},
					&cli.BoolFlag{
						Name:  "no-tags",
						Usage: "Skip tag-based candidate selection",
					},
					&cli.StringSliceFlag{
						Name:  "status",
						Usage: "Only search documents with this status, may be repeated",
					},
					&cli.StringSliceFlag{
						Name:  "exclude-status",
						Usage: "Skip documents with this status, may be repeated",
					},
					&cli.StringSliceFlag{
						Name:  "meta",
						Usage: "Only search documents with metadata key=value, may be repeated",
					},
					&cli.BoolFlag{
						Name:  "legal-hold",
						Usage: "Only search documents with this legal hold flag (when set)",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print query tags and per-document relevance",
					},
				},
			},
			{
				Name:      "duplicates",
				Usage:     "List exact and near duplicates of a document",
				ArgsUsage: "DOCUMENT_ID",
				Action:    duplicatesCommand,
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Near-duplicate similarity threshold (defaults to config)",
					},
					&cli.BoolFlag{
						Name:  "record",
						Usage: "Store the matches as lineage edges",
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild chunks and embeddings for every document",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "from-source",
						Usage: "Re-read and re-chunk each document's source file when available",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to fetch in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "probe",
				Usage:  "Check that the embedding service is reachable",
				Action: probeCommand,
			},
		},
	}
}

// setup loads a .env file when present and configures logging.
func setup(c *cli.Context) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return setupLogger(c)
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
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

// loadConfig reads the config file and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.AppConfig, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if db := c.String("db"); db != "" {
		cfg.Database = db
	}
	return cfg, nil
}

func openDatabase(cfg *config.AppConfig) (*passage.Database, error) {
	aiConfig := ai.NewConfig(cfg.AIOptions(cfg.APIKey())...)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	db, err := passage.NewDatabase(cfg.Database,
		passage.WithAIConfig(aiConfig),
		passage.WithQueryCache(cfg.Search.QueryCacheSize, cfg.Search.QueryCacheTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// parseMetadata turns key=value pairs into a map.
func parseMetadata(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q: expected key=value", pair)
		}
		meta[k] = strings.TrimSpace(v)
	}
	return meta, nil
}
