package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/passage"
	"github.com/poiesic/passage/chunker"
	"github.com/poiesic/passage/config"
	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/dedup"
	"github.com/poiesic/passage/ingestion"
	"github.com/poiesic/passage/reindex"
)

func newPipeline(db *passage.Database, cfg *config.AppConfig) (*ingestion.Pipeline, error) {
	c, err := chunker.New(cfg.ChunkerOptions()...)
	if err != nil {
		return nil, fmt.Errorf("invalid chunking configuration: %w", err)
	}
	opts := []ingestion.Option{
		ingestion.WithChunker(c),
		ingestion.WithBatchSize(cfg.Ingestion.BatchSize),
		ingestion.WithProbe(cfg.Ingestion.Probe),
	}
	if cfg.Ingestion.PoolSize > 0 {
		opts = append(opts, ingestion.WithPoolSize(cfg.Ingestion.PoolSize))
	}
	return db.NewIngestionPipeline(opts...)
}

func ingestCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	files := c.Args().Slice()
	if len(files) == 0 {
		return errors.New("at least one file is required")
	}
	title := c.String("title")
	if title != "" && len(files) > 1 {
		return errors.New("--title can only be used with a single file")
	}
	meta, err := parseMetadata(c.StringSlice("meta"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := newPipeline(db, cfg)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	var detector *dedup.Detector
	if c.Bool("dedup") {
		detector, err = db.NewDetector(dedup.WithThreshold(cfg.Dedup.Threshold))
		if err != nil {
			return err
		}
	}

	out := c.App.Writer
	var failed int
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		docTitle := title
		if docTitle == "" {
			docTitle = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}

		doc, err := pipeline.Ingest(ctx, ingestion.IngestRequest{
			Title:     docTitle,
			Source:    file,
			Raw:       raw,
			Markdown:  c.Bool("markdown"),
			Tags:      c.StringSlice("tag"),
			Status:    c.String("status"),
			LegalHold: c.Bool("legal-hold"),
			Metadata:  meta,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if doc == nil {
				return fmt.Errorf("failed to ingest %s: %w", file, err)
			}
			failed++
			fmt.Fprintf(out, "%d\t%s\tFAILED: %v\n", doc.Id, file, err)
			continue
		}
		fmt.Fprintf(out, "%d\t%s\t%d chunks\n", doc.Id, file, doc.ChunkCount)

		if detector != nil {
			edges, err := detector.RecordLineage(ctx, doc.Id)
			if err != nil {
				return fmt.Errorf("failed to record lineage for %s: %w", file, err)
			}
			for _, e := range edges {
				fmt.Fprintf(out, "\t%s %d (%.3f)\n", e.Relation, e.TargetId, e.Confidence)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed to process", failed, len(files))
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("a query is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	opts := cfg.SearchOptions()
	if c.IsSet("top-k") {
		opts.Rank.TopK = c.Int("top-k")
	}
	if c.IsSet("use-threshold") {
		opts.Rank.UseThreshold = c.Bool("use-threshold")
	}
	if c.IsSet("threshold") {
		opts.Rank.Threshold = c.Float64("threshold")
	}
	if c.IsSet("min-results") {
		opts.Rank.MinResults = c.Int("min-results")
	}
	if c.Bool("no-tags") {
		opts.UseTags = false
	}
	opts.Filter.AllowedStatuses = c.StringSlice("status")
	opts.Filter.ExcludedStatuses = c.StringSlice("exclude-status")
	if c.IsSet("legal-hold") {
		hold := c.Bool("legal-hold")
		opts.Filter.LegalHold = &hold
	}
	if opts.Filter.Metadata, err = parseMetadata(c.StringSlice("meta")); err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}
	result, err := searcher.Search(ctx, query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := c.App.Writer
	if c.Bool("verbose") {
		fmt.Fprintf(out, "Tags: %s (tag filtered: %t)\n", strings.Join(result.Tags.Tags, ", "), result.TagFiltered)
		for _, src := range result.Sources {
			title := "?"
			if doc, ok := result.Documents[src.DocumentId]; ok {
				title = doc.Title
			}
			fmt.Fprintf(out, "  %d\t%.3f\t%d hits\t%s\n", src.DocumentId, src.Relevance, src.Hits, title)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, result.Citations)
	return nil
}

func duplicatesCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	if c.NArg() != 1 {
		return errors.New("exactly one document id is required")
	}
	id, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", c.Args().First(), err)
	}
	docID := core.ID(id)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	detector, err := db.NewDetector(dedup.WithThreshold(cfg.Dedup.Threshold))
	if err != nil {
		return err
	}

	out := c.App.Writer
	exact, err := detector.FindDuplicates(ctx, docID)
	if err != nil {
		return err
	}
	for _, doc := range exact.ContentMatches {
		fmt.Fprintf(out, "content\t%d\t%s\n", doc.Id, doc.Title)
	}
	for _, doc := range exact.FileMatches {
		fmt.Fprintf(out, "file\t%d\t%s\n", doc.Id, doc.Title)
	}

	near, err := detector.FindNearDuplicates(ctx, docID, c.Float64("threshold"))
	if err != nil {
		return err
	}
	for _, n := range near {
		fmt.Fprintf(out, "near\t%d\t%s\t%.3f\n", n.DocumentId, n.Title, n.Similarity)
	}
	if exact.Empty() && len(near) == 0 {
		fmt.Fprintln(out, "No duplicates found.")
	}

	if c.Bool("record") {
		edges, err := detector.RecordLineage(ctx, docID)
		if err != nil {
			return fmt.Errorf("failed to record lineage: %w", err)
		}
		fmt.Fprintf(out, "Recorded %d lineage edges.\n", len(edges))
	}
	return nil
}

func reindexCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	reindexConfig := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reindexConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reindexConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reindexConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := newPipeline(db, cfg)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	var source reindex.Source
	if c.Bool("from-source") {
		source = reindex.FileSource
	}
	reindexer, err := db.NewReindexer(pipeline, source, reindexConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", cfg.Database)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	if _, err := reindexer.Run(ctx); err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}
	return nil
}

func probeCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, 2*cfg.AI.RequestTimeout)
	defer cancel()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	embedder := db.Provider().Embedder()
	if err := embedder.Probe(ctx); err != nil {
		return fmt.Errorf("embedding service unavailable: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "OK %s (%s, %d dimensions)\n", cfg.AI.EmbeddingHost, cfg.AI.EmbeddingModel, embedder.Dimensions())
	return nil
}
