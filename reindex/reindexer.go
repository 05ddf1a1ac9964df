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


package reindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/storage"
)

// Processor rebuilds one document's chunk set. *ingestion.Pipeline satisfies
// it. Each call is serialized with every other write to the same document.
type Processor interface {
	// Process re-chunks and re-embeds text.
	Process(ctx context.Context, docID core.ID, text string) error

	// Reembed embeds the stored chunk texts again with unchanged boundaries.
	Reembed(ctx context.Context, docID core.ID) error

	// UpdateHashes records new content and file hashes.
	UpdateHashes(ctx context.Context, docID core.ID, contentHash, fileHash string) error
}

// Config holds configuration for the reindexing operation.
type Config struct {
	// BatchSize is the number of documents fetched per page
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per document
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 10,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Summary reports the outcome of a run.
type Summary struct {
	Total      int
	Rechunked  int
	Reembedded int
	Failed     int
	Elapsed    time.Duration
}

// Reindexer rebuilds chunk sets for every stored document.
type Reindexer struct {
	documents storage.DocumentRepository
	processor Processor
	source    Source
	config    *Config
	progress  io.Writer
	iterator  *DocumentIterator
	logger    *slog.Logger
}

// NewReindexer creates a new reindexer.
// source may be nil, in which case stored chunks are always re-embedded.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(
	documents storage.DocumentRepository,
	processor Processor,
	source Source,
	config *Config,
	progress io.Writer,
) *Reindexer {
	if config == nil {
		config = DefaultConfig()
	}
	if source == nil {
		source = NoSource
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reindexer{
		documents: documents,
		processor: processor,
		source:    source,
		config:    config,
		progress:  progress,
		iterator:  NewDocumentIterator(documents, config.BatchSize),
		logger:    slog.Default().With("component", "reindex"),
	}
}

// Run reindexes every document. A document that fails is counted and logged
// and the run moves on; Run then returns ErrIncomplete with the summary.
// Cancellation stops the run before the next document.
func (r *Reindexer) Run(ctx context.Context) (*Summary, error) {
	total, err := r.iterator.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	summary := &Summary{Total: total}
	if total == 0 {
		fmt.Fprintf(r.progress, "No documents found in database (0 documents)\n")
		return summary, nil
	}

	fmt.Fprintf(r.progress, "Starting reindex of %d documents (batch size: %d)\n",
		total, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(docs []*core.Document) error {
		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				return err
			}
			rechunked, err := r.reindexDocument(ctx, doc)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.Error("failed to reindex document", "doc", doc.Id, "err", err)
				summary.Failed++
				tracker.Failed()
				continue
			}
			if rechunked {
				summary.Rechunked++
			} else {
				summary.Reembedded++
			}
			tracker.Succeeded()
		}
		return nil
	})
	tracker.Finish()
	summary.Elapsed = tracker.Elapsed()
	if err != nil {
		return summary, err
	}

	fmt.Fprintf(r.progress, "Reindex complete. %d rechunked, %d re-embedded, %d failed in %v\n",
		summary.Rechunked, summary.Reembedded, summary.Failed, summary.Elapsed.Round(time.Millisecond))

	if summary.Failed > 0 {
		return summary, fmt.Errorf("%w: %d of %d documents failed", ErrIncomplete, summary.Failed, total)
	}
	return summary, nil
}

// reindexDocument rebuilds one document, reporting whether it was re-chunked
// from its source or re-embedded from stored chunks.
func (r *Reindexer) reindexDocument(ctx context.Context, doc *core.Document) (bool, error) {
	src, err := r.source(ctx, doc)
	switch {
	case errors.Is(err, ErrNoSource) || (err == nil && src.Text == ""):
		return false, r.reembedStored(ctx, doc)
	case err != nil:
		return false, fmt.Errorf("read source: %w", err)
	}

	if err := r.refreshHashes(ctx, doc, src); err != nil {
		return false, err
	}
	err = RetryWithBackoff(ctx, func() error {
		return r.processor.Process(ctx, doc.Id, src.Text)
	}, r.config.MaxRetries, r.config.RetryDelay)
	return true, err
}

// refreshHashes updates the stored hashes when the source changed since ingestion.
func (r *Reindexer) refreshHashes(ctx context.Context, doc *core.Document, src SourceText) error {
	raw := src.Raw
	if len(raw) == 0 {
		raw = []byte(src.Text)
	}
	contentHash, fileHash := core.ContentHash(src.Text), core.FileHash(raw)
	if contentHash == doc.ContentHash && fileHash == doc.FileHash {
		return nil
	}

	r.logger.Info("document source changed", "doc", doc.Id, "source", doc.Source)
	return r.processor.UpdateHashes(ctx, doc.Id, contentHash, fileHash)
}

// reembedStored re-embeds a document's current chunk texts. A document whose
// last processing failed has no trustworthy chunk set and needs its source.
func (r *Reindexer) reembedStored(ctx context.Context, doc *core.Document) error {
	if !doc.Processed {
		return fmt.Errorf("%w: document %d failed processing (%s)", ErrNeedsSource, doc.Id, doc.ProcessingError)
	}
	err := RetryWithBackoff(ctx, func() error {
		return r.processor.Reembed(ctx, doc.Id)
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return fmt.Errorf("failed to re-embed after %d attempts: %w", r.config.MaxRetries, err)
	}
	return nil
}
