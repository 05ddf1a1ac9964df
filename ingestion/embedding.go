package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/core"
)

// embeddingProcessor embeds chunk texts in batches on a shared worker pool.
type embeddingProcessor struct {
	embedder  ai.Embedder
	pool      *ants.Pool
	batchSize int
	logger    *slog.Logger
}

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(embedder ai.Embedder, pool *ants.Pool, batchSize int, logger *slog.Logger) (*embeddingProcessor, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if pool == nil {
		return nil, fmt.Errorf("worker pool required")
	}
	if batchSize < 1 {
		batchSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		embedder:  embedder,
		pool:      pool,
		batchSize: batchSize,
		logger:    logger.With("processor", "embeddings"),
	}, nil
}

// embed returns one vector per text, in text order. Batches run concurrently;
// each checks ctx before calling the provider, and the first failure cancels
// the batches that have not started.
func (ep *embeddingProcessor) embed(ctx context.Context, texts []string) ([]core.Vector, error) {
	if len(texts) == 0 {
		return []core.Vector{}, nil
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	batches := (len(texts) + ep.batchSize - 1) / ep.batchSize
	results := make([][]core.Vector, batches)
	var wg sync.WaitGroup

	ep.logger.Debug("embedding chunks", "chunks", len(texts), "batches", batches)
	for b := range batches {
		start := b * ep.batchSize
		end := min(start+ep.batchSize, len(texts))
		batch := texts[start:end]

		wg.Add(1)
		err := ep.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			vectors, err := ep.embedder.EmbedTexts(ctx, batch)
			if err == nil && len(vectors) != len(batch) {
				err = fmt.Errorf("%w: batch %d expected %d embeddings, received %d", ai.ErrMalformedResponse, b, len(batch), len(vectors))
			}
			if err != nil {
				cancel(err)
				return
			}
			results[b] = vectors
		})
		if err != nil {
			wg.Done()
			cancel(fmt.Errorf("submit embedding batch: %w", err))
			break
		}
	}
	wg.Wait()

	if err := context.Cause(ctx); err != nil {
		return nil, err
	}

	// Ordered merge: batch b covers texts[b*batchSize:].
	vectors := make([]core.Vector, 0, len(texts))
	for _, r := range results {
		vectors = append(vectors, r...)
	}
	return vectors, nil
}
