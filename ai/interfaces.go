package ai

import (
	"context"

	"github.com/poiesic/passage/core"
)

// Embedder turns text into fixed-dimension vectors.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText embeds a single text.
	EmbedText(ctx context.Context, text string) (core.Vector, error)

	// EmbedTexts embeds a batch of texts. The result has one vector per input,
	// in input order, or an error. Partial results are never returned.
	EmbedTexts(ctx context.Context, texts []string) ([]core.Vector, error)

	// Dimensions reports the vector size observed so far, or 0 before the first call.
	Dimensions() int

	// Probe performs one minimal request to verify the provider is reachable
	// and the credentials are accepted.
	Probe(ctx context.Context) error
}

// TagExtractor derives short topical tags from a search query.
// Implementations never fail: problems are reported through TagResult.Fallback.
type TagExtractor interface {
	ExtractTags(ctx context.Context, query string) TagResult
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// TagExtractor returns the query tagging service.
	TagExtractor() TagExtractor

	// Close releases resources held by the provider and its services.
	Close() error
}
