// Package cache puts an expiring LRU in front of an ai.Embedder.
//
// Search embeds every query; repeated queries within the TTL are served from
// memory. Batch calls are forwarded only for the texts that miss.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/core"
)

type lruEmbedder struct {
	next   ai.Embedder
	cache  *expirable.LRU[string, core.Vector]
	logger *slog.Logger
}

// WrapLRU returns e wrapped in a cache holding up to size vectors for ttl.
// A nil embedder or non-positive size or ttl returns e unchanged.
func WrapLRU(e ai.Embedder, size int, ttl time.Duration) ai.Embedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:   e,
		cache:  expirable.NewLRU[string, core.Vector](size, nil, ttl),
		logger: slog.Default().With("component", "embed-cache"),
	}
}

func (l *lruEmbedder) EmbedText(ctx context.Context, text string) (core.Vector, error) {
	if cached, ok := l.cache.Get(text); ok {
		l.logger.Debug("embedding cache hit")
		return clone(cached), nil
	}
	v, err := l.next.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	l.cache.Add(text, clone(v))
	return v, nil
}

func (l *lruEmbedder) EmbedTexts(ctx context.Context, texts []string) ([]core.Vector, error) {
	out := make([]core.Vector, len(texts))
	var missing []string
	var missingAt []int
	for i, t := range texts {
		if cached, ok := l.cache.Get(t); ok {
			out[i] = clone(cached)
			continue
		}
		missing = append(missing, t)
		missingAt = append(missingAt, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := l.next.EmbedTexts(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ai.ErrMalformedResponse, len(missing), len(vectors))
	}
	for j, v := range vectors {
		out[missingAt[j]] = v
		l.cache.Add(missing[j], clone(v))
	}
	return out, nil
}

func (l *lruEmbedder) Dimensions() int {
	return l.next.Dimensions()
}

func (l *lruEmbedder) Probe(ctx context.Context) error {
	return l.next.Probe(ctx)
}

func clone(v core.Vector) core.Vector {
	if len(v) == 0 {
		return nil
	}
	c := make(core.Vector, len(v))
	copy(c, v)
	return c
}

type cachedProvider struct {
	ai.AIProvider
	embedder ai.Embedder
}

// WrapProvider returns p with its embedder wrapped by WrapLRU. The tag
// extractor and Close pass through. A disabled cache returns p unchanged.
func WrapProvider(p ai.AIProvider, size int, ttl time.Duration) ai.AIProvider {
	if p == nil || size <= 0 || ttl <= 0 {
		return p
	}
	return &cachedProvider{AIProvider: p, embedder: WrapLRU(p.Embedder(), size, ttl)}
}

func (c *cachedProvider) Embedder() ai.Embedder {
	return c.embedder
}
