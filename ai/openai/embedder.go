package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/core"
)

const probeText = "ping"

// Embedder implements ai.Embedder against an OpenAI-compatible /embeddings endpoint.
type Embedder struct {
	client        openai.Client
	model         string
	maxInputChars int
	batchSize     int
	timeout       time.Duration
	maxRetries    int
	limiter       *rate.Limiter
	dims          atomic.Int64
	logger        *slog.Logger

	// initialInterval is the first retry delay; tests shorten it.
	initialInterval time.Duration
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config, opts ...option.RequestOption) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Local servers ignore the token but the client refuses to send an empty one.
	key := config.APIKey
	if key == "" {
		key = "none"
	}
	clientOpts := []option.RequestOption{
		option.WithBaseURL(strings.TrimSuffix(config.EmbeddingHost, "/") + "/"),
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	clientOpts = append(clientOpts, opts...)

	e := &Embedder{
		client:          openai.NewClient(clientOpts...),
		model:           config.EmbeddingModel,
		maxInputChars:   config.MaxInputChars,
		batchSize:       config.BatchSize,
		timeout:         config.RequestTimeout,
		maxRetries:      config.MaxRetries,
		logger:          slog.Default().With("component", "openai-embedder"),
		initialInterval: 500 * time.Millisecond,
	}
	if config.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return e, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// Dimensions returns the vector size seen so far, 0 before the first response.
func (e *Embedder) Dimensions() int {
	return int(e.dims.Load())
}

// Probe embeds a single short string to check connectivity and credentials.
func (e *Embedder) Probe(ctx context.Context) error {
	if _, err := e.EmbedText(ctx, probeText); err != nil {
		return fmt.Errorf("%w: %w", ai.ErrProviderUnavailable, err)
	}
	return nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) (core.Vector, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds texts in batches of the configured size. Results are in input
// order. Any failure fails the whole call.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([]core.Vector, error) {
	if len(texts) == 0 {
		return []core.Vector{}, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("text %d: %w", i, ai.ErrEmptyInput)
		}
	}

	e.logger.Debug("generating embeddings", "count", len(texts), "batch_size", e.batchSize)

	out := make([]core.Vector, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+e.batchSize, len(texts))
		vectors, err := e.embedBatchWithRetry(ctx, e.truncate(texts[start:end]))
		if err != nil {
			e.logger.Error("failed to generate embeddings", "batch_start", start, "batch_end", end, "err", err)
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// truncate caps each input at maxInputChars characters without splitting a rune.
func (e *Embedder) truncate(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		if utf8.RuneCountInString(t) > e.maxInputChars {
			t = string([]rune(t)[:e.maxInputChars])
			e.logger.Debug("truncated embedding input", "index", i, "max_chars", e.maxInputChars)
		}
		out[i] = t
	}
	return out
}

// embedBatchWithRetry sends one batch. Rate limits, server errors and network
// failures are retried with exponential backoff; everything else fails immediately.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([]core.Vector, error) {
	var vectors []core.Vector

	operation := func() error {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		resp, err := e.client.Embeddings.New(callCtx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			if ctx.Err() == nil && isRetryable(err) {
				e.logger.Warn("transient embedding failure, retrying", "err", err)
				return err
			}
			return backoff.Permanent(err)
		}

		v, err := e.associate(resp.Data, len(texts))
		if err != nil {
			return backoff.Permanent(err)
		}
		vectors = v
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.initialInterval
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.maxRetries)), ctx))
	return vectors, err
}

// associate maps response items back to input positions using each item's index.
// Every input must be covered exactly once and all vectors must agree on size.
func (e *Embedder) associate(data []openai.Embedding, n int) ([]core.Vector, error) {
	if len(data) != n {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ai.ErrMalformedResponse, len(data), n)
	}
	out := make([]core.Vector, n)
	for _, d := range data {
		idx := int(d.Index)
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("%w: index %d out of range for batch of %d", ai.ErrMalformedResponse, d.Index, n)
		}
		if out[idx] != nil {
			return nil, fmt.Errorf("%w: duplicate index %d", ai.ErrMalformedResponse, idx)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", ai.ErrMalformedResponse, idx)
		}
		vec := toVector(d.Embedding)
		if err := e.observeDimensions(len(vec)); err != nil {
			return nil, err
		}
		out[idx] = vec
	}
	return out, nil
}

func (e *Embedder) observeDimensions(n int) error {
	if e.dims.CompareAndSwap(0, int64(n)) {
		return nil
	}
	if got := int(e.dims.Load()); got != n {
		return fmt.Errorf("%w: provider returned %d dimensions, expected %d", core.ErrDimensionMismatch, n, got)
	}
	return nil
}

// isRetryable reports whether err is a rate limit, server side or network failure.
func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// toVector converts the API's float64 values to float32.
func toVector(f64 []float64) core.Vector {
	v := make(core.Vector, len(f64))
	for i, x := range f64 {
		v[i] = float32(x)
	}
	return v
}
