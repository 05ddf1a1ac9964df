package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/core"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingItem struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// fakeEmbeddingServer answers /v1/embeddings. respond builds the data items for one request;
// the default gives input i the vector [len(text), i+1] and returns items in reverse order.
type fakeEmbeddingServer struct {
	mu       sync.Mutex
	requests []embeddingRequest
	respond  func(call int, req embeddingRequest) (int, []embeddingItem)
	srv      *httptest.Server
}

func newFakeEmbeddingServer(t *testing.T) *fakeEmbeddingServer {
	f := &fakeEmbeddingServer{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		call := len(f.requests)
		respond := f.respond
		f.mu.Unlock()

		status, items := http.StatusOK, reversedItems(req)
		if respond != nil {
			status, items = respond(call, req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "failure", "type": "test"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   items,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func reversedItems(req embeddingRequest) []embeddingItem {
	items := make([]embeddingItem, 0, len(req.Input))
	for i := len(req.Input) - 1; i >= 0; i-- {
		items = append(items, embeddingItem{
			Object:    "embedding",
			Index:     i,
			Embedding: []float64{float64(len([]rune(req.Input[i]))), float64(i + 1)},
		})
	}
	return items
}

func (f *fakeEmbeddingServer) calls() []embeddingRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]embeddingRequest(nil), f.requests...)
}

func testEmbedder(t *testing.T, f *fakeEmbeddingServer, opts ...ai.ConfigOption) *Embedder {
	t.Helper()
	cfg := ai.NewConfig(append([]ai.ConfigOption{
		ai.WithHost(f.srv.URL),
		ai.WithEmbeddingModel("test-embed"),
		ai.WithMaxRetries(2),
		ai.WithRequestTimeout(5 * time.Second),
	}, opts...)...)
	e, err := newEmbedder(cfg)
	require.NoError(t, err)
	e.initialInterval = time.Millisecond
	return e
}

func TestEmbedder_ReassociatesByIndex(t *testing.T) {
	f := newFakeEmbeddingServer(t)
	e := testEmbedder(t, f)

	vectors, err := e.EmbedTexts(context.Background(), []string{"a", "bbb", "cc"})
	require.NoError(t, err)

	require.Len(t, vectors, 3)
	assert.Equal(t, core.Vector{1, 1}, vectors[0])
	assert.Equal(t, core.Vector{3, 2}, vectors[1])
	assert.Equal(t, core.Vector{2, 3}, vectors[2])
	assert.Equal(t, 2, e.Dimensions())

	calls := f.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "test-embed", calls[0].Model)
}

func TestEmbedder_Batches(t *testing.T) {
	f := newFakeEmbeddingServer(t)
	e := testEmbedder(t, f, ai.WithBatchSize(2))

	vectors, err := e.EmbedTexts(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)

	calls := f.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, []string{"a", "bb"}, calls[0].Input)
	assert.Equal(t, []string{"ccc", "dddd"}, calls[1].Input)
	assert.Equal(t, []string{"eeeee"}, calls[2].Input)

	require.Len(t, vectors, 5)
	for i, v := range vectors {
		assert.Equal(t, float32(i+1), v[0], "vector %d out of order", i)
	}
}

func TestEmbedder_TruncatesLongInput(t *testing.T) {
	f := newFakeEmbeddingServer(t)
	e := testEmbedder(t, f, ai.WithMaxInputChars(5))

	_, err := e.EmbedTexts(context.Background(), []string{"héllo wörld", "ok"})
	require.NoError(t, err)

	calls := f.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"héllo", "ok"}, calls[0].Input)
}

func TestEmbedder_MalformedResponses(t *testing.T) {
	tests := []struct {
		name  string
		items func(req embeddingRequest) []embeddingItem
	}{
		{"missing item", func(req embeddingRequest) []embeddingItem {
			return reversedItems(req)[1:]
		}},
		{"duplicate index", func(req embeddingRequest) []embeddingItem {
			items := reversedItems(req)
			items[0].Index = items[1].Index
			return items
		}},
		{"index out of range", func(req embeddingRequest) []embeddingItem {
			items := reversedItems(req)
			items[0].Index = len(req.Input)
			return items
		}},
		{"empty vector", func(req embeddingRequest) []embeddingItem {
			items := reversedItems(req)
			items[0].Embedding = nil
			return items
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeEmbeddingServer(t)
			f.respond = func(_ int, req embeddingRequest) (int, []embeddingItem) {
				return http.StatusOK, tt.items(req)
			}
			e := testEmbedder(t, f)

			vectors, err := e.EmbedTexts(context.Background(), []string{"a", "b", "c"})
			assert.ErrorIs(t, err, ai.ErrMalformedResponse)
			assert.Nil(t, vectors)
			assert.Len(t, f.calls(), 1, "malformed responses are not retried")
		})
	}
}

func TestEmbedder_DimensionDrift(t *testing.T) {
	f := newFakeEmbeddingServer(t)
	f.respond = func(call int, req embeddingRequest) (int, []embeddingItem) {
		items := reversedItems(req)
		if call > 1 {
			for i := range items {
				items[i].Embedding = append(items[i].Embedding, 0)
			}
		}
		return http.StatusOK, items
	}
	e := testEmbedder(t, f, ai.WithBatchSize(1))

	_, err := e.EmbedTexts(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestEmbedder_RetriesTransientErrors(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			f := newFakeEmbeddingServer(t)
			f.respond = func(call int, req embeddingRequest) (int, []embeddingItem) {
				if call == 1 {
					return status, nil
				}
				return http.StatusOK, reversedItems(req)
			}
			e := testEmbedder(t, f)

			vectors, err := e.EmbedTexts(context.Background(), []string{"abc"})
			require.NoError(t, err)
			assert.Equal(t, core.Vector{3, 1}, vectors[0])
			assert.Len(t, f.calls(), 2)
		})
	}
}

func TestEmbedder_GivesUpAfterMaxRetries(t *testing.T) {
	f := newFakeEmbeddingServer(t)
	f.respond = func(int, embeddingRequest) (int, []embeddingItem) {
		return http.StatusTooManyRequests, nil
	}
	e := testEmbedder(t, f, ai.WithMaxRetries(2))

	_, err := e.EmbedTexts(context.Background(), []string{"abc"})
	require.Error(t, err)
	assert.Len(t, f.calls(), 3)
}

func TestEmbedder_DoesNotRetryClientErrors(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			f := newFakeEmbeddingServer(t)
			f.respond = func(int, embeddingRequest) (int, []embeddingItem) {
				return status, nil
			}
			e := testEmbedder(t, f)

			_, err := e.EmbedTexts(context.Background(), []string{"abc"})
			require.Error(t, err)
			assert.Len(t, f.calls(), 1)
		})
	}
}

func TestEmbedder_RejectsEmptyInput(t *testing.T) {
	f := newFakeEmbeddingServer(t)
	e := testEmbedder(t, f)

	_, err := e.EmbedTexts(context.Background(), []string{"ok", "  "})
	assert.ErrorIs(t, err, ai.ErrEmptyInput)
	assert.Empty(t, f.calls())

	vectors, err := e.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbedder_CancelledContext(t *testing.T) {
	f := newFakeEmbeddingServer(t)
	e := testEmbedder(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.EmbedTexts(ctx, []string{"abc"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.calls())
}

func TestEmbedder_Probe(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		f := newFakeEmbeddingServer(t)
		e := testEmbedder(t, f)

		require.NoError(t, e.Probe(context.Background()))
		calls := f.calls()
		require.Len(t, calls, 1)
		assert.Equal(t, []string{"ping"}, calls[0].Input)
	})

	t.Run("bad credentials", func(t *testing.T) {
		f := newFakeEmbeddingServer(t)
		f.respond = func(int, embeddingRequest) (int, []embeddingItem) {
			return http.StatusUnauthorized, nil
		}
		e := testEmbedder(t, f)

		err := e.Probe(context.Background())
		assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
	})
}

func TestNewEmbedder_InvalidConfig(t *testing.T) {
	_, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingModel("")))
	assert.ErrorIs(t, err, ai.ErrInvalidConfig)
}
