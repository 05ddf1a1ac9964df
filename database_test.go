package passage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/ai/mock"
	"github.com/poiesic/passage/ingestion"
	"github.com/poiesic/passage/search"
)

func newTestDatabase(t *testing.T, opts ...DatabaseOption) (*Database, *mock.MockProvider) {
	t.Helper()
	provider := mock.NewMockProvider().(*mock.MockProvider)
	opts = append([]DatabaseOption{WithProvider(provider)}, opts...)
	db, err := NewDatabase(filepath.Join(t.TempDir(), "db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, provider
}

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		db, _ := newTestDatabase(t)

		assert.NotNil(t, db.Documents())
		assert.NotNil(t, db.Chunks())
		assert.NotNil(t, db.Lineage())
		assert.NotNil(t, db.Provider())
		assert.NotNil(t, db.logger)
	})

	t.Run("default provider from config", func(t *testing.T) {
		db, err := NewDatabase(filepath.Join(t.TempDir(), "db"))
		require.NoError(t, err)
		defer db.Close()
		assert.NotNil(t, db.Provider())
	})

	t.Run("in memory", func(t *testing.T) {
		db, err := NewDatabase("", WithInMemory(), WithProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		assert.NoError(t, db.Close())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to create a database at a file path instead of directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0644))

		db, err := NewDatabase(tmpFile, WithProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("error with invalid AI config", func(t *testing.T) {
		db, err := NewDatabase(filepath.Join(t.TempDir(), "db"),
			WithAIConfig(ai.NewConfig(ai.WithAPIKey(""))))
		assert.ErrorIs(t, err, ai.ErrInvalidConfig)
		assert.Nil(t, db)
	})
}

func TestDatabase_Close(t *testing.T) {
	provider := mock.NewMockProvider().(*mock.MockProvider)
	db, err := NewDatabase(t.TempDir(), WithProvider(provider))
	require.NoError(t, err)

	assert.NoError(t, db.Close())
	assert.True(t, provider.Closed())
}

func TestDatabase_FactoryMethods(t *testing.T) {
	db, _ := newTestDatabase(t)

	t.Run("can create ingestion pipeline", func(t *testing.T) {
		pipeline, err := db.NewIngestionPipeline()
		require.NoError(t, err)
		require.NotNil(t, pipeline)
		pipeline.Release()
	})

	t.Run("can create searcher", func(t *testing.T) {
		searcher, err := db.NewSearcher()
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("can create detector", func(t *testing.T) {
		detector, err := db.NewDetector()
		require.NoError(t, err)
		assert.NotNil(t, detector)
	})

	t.Run("reindexer requires a processor", func(t *testing.T) {
		_, err := db.NewReindexer(nil, nil, nil, nil)
		assert.ErrorIs(t, err, ErrProcessorRequired)
	})
}

func TestDatabase_EndToEnd(t *testing.T) {
	ctx := context.Background()
	db, provider := newTestDatabase(t, WithQueryCache(16, time.Minute))

	pipeline, err := db.NewIngestionPipeline(ingestion.WithPoolSize(2))
	require.NoError(t, err)
	defer pipeline.Release()

	text := "Retention schedules apply to every contract. Contracts are kept for seven years."
	first, err := pipeline.Ingest(ctx, ingestion.IngestRequest{Title: "Retention", Text: text, Tags: []string{"retention"}})
	require.NoError(t, err)
	require.True(t, first.Processed)

	second, err := pipeline.Ingest(ctx, ingestion.IngestRequest{Title: "Retention copy", Text: strings.ToUpper(text)})
	require.NoError(t, err)

	t.Run("search finds the document", func(t *testing.T) {
		searcher, err := db.NewSearcher()
		require.NoError(t, err)

		result, err := searcher.Search(ctx, "retention schedules", search.DefaultOptions())
		require.NoError(t, err)
		assert.False(t, result.NoRelevantInformation)
		require.NotEmpty(t, result.Sources)
		assert.Contains(t, result.Citations, "Retention")

		// The repeated query embedding is served from the cache.
		before := provider.GetMockEmbedder().CallCount()
		_, err = searcher.Search(ctx, "retention schedules", search.DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, before, provider.GetMockEmbedder().CallCount())
	})

	t.Run("detector finds the normalized duplicate", func(t *testing.T) {
		detector, err := db.NewDetector()
		require.NoError(t, err)

		matches, err := detector.FindDuplicates(ctx, second.Id)
		require.NoError(t, err)
		require.Len(t, matches.ContentMatches, 1)
		assert.Equal(t, first.Id, matches.ContentMatches[0].Id)
	})

	t.Run("reindex re-embeds stored chunks", func(t *testing.T) {
		var out bytes.Buffer
		reindexer, err := db.NewReindexer(pipeline, nil, nil, &out)
		require.NoError(t, err)

		summary, err := reindexer.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Total)
		assert.Equal(t, 2, summary.Reembedded)
		assert.Contains(t, out.String(), "Reindex complete")
	})
}
