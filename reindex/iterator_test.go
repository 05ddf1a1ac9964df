package reindex

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/storage/badger"
)

func setupTestRepositories(t *testing.T) *badger.Repositories {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func addDocuments(t *testing.T, repos *badger.Repositories, n int) []*core.Document {
	t.Helper()
	docs := make([]*core.Document, n)
	for i := range docs {
		text := fmt.Sprintf("document %d", i)
		docs[i] = &core.Document{Title: text, ContentHash: core.ContentHash(text), FileHash: core.FileHash([]byte(text))}
	}
	added, err := repos.Documents.AddDocuments(context.Background(), docs...)
	require.NoError(t, err)
	return added
}

func TestDocumentIterator_Pages(t *testing.T) {
	repos := setupTestRepositories(t)
	added := addDocuments(t, repos, 5)

	it := NewDocumentIterator(repos.Documents, 2)
	var sizes []int
	var ids []core.ID
	err := it.ForEach(context.Background(), func(docs []*core.Document) error {
		sizes = append(sizes, len(docs))
		for _, d := range docs {
			ids = append(ids, d.Id)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)
	for i, d := range added {
		assert.Equal(t, d.Id, ids[i])
	}

	count, err := it.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestDocumentIterator_ExactMultiple(t *testing.T) {
	repos := setupTestRepositories(t)
	addDocuments(t, repos, 4)

	calls := 0
	err := NewDocumentIterator(repos.Documents, 2).ForEach(context.Background(), func(docs []*core.Document) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDocumentIterator_Empty(t *testing.T) {
	repos := setupTestRepositories(t)

	called := false
	err := NewDocumentIterator(repos.Documents, 0).ForEach(context.Background(), func(docs []*core.Document) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestDocumentIterator_StopsOnError(t *testing.T) {
	repos := setupTestRepositories(t)
	addDocuments(t, repos, 5)

	boom := errors.New("boom")
	calls := 0
	err := NewDocumentIterator(repos.Documents, 2).ForEach(context.Background(), func(docs []*core.Document) error {
		calls++
		return boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestDocumentIterator_Canceled(t *testing.T) {
	repos := setupTestRepositories(t)
	addDocuments(t, repos, 5)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := NewDocumentIterator(repos.Documents, 2).ForEach(ctx, func(docs []*core.Document) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
