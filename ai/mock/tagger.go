package mock

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/poiesic/passage/ai"
)

// MockTagExtractor is a test double for ai.TagExtractor.
type MockTagExtractor struct {
	// ExtractTagsFunc is called by ExtractTags if set.
	// If nil, the query's words become its tags.
	ExtractTagsFunc func(ctx context.Context, query string) ai.TagResult

	callCount atomic.Int64
}

// NewMockTagExtractor creates a mock tag extractor with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockTagger().
func NewMockTagExtractor() *MockTagExtractor {
	return &MockTagExtractor{}
}

// ExtractTags returns the normalized words of the query, or a fallback for an empty query.
func (m *MockTagExtractor) ExtractTags(ctx context.Context, query string) ai.TagResult {
	m.callCount.Add(1)

	if m.ExtractTagsFunc != nil {
		return m.ExtractTagsFunc(ctx, query)
	}

	words := strings.FieldsFunc(query, func(r rune) bool {
		return strings.ContainsRune(" \t\n.,!?;:\"'()[]{}", r)
	})
	tags := ai.NormalizeTags(words, ai.DefaultMaxTags)
	if len(tags) == 0 {
		return ai.TagsFallback("no tags extracted")
	}
	return ai.TagsOK(tags)
}

// CallCount returns the number of times ExtractTags was called.
func (m *MockTagExtractor) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockTagExtractor) Reset() {
	m.callCount.Store(0)
	m.ExtractTagsFunc = nil
}
