package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/passage/core"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EmbedText(ctx, "hello")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "hello")
	require.NoError(t, err)
	c, err := m.EmbedText(ctx, "goodbye")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, DefaultDimensions)
	assert.InDelta(t, 1.0, a.Norm(), 1e-5)
	assert.InDelta(t, 1.0, core.CosineSimilarity(a, b), 1e-6)
	assert.Equal(t, 3, m.CallCount())
}

func TestMockEmbedder_Injection(t *testing.T) {
	m := NewMockEmbedder()
	boom := errors.New("boom")
	m.EmbedTextsFunc = func(context.Context, []string) ([]core.Vector, error) {
		return nil, boom
	}
	m.ProbeFunc = func(context.Context) error { return boom }

	_, err := m.EmbedTexts(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, m.Probe(context.Background()), boom)

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	vectors, err := m.EmbedTexts(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
}

func TestMockTagExtractor(t *testing.T) {
	m := NewMockTagExtractor()

	res := m.ExtractTags(context.Background(), "Tax law, tax LAW!")
	assert.False(t, res.Fallback)
	assert.Equal(t, []string{"tax", "law"}, res.Tags)

	res = m.ExtractTags(context.Background(), " ?! ")
	assert.True(t, res.Fallback)
	assert.Equal(t, 2, m.CallCount())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider().(*MockProvider)

	assert.Same(t, p.GetMockEmbedder(), p.Embedder())
	assert.Same(t, p.GetMockTagger(), p.TagExtractor())
	require.NoError(t, p.Close())
	assert.True(t, p.Closed())
}
