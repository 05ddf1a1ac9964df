package search

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/passage/core"
)

// scoredChunks builds one-chunk-per-document candidates whose cosine similarity
// to (1, 0) equals the given scores.
func scoredChunks(scores ...float64) []*core.Chunk {
	chunks := make([]*core.Chunk, len(scores))
	for i, s := range scores {
		// (s, sqrt(1-s^2)) is a unit vector at cosine s from (1, 0).
		chunks[i] = &core.Chunk{
			DocumentId: core.ID(i + 1),
			Content:    fmt.Sprintf("chunk %d", i),
			Embedding:  core.Vector{float32(s), float32(math.Sqrt(1 - s*s))},
		}
	}
	return chunks
}

var unitX = core.Vector{1, 0}

func TestRank_OrderAndTopK(t *testing.T) {
	ranked := Rank(unitX, scoredChunks(0.2, 0.9, 0.5, 0.7), RankOptions{TopK: 3})

	require.Len(t, ranked, 3)
	assert.Equal(t, core.ID(2), ranked[0].Chunk.DocumentId)
	assert.Equal(t, core.ID(4), ranked[1].Chunk.DocumentId)
	assert.Equal(t, core.ID(3), ranked[2].Chunk.DocumentId)
	assert.InDelta(t, 0.9, ranked[0].Score, 1e-6)
}

func TestRank_TiesByDocumentThenIndex(t *testing.T) {
	v := core.Vector{1, 1}
	candidates := []*core.Chunk{
		{DocumentId: 7, Index: 1, Content: "x", Embedding: v},
		{DocumentId: 3, Index: 4, Content: "x", Embedding: v},
		{DocumentId: 7, Index: 0, Content: "x", Embedding: v},
		{DocumentId: 3, Index: 2, Content: "x", Embedding: v},
	}

	ranked := Rank(unitX, candidates, RankOptions{})

	require.Len(t, ranked, 4)
	var order []string
	for _, r := range ranked {
		order = append(order, fmt.Sprintf("%d/%d", r.Chunk.DocumentId, r.Chunk.Index))
	}
	assert.Equal(t, []string{"3/2", "3/4", "7/0", "7/1"}, order)
}

func TestRank_ThresholdBackfill(t *testing.T) {
	opts := RankOptions{TopK: 10, UseThreshold: true, Threshold: 0.8, MinResults: 3}

	t.Run("backfills to the minimum", func(t *testing.T) {
		ranked := Rank(unitX, scoredChunks(0.9, 0.1, 0.3, 0.2, 0.05), opts)
		require.Len(t, ranked, 3)
		assert.InDelta(t, 0.9, ranked[0].Score, 1e-6)
		assert.InDelta(t, 0.3, ranked[1].Score, 1e-6)
		assert.InDelta(t, 0.2, ranked[2].Score, 1e-6)
	})

	t.Run("keeps everything above the threshold", func(t *testing.T) {
		ranked := Rank(unitX, scoredChunks(0.9, 0.85, 0.95, 0.81, 0.1), opts)
		assert.Len(t, ranked, 4)
	})

	t.Run("bounded by candidates", func(t *testing.T) {
		ranked := Rank(unitX, scoredChunks(0.1, 0.2), opts)
		assert.Len(t, ranked, 2)
	})

	t.Run("never empty because of the threshold", func(t *testing.T) {
		ranked := Rank(unitX, scoredChunks(0.1, 0.2, 0.3, 0.4), RankOptions{TopK: 5, UseThreshold: true, Threshold: 0.99, MinResults: 1})
		require.Len(t, ranked, 1)
		assert.InDelta(t, 0.4, ranked[0].Score, 1e-6)
	})
}

func TestRank_ThresholdLaw(t *testing.T) {
	scores := []float64{0.95, 0.05, 0.6, 0.45, 0.8, 0.3, 0.72, 0.1, 0.55, 0.2}
	candidates := scoredChunks(scores...)

	for _, tau := range []float64{0, 0.25, 0.5, 0.7, 0.9, 1} {
		for _, m := range []int{0, 1, 3, 6, 10, 15} {
			t.Run(fmt.Sprintf("tau=%.2f m=%d", tau, m), func(t *testing.T) {
				above := 0
				for _, s := range scores {
					if s >= tau {
						above++
					}
				}
				want := min(max(m, above), len(scores))

				ranked := Rank(unitX, candidates, RankOptions{UseThreshold: true, Threshold: tau, MinResults: m})
				assert.Len(t, ranked, want)
				for i := 1; i < len(ranked); i++ {
					assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
				}
			})
		}
	}
}

func TestRank_TopKRaisedToMinimum(t *testing.T) {
	ranked := Rank(unitX, scoredChunks(0.1, 0.2, 0.3, 0.4, 0.5), RankOptions{
		TopK: 2, UseThreshold: true, Threshold: 0.9, MinResults: 4,
	})
	assert.Len(t, ranked, 4)
}

func TestRank_EdgeCases(t *testing.T) {
	t.Run("no candidates", func(t *testing.T) {
		assert.Empty(t, Rank(unitX, nil, DefaultRankOptions()))
	})

	t.Run("unembedded candidates ignored", func(t *testing.T) {
		candidates := append(scoredChunks(0.5), &core.Chunk{DocumentId: 99, Content: "raw"}, nil)
		ranked := Rank(unitX, candidates, RankOptions{})
		require.Len(t, ranked, 1)
		assert.Equal(t, core.ID(1), ranked[0].Chunk.DocumentId)
	})

	t.Run("zero query scores zero", func(t *testing.T) {
		ranked := Rank(core.Vector{0, 0}, scoredChunks(0.5, 0.9), RankOptions{})
		require.Len(t, ranked, 2)
		for _, r := range ranked {
			assert.Zero(t, r.Score)
		}
		assert.Equal(t, core.ID(1), ranked[0].Chunk.DocumentId)
	})
}
