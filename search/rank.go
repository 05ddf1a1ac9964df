package search

import (
	"cmp"
	"slices"

	"github.com/poiesic/passage/core"
)

// Ranking defaults.
const (
	DefaultTopK       = 8
	DefaultThreshold  = 0.35
	DefaultMinResults = 3
)

// RankOptions controls Stage 2 ranking.
type RankOptions struct {
	// TopK caps the result count. Values below MinResults are raised to it.
	// TopK <= 0 means no cap.
	TopK int

	// UseThreshold enables the relevance threshold.
	UseThreshold bool

	// Threshold is the minimum cosine score kept when UseThreshold is set.
	Threshold float64

	// MinResults is how many results the threshold may never cut below,
	// as long as that many candidates exist.
	MinResults int
}

// DefaultRankOptions returns the ranking defaults with the threshold enabled.
func DefaultRankOptions() RankOptions {
	return RankOptions{
		TopK:         DefaultTopK,
		UseThreshold: true,
		Threshold:    DefaultThreshold,
		MinResults:   DefaultMinResults,
	}
}

// ScoredChunk is a chunk with its similarity to the query.
type ScoredChunk struct {
	Chunk *core.Chunk
	Score float64
}

// Rank scores candidates against query by cosine similarity and returns the best
// ones, highest first. Ties go to the lower document ID, then the lower chunk index.
//
// With the threshold enabled, chunks scoring below it are dropped unless fewer
// than MinResults survive, in which case the highest scoring dropped chunks are
// added back until MinResults is reached or candidates run out. The result count
// is min(TopK, max(aboveThreshold, min(MinResults, len(candidates)))).
// Candidates without an embedding are ignored.
func Rank(query core.Vector, candidates []*core.Chunk, opts RankOptions) []*ScoredChunk {
	scored := make([]*ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || !c.Embedded() {
			continue
		}
		scored = append(scored, &ScoredChunk{Chunk: c, Score: core.CosineSimilarity(query, c.Embedding)})
	}
	slices.SortFunc(scored, compareScored)

	n := len(scored)
	if opts.UseThreshold {
		above := 0
		for _, s := range scored {
			if s.Score >= opts.Threshold {
				above++
			}
		}
		n = max(above, min(max(opts.MinResults, 0), len(scored)))
	}

	topK := opts.TopK
	if topK > 0 && topK < opts.MinResults {
		topK = opts.MinResults
	}
	if topK > 0 && n > topK {
		n = topK
	}
	return scored[:n]
}

func compareScored(a, b *ScoredChunk) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Chunk.DocumentId, b.Chunk.DocumentId); c != 0 {
		return c
	}
	return cmp.Compare(a.Chunk.Index, b.Chunk.Index)
}
