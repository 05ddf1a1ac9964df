package search

import (
	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterTagExtraction(result ai.TagResult)
	AfterTagScoring(scores []TagScore)
	AfterCandidateRetrieval(candidates []*core.Chunk, tagFiltered bool)
	AfterRanking(ranked []*ScoredChunk)
	Finish(result *Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                  {}
func (n *noopMonitor) AfterTagExtraction(_ ai.TagResult)               {}
func (n *noopMonitor) AfterTagScoring(_ []TagScore)                    {}
func (n *noopMonitor) AfterCandidateRetrieval(_ []*core.Chunk, _ bool) {}
func (n *noopMonitor) AfterRanking(_ []*ScoredChunk)                   {}
func (n *noopMonitor) Finish(_ *Result)                                {}
