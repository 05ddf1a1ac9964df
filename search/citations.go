package search

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/passage/core"
)

// NoRelevantInformation is the citation text returned when a search has no candidates.
const NoRelevantInformation = "No relevant information was found in the document library."

// SourceRelevance is a document's best chunk score within one result set.
type SourceRelevance struct {
	DocumentId core.ID
	Relevance  float64
	Hits       int
}

// GroupBySource collapses ranked chunks into one entry per document, scored by
// the document's best chunk. Entries are ordered by relevance, then document ID.
func GroupBySource(results []*ScoredChunk) []SourceRelevance {
	byDoc := make(map[core.ID]*SourceRelevance)
	var order []core.ID
	for _, r := range results {
		id := r.Chunk.DocumentId
		src, ok := byDoc[id]
		if !ok {
			src = &SourceRelevance{DocumentId: id, Relevance: r.Score}
			byDoc[id] = src
			order = append(order, id)
		}
		src.Hits++
		src.Relevance = max(src.Relevance, r.Score)
	}

	sources := make([]SourceRelevance, 0, len(order))
	for _, id := range order {
		sources = append(sources, *byDoc[id])
	}
	slices.SortFunc(sources, func(a, b SourceRelevance) int {
		if c := cmp.Compare(b.Relevance, a.Relevance); c != 0 {
			return c
		}
		return cmp.Compare(a.DocumentId, b.DocumentId)
	})
	return sources
}

// FormatCitations renders results as numbered blocks:
//
//	[1] Retention Policy (chunk 2 of 5, relevance 0.87)
//	<chunk text>
//
// Chunk positions are 1-based. docs supplies titles and chunk counts; a document
// missing from it is cited by ID. An empty result set yields NoRelevantInformation.
func FormatCitations(results []*ScoredChunk, docs map[core.ID]*core.Document) string {
	if len(results) == 0 {
		return NoRelevantInformation
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		title := fmt.Sprintf("document %d", r.Chunk.DocumentId)
		total := "?"
		if doc, ok := docs[r.Chunk.DocumentId]; ok && doc != nil {
			if doc.Title != "" {
				title = doc.Title
			}
			if doc.ChunkCount > 0 {
				total = fmt.Sprint(doc.ChunkCount)
			}
		}
		fmt.Fprintf(&b, "[%d] %s (chunk %d of %s, relevance %.2f)\n%s",
			i+1, title, r.Chunk.Index+1, total, r.Score, strings.TrimSpace(r.Chunk.Content))
	}
	return b.String()
}
