package search

import (
	"cmp"
	"slices"
	"strings"

	"github.com/poiesic/passage/core"
)

const (
	exactTagScore     = 2
	substringTagScore = 1
)

// TagScore is a document's Stage 1 score against a set of query tags.
type TagScore struct {
	DocumentId core.ID
	Score      int
}

// ScoreDocumentsByTags scores every document against queryTags and returns the
// topN best, highest first. Each (query tag, document tag) pair adds 2 for an
// exact match or 1 when one contains the other. Documents scoring 0 are left
// out. Equal scores are ordered by document ID. topN <= 0 keeps every match.
func ScoreDocumentsByTags(queryTags []string, docs []*core.Document, topN int) []TagScore {
	query := lowerTags(queryTags)
	if len(query) == 0 {
		return nil
	}

	var scores []TagScore
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		score := 0
		for _, dt := range lowerTags(doc.Tags) {
			for _, qt := range query {
				score += tagPairScore(qt, dt)
			}
		}
		if score > 0 {
			scores = append(scores, TagScore{DocumentId: doc.Id, Score: score})
		}
	}

	slices.SortFunc(scores, func(a, b TagScore) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return cmp.Compare(a.DocumentId, b.DocumentId)
	})
	if topN > 0 && len(scores) > topN {
		scores = scores[:topN]
	}
	return scores
}

func tagPairScore(queryTag, docTag string) int {
	switch {
	case queryTag == docTag:
		return exactTagScore
	case strings.Contains(docTag, queryTag), strings.Contains(queryTag, docTag):
		return substringTagScore
	default:
		return 0
	}
}

// lowerTags drops blank tags so an empty string never matches by containment.
func lowerTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// DocumentIds returns the IDs of scores in order.
func DocumentIds(scores []TagScore) []core.ID {
	ids := make([]core.ID, len(scores))
	for i, s := range scores {
		ids[i] = s.DocumentId
	}
	return ids
}
