package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/poiesic/passage/core"
)

func TestScoreDocumentsByTags(t *testing.T) {
	docA := &core.Document{Id: 1, Tags: []string{"audit", "kyc-review"}}
	docB := &core.Document{Id: 2, Tags: []string{"financial-audit"}}
	docC := &core.Document{Id: 3, Tags: []string{"payroll"}}

	t.Run("exact and substring matches", func(t *testing.T) {
		scores := ScoreDocumentsByTags([]string{"audit", "kyc"}, []*core.Document{docB, docC, docA}, 10)
		assert.Equal(t, []TagScore{
			{DocumentId: 1, Score: 3},
			{DocumentId: 2, Score: 1},
		}, scores)
	})

	t.Run("query tag containing document tag", func(t *testing.T) {
		scores := ScoreDocumentsByTags([]string{"payroll-tax"}, []*core.Document{docC}, 10)
		assert.Equal(t, []TagScore{{DocumentId: 3, Score: 1}}, scores)
	})

	t.Run("scores sum over all pairs", func(t *testing.T) {
		doc := &core.Document{Id: 4, Tags: []string{"audit", "audit-trail", "internal-audit"}}
		scores := ScoreDocumentsByTags([]string{"audit"}, []*core.Document{doc}, 10)
		assert.Equal(t, 4, scores[0].Score)
	})

	t.Run("ties ordered by document id", func(t *testing.T) {
		docs := []*core.Document{
			{Id: 9, Tags: []string{"gdpr"}},
			{Id: 5, Tags: []string{"gdpr"}},
			{Id: 7, Tags: []string{"gdpr"}},
		}
		scores := ScoreDocumentsByTags([]string{"gdpr"}, docs, 0)
		assert.Equal(t, []core.ID{5, 7, 9}, DocumentIds(scores))
	})

	t.Run("top n", func(t *testing.T) {
		scores := ScoreDocumentsByTags([]string{"audit", "kyc"}, []*core.Document{docA, docB}, 1)
		assert.Equal(t, []core.ID{1}, DocumentIds(scores))
	})

	t.Run("no matches", func(t *testing.T) {
		assert.Empty(t, ScoreDocumentsByTags([]string{"vacation"}, []*core.Document{docA, docB, docC}, 10))
	})

	t.Run("blank tags never match", func(t *testing.T) {
		doc := &core.Document{Id: 8, Tags: []string{"", "  "}}
		assert.Empty(t, ScoreDocumentsByTags([]string{"audit", ""}, []*core.Document{doc, nil}, 10))
		assert.Empty(t, ScoreDocumentsByTags(nil, []*core.Document{docA}, 10))
	})

	t.Run("case insensitive", func(t *testing.T) {
		doc := &core.Document{Id: 6, Tags: []string{"AML"}}
		scores := ScoreDocumentsByTags([]string{"aml"}, []*core.Document{doc}, 10)
		assert.Equal(t, []TagScore{{DocumentId: 6, Score: 2}}, scores)
	})
}
