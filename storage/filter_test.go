package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/poiesic/passage/core"
)

func TestChunkFilter_Validate(t *testing.T) {
	assert.NoError(t, ChunkFilter{}.Validate())
	assert.NoError(t, ChunkFilter{Metadata: map[string]string{"department": "legal"}}.Validate())

	err := ChunkFilter{Metadata: map[string]string{"salary": "high"}}.Validate()
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestChunkFilter_Matches(t *testing.T) {
	hold, noHold := true, false
	doc := &core.Document{
		Status:    "approved",
		LegalHold: true,
		Metadata:  map[string]string{"department": "legal", "jurisdiction": "de"},
	}

	tests := []struct {
		name   string
		filter ChunkFilter
		want   bool
	}{
		{"zero filter", ChunkFilter{}, true},
		{"allowed status", ChunkFilter{AllowedStatuses: []string{"draft", "approved"}}, true},
		{"status not allowed", ChunkFilter{AllowedStatuses: []string{"draft"}}, false},
		{"excluded status", ChunkFilter{ExcludedStatuses: []string{"approved"}}, false},
		{"legal hold match", ChunkFilter{LegalHold: &hold}, true},
		{"legal hold mismatch", ChunkFilter{LegalHold: &noHold}, false},
		{"metadata match", ChunkFilter{Metadata: map[string]string{"department": "legal"}}, true},
		{"metadata mismatch", ChunkFilter{Metadata: map[string]string{"department": "hr"}}, false},
		{"metadata missing", ChunkFilter{Metadata: map[string]string{"owner": "ana"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(doc))
		})
	}
}

func TestChunkFilter_IsZero(t *testing.T) {
	hold := false
	assert.True(t, ChunkFilter{}.IsZero())
	assert.False(t, ChunkFilter{LegalHold: &hold}.IsZero())
}
