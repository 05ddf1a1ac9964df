package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/storage"
)

func TestLineageRepository_AddAndGet(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	require.NoError(t, repos.Lineage.AddEdges(ctx,
		&core.LineageEdge{SourceId: 5, TargetId: 9, Relation: core.RelationDuplicateOf, Confidence: 0.95},
		&core.LineageEdge{SourceId: 5, TargetId: 2, Relation: core.RelationDuplicateOf, Confidence: 1},
		&core.LineageEdge{SourceId: 6, TargetId: 5, Relation: core.RelationDuplicateOf, Confidence: 1},
	))

	edges, err := repos.Lineage.GetEdges(ctx, 5)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, core.ID(2), edges[0].TargetId)
	assert.Equal(t, core.ID(9), edges[1].TargetId)
	assert.Equal(t, 0.95, edges[1].Confidence)
	assert.False(t, edges[0].CreatedAt.IsZero())
}

func TestLineageRepository_Upsert(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	edge := &core.LineageEdge{SourceId: 1, TargetId: 2, Relation: core.RelationDuplicateOf, Confidence: 0.93}
	require.NoError(t, repos.Lineage.AddEdges(ctx, edge))
	edge2 := &core.LineageEdge{SourceId: 1, TargetId: 2, Relation: core.RelationDuplicateOf, Confidence: 1}
	require.NoError(t, repos.Lineage.AddEdges(ctx, edge2))

	edges, err := repos.Lineage.GetEdges(ctx, 1)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, 1.0, edges[0].Confidence)
}

func TestLineageRepository_Invalid(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	err := repos.Lineage.AddEdges(ctx, &core.LineageEdge{SourceId: 1, TargetId: 1, Relation: core.RelationDuplicateOf})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	err = repos.Lineage.AddEdges(ctx, &core.LineageEdge{SourceId: 1, TargetId: 2})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}
