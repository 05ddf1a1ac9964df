package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/storage"
)

// LineageRepository implements storage.LineageRepository for BadgerDB.
type LineageRepository struct {
	backend *Backend
}

var _ storage.LineageRepository = (*LineageRepository)(nil)

// NewLineageRepository creates a new LineageRepository.
func NewLineageRepository(backend *Backend) storage.LineageRepository {
	return &LineageRepository{backend: backend}
}

// AddEdges upserts edges. CreatedAt is set when missing.
func (r *LineageRepository) AddEdges(ctx context.Context, edges ...*core.LineageEdge) error {
	for _, e := range edges {
		if e.SourceId == e.TargetId {
			return fmt.Errorf("%w: document %d cannot relate to itself", storage.ErrInvalidQuery, e.SourceId)
		}
		if e.Relation == "" {
			return fmt.Errorf("%w: edge relation is required", storage.ErrInvalidQuery)
		}
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	return r.backend.Update(func(tx *badger.Txn) error {
		for _, e := range edges {
			if e.CreatedAt.IsZero() {
				e.CreatedAt = now
			}
			key := makeLineageKey(e.SourceId, e.TargetId, e.Relation)
			if err := tx.Set(key, storage.MarshalLineageEdge(e)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetEdges returns the edges leaving source, ordered by target ID.
func (r *LineageRepository) GetEdges(ctx context.Context, source core.ID) ([]*core.LineageEdge, error) {
	var result []*core.LineageEdge
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, makePartialLineageKey(source), func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				edge, err := storage.UnmarshalLineageEdge(val)
				if err != nil {
					return err
				}
				result = append(result, edge)
				return nil
			})
		})
	})
	return result, err
}
