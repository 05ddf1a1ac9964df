package badger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
//
// Chunk text lives under chk:<doc><index> as a mus record and the embedding under
// chv:<doc><index> as a packed little-endian blob. Each document's mean vector is
// cached under dmv:<doc> and rewritten in the same transaction as its chunk set.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) storage.ChunkRepository {
	return newChunkRepository(backend)
}

func newChunkRepository(backend *Backend) *ChunkRepository {
	return &ChunkRepository{backend: backend}
}

// ReplaceChunks swaps a document's chunk set in one transaction.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, docID core.ID, chunks []*core.Chunk) error {
	if err := validateChunkSet(docID, chunks); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var embedded []core.Vector
	for _, c := range chunks {
		if c.Embedded() {
			embedded = append(embedded, c.Embedding)
		}
	}
	var mean core.Vector
	if len(embedded) > 0 {
		var err error
		if mean, err = core.MeanVector(embedded); err != nil {
			return err
		}
	}

	return r.backend.Update(func(tx *badger.Txn) error {
		doc, err := readDocument(tx, docID)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		if mean != nil {
			if err := checkDimensions(tx, len(mean)); err != nil {
				return err
			}
		}

		if err := deleteChunkSet(tx, docID); err != nil {
			return err
		}
		for _, c := range chunks {
			if err := tx.Set(makeChunkKey(chunkPrefix, docID, c.Index), storage.MarshalChunk(c)); err != nil {
				return err
			}
			if c.Embedded() {
				if err := tx.Set(makeChunkKey(chunkVectorPrefix, docID, c.Index), core.EncodeVector(c.Embedding)); err != nil {
					return err
				}
			}
		}
		if mean != nil {
			if err := tx.Set(makeMeanVectorKey(docID), core.EncodeVector(mean)); err != nil {
				return err
			}
		}

		doc.ChunkCount = len(chunks)
		doc.Processed = true
		doc.ProcessingError = ""
		doc.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
		return tx.Set(makeDocumentKey(docID), storage.MarshalDocument(doc))
	})
}

// validateChunkSet checks ownership, per-chunk validity, strictly increasing
// indexes and a single dimensionality across the set.
func validateChunkSet(docID core.ID, chunks []*core.Chunk) error {
	dim := 0
	for i, c := range chunks {
		if err := core.ValidateChunk(c, dim); err != nil {
			return err
		}
		if c.DocumentId != docID {
			return fmt.Errorf("%w: chunk %d belongs to document %d, not %d", core.ErrInvalidChunk, c.Index, c.DocumentId, docID)
		}
		if i > 0 && c.Index <= chunks[i-1].Index {
			return fmt.Errorf("%w: chunk indexes must increase, got %d after %d", core.ErrInvalidChunk, c.Index, chunks[i-1].Index)
		}
		if dim == 0 && c.Embedded() {
			dim = len(c.Embedding)
		}
	}
	return nil
}

// checkDimensions fixes the store's dimensionality on first use and rejects
// any later mismatch.
func checkDimensions(tx *badger.Txn, dim int) error {
	val, err := getValue(tx, []byte(dimensionsKey))
	if err != nil {
		return err
	}
	if val == nil {
		return tx.Set([]byte(dimensionsKey), storage.MarshalCount(dim))
	}
	stored, err := storage.UnmarshalCount(val)
	if err != nil {
		return err
	}
	if stored != dim {
		return fmt.Errorf("%w: store holds %d-dimensional embeddings, got %d", core.ErrDimensionMismatch, stored, dim)
	}
	return nil
}

// deleteChunkSet removes chunk records, chunk vectors and the mean vector of a document.
func deleteChunkSet(tx *badger.Txn, docID core.ID) error {
	if err := deletePrefix(tx, makePartialChunkKey(chunkPrefix, docID)); err != nil {
		return err
	}
	if err := deletePrefix(tx, makePartialChunkKey(chunkVectorPrefix, docID)); err != nil {
		return err
	}
	return tx.Delete(makeMeanVectorKey(docID))
}

// GetChunksByDocuments returns the chunks of the given documents.
func (r *ChunkRepository) GetChunksByDocuments(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := r.backend.View(func(tx *badger.Txn) error {
		dim, err := readDimensions(tx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			chunks, err := readChunkSet(tx, id, dim, false)
			if err != nil {
				return err
			}
			result = append(result, chunks...)
		}
		return nil
	})
	return result, err
}

// GetEmbeddedChunks returns every chunk of a processed document that carries an embedding.
func (r *ChunkRepository) GetEmbeddedChunks(ctx context.Context) ([]*core.Chunk, error) {
	return r.collect(ctx, func(*core.Document) bool { return true })
}

// GetChunksFiltered returns embedded chunks of processed documents matching filter.
func (r *ChunkRepository) GetChunksFiltered(ctx context.Context, filter storage.ChunkFilter) ([]*core.Chunk, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return r.collect(ctx, filter.Matches)
}

// collect walks all processed documents and gathers the embedded chunks of those
// keep accepts. A document whose last processing failed is skipped, matching the
// tag-scored read path in search.
func (r *ChunkRepository) collect(ctx context.Context, keep func(*core.Document) bool) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := r.backend.View(func(tx *badger.Txn) error {
		dim, err := readDimensions(tx)
		if err != nil {
			return err
		}

		var ids []core.ID
		if err := scanPrefix(tx, []byte(documentPrefix), func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				doc, err := storage.UnmarshalDocument(val)
				if err != nil {
					return err
				}
				if doc.Processed && keep(doc) {
					ids = append(ids, doc.Id)
				}
				return nil
			})
		}); err != nil {
			return err
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunks, err := readChunkSet(tx, id, dim, true)
			if err != nil {
				return err
			}
			result = append(result, chunks...)
		}
		return nil
	})
	return result, err
}

// GetMeanVector returns the cached mean embedding of one document.
func (r *ChunkRepository) GetMeanVector(ctx context.Context, docID core.ID) (core.Vector, error) {
	var mean core.Vector
	err := r.backend.View(func(tx *badger.Txn) error {
		dim, err := readDimensions(tx)
		if err != nil {
			return err
		}
		val, err := getValue(tx, makeMeanVectorKey(docID))
		if err != nil || val == nil {
			return err
		}
		mean, err = core.DecodeVector(val, dim)
		return err
	})
	return mean, err
}

// GetMeanVectors returns every cached mean embedding, ordered by document ID.
func (r *ChunkRepository) GetMeanVectors(ctx context.Context) ([]core.DocumentVector, error) {
	var result []core.DocumentVector
	err := r.backend.View(func(tx *badger.Txn) error {
		dim, err := readDimensions(tx)
		if err != nil {
			return err
		}
		prefix := []byte(meanVectorPrefix)
		return scanPrefix(tx, prefix, func(item *badger.Item) error {
			id := idFromMeanVectorKey(item.Key())
			return item.Value(func(val []byte) error {
				vec, err := core.DecodeVector(val, dim)
				if err != nil {
					return fmt.Errorf("mean vector of document %d: %w", id, err)
				}
				result = append(result, core.DocumentVector{DocumentId: id, Vector: vec})
				return nil
			})
		})
	})
	return result, err
}

// DeleteChunks removes a document's chunk set and resets its chunk count.
func (r *ChunkRepository) DeleteChunks(ctx context.Context, docID core.ID) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		if err := deleteChunkSet(tx, docID); err != nil {
			return err
		}
		doc, err := readDocument(tx, docID)
		if err != nil || doc == nil {
			return err
		}
		doc.ChunkCount = 0
		doc.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
		return tx.Set(makeDocumentKey(docID), storage.MarshalDocument(doc))
	})
}

// ChunkCount returns the number of stored chunks for a document.
func (r *ChunkRepository) ChunkCount(ctx context.Context, docID core.ID) (int, error) {
	count := 0
	err := r.backend.View(func(tx *badger.Txn) error {
		prefix := makePartialChunkKey(chunkPrefix, docID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Dimensions returns the embedding size fixed by the store, or 0 if none yet.
func (r *ChunkRepository) Dimensions(ctx context.Context) (int, error) {
	var dim int
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		dim, err = readDimensions(tx)
		return err
	})
	return dim, err
}

func readDimensions(tx *badger.Txn) (int, error) {
	val, err := getValue(tx, []byte(dimensionsKey))
	if err != nil || val == nil {
		return 0, err
	}
	return storage.UnmarshalCount(val)
}

// readChunkSet loads a document's chunks in index order with their embeddings.
// With embeddedOnly set, chunks without an embedding are skipped.
func readChunkSet(tx *badger.Txn, docID core.ID, dim int, embeddedOnly bool) ([]*core.Chunk, error) {
	var chunks []*core.Chunk
	if err := scanPrefix(tx, makePartialChunkKey(chunkPrefix, docID), func(item *badger.Item) error {
		return item.Value(func(val []byte) error {
			c, err := storage.UnmarshalChunk(val)
			if err != nil {
				return err
			}
			chunks = append(chunks, c)
			return nil
		})
	}); err != nil {
		return nil, err
	}

	vectors := make(map[int]core.Vector, len(chunks))
	if err := scanPrefix(tx, makePartialChunkKey(chunkVectorPrefix, docID), func(item *badger.Item) error {
		_, index := chunkKeyParts(chunkVectorPrefix, item.Key())
		return item.Value(func(val []byte) error {
			vec, err := core.DecodeVector(val, dim)
			if err != nil {
				return fmt.Errorf("chunk %d of document %d: %w", index, docID, err)
			}
			vectors[index] = vec
			return nil
		})
	}); err != nil {
		return nil, err
	}

	out := chunks[:0]
	for _, c := range chunks {
		c.Embedding = vectors[c.Index]
		if embeddedOnly && !c.Embedded() {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *core.Chunk) int { return a.Index - b.Index })
	return out, nil
}

func idFromMeanVectorKey(key []byte) core.ID {
	return idFromPrefixedKey(meanVectorPrefix, key)
}
