package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// newDocumentRepository is an internal constructor that returns the concrete type.
func newDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	idSeq, err := backend.GetSequence(documentIDSeq)
	if err != nil {
		return nil, err
	}

	return &DocumentRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (storage.DocumentRepository, error) {
	return newDocumentRepository(backend)
}

// Close releases the ID sequence.
func (r *DocumentRepository) Close() error {
	return r.idSeq.Release()
}

func (r *DocumentRepository) nextID() (core.ID, error) {
	nextID, err := r.idSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if nextID == 0 {
		if nextID, err = r.idSeq.Next(); err != nil {
			return 0, err
		}
	}
	return core.ID(nextID), nil
}

// AddDocuments adds one or more documents to storage.
func (r *DocumentRepository) AddDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	for _, doc := range docs {
		if doc != nil {
			doc.InsertedAt = now
			doc.UpdatedAt = now
		}
		if err := core.ValidateDocument(doc); err != nil {
			return nil, err
		}
	}

	// IDs are drawn outside the transaction so a conflict replay does not burn new ones.
	for _, doc := range docs {
		id, err := r.nextID()
		if err != nil {
			return nil, err
		}
		doc.Id = id
	}

	err := r.backend.Update(func(tx *badger.Txn) error {
		for _, doc := range docs {
			if err := writeDocument(tx, doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// UpdateDocuments updates existing documents.
func (r *DocumentRepository) UpdateDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error) {
	for _, doc := range docs {
		if err := core.ValidateDocument(doc); err != nil {
			return nil, err
		}
	}

	err := r.backend.Update(func(tx *badger.Txn) error {
		now := time.Now().UTC().Truncate(time.Microsecond)
		for _, doc := range docs {
			old, err := readDocument(tx, doc.Id)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}
			if err := deleteHashIndex(tx, old); err != nil {
				return err
			}
			doc.InsertedAt = old.InsertedAt
			doc.UpdatedAt = now
			if err := writeDocument(tx, doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// DeleteDocuments removes documents and everything hanging off them.
func (r *DocumentRepository) DeleteDocuments(ctx context.Context, ids ...core.ID) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		for _, id := range ids {
			doc, err := readDocument(tx, id)
			if err != nil {
				return err
			}
			if doc == nil {
				return storage.ErrNotFound
			}
			if err := deleteHashIndex(tx, doc); err != nil {
				return err
			}
			if err := deleteChunkSet(tx, id); err != nil {
				return err
			}
			if err := deletePrefix(tx, makePartialLineageKey(id)); err != nil {
				return err
			}
			if err := tx.Delete(makeDocumentKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, err
}

// GetDocuments retrieves multiple documents by their IDs.
func (r *DocumentRepository) GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error) {
	var result []*core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		for _, id := range ids {
			doc, err := readDocument(tx, id)
			if err != nil {
				return err
			}
			if doc != nil {
				result = append(result, doc)
			}
		}
		return nil
	})
	return result, err
}

// ListDocuments returns documents after the given ID in ID order.
func (r *DocumentRepository) ListDocuments(ctx context.Context, after core.ID, limit int) ([]*core.Document, error) {
	var result []*core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		prefix := []byte(documentPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeDocumentKey(after + 1)); iter.ValidForPrefix(prefix); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var doc *core.Document
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocument(val)
				return err
			}); err != nil {
				return err
			}
			result = append(result, doc)
			if limit > 0 && len(result) == limit {
				break
			}
		}
		return nil
	})
	return result, err
}

// FindByContentHash returns every document with the given content hash.
func (r *DocumentRepository) FindByContentHash(ctx context.Context, hash string) ([]*core.Document, error) {
	return r.findByHash(contentHashPrefix, hash)
}

// FindByFileHash returns every document with the given file hash.
func (r *DocumentRepository) FindByFileHash(ctx context.Context, hash string) ([]*core.Document, error) {
	return r.findByHash(fileHashPrefix, hash)
}

func (r *DocumentRepository) findByHash(prefix, hash string) ([]*core.Document, error) {
	if hash == "" {
		return nil, nil
	}
	var result []*core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		var ids []core.ID
		if err := scanPrefix(tx, makePartialHashKey(prefix, hash), func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				id, err := storage.UnmarshalID(val)
				ids = append(ids, id)
				return err
			})
		}); err != nil {
			return err
		}
		for _, id := range ids {
			doc, err := readDocument(tx, id)
			if err != nil {
				return err
			}
			if doc != nil {
				result = append(result, doc)
			}
		}
		return nil
	})
	return result, err
}

// readDocument loads a document, returning nil if it doesn't exist.
func readDocument(tx *badger.Txn, id core.ID) (*core.Document, error) {
	val, err := getValue(tx, makeDocumentKey(id))
	if err != nil || val == nil {
		return nil, err
	}
	return storage.UnmarshalDocument(val)
}

// writeDocument stores the record and its hash index entries.
func writeDocument(tx *badger.Txn, doc *core.Document) error {
	if err := tx.Set(makeDocumentKey(doc.Id), storage.MarshalDocument(doc)); err != nil {
		return err
	}
	idBytes := storage.MarshalID(doc.Id)
	if err := tx.Set(makeHashKey(contentHashPrefix, doc.ContentHash, doc.Id), idBytes); err != nil {
		return err
	}
	return tx.Set(makeHashKey(fileHashPrefix, doc.FileHash, doc.Id), idBytes)
}

func deleteHashIndex(tx *badger.Txn, doc *core.Document) error {
	if err := tx.Delete(makeHashKey(contentHashPrefix, doc.ContentHash, doc.Id)); err != nil {
		return err
	}
	return tx.Delete(makeHashKey(fileHashPrefix, doc.FileHash, doc.Id))
}
