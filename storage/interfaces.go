package storage

import (
	"context"

	"github.com/poiesic/passage/core"
)

// DocumentRepository provides operations for managing documents.
// Implementations must be thread-safe and support concurrent access.
type DocumentRepository interface {
	// AddDocuments stores new documents, assigning IDs from a sequence and setting
	// InsertedAt/UpdatedAt. Returns the documents with IDs populated.
	AddDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error)

	// UpdateDocuments rewrites existing documents and refreshes UpdatedAt.
	// Returns ErrNotFound if any document doesn't exist.
	UpdateDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocuments retrieves multiple documents by their IDs.
	// Returns only the documents that exist (no error for missing documents).
	GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error)

	// ListDocuments returns documents with ID greater than after, in ID order,
	// up to limit documents. A limit <= 0 returns all of them.
	ListDocuments(ctx context.Context, after core.ID, limit int) ([]*core.Document, error)

	// DeleteDocuments removes documents together with their chunks, cached mean
	// vectors, hash index entries and outgoing lineage edges.
	// Returns ErrNotFound if any document doesn't exist.
	DeleteDocuments(ctx context.Context, ids ...core.ID) error

	// FindByContentHash returns every document with the given content hash.
	FindByContentHash(ctx context.Context, hash string) ([]*core.Document, error)

	// FindByFileHash returns every document with the given file hash.
	FindByFileHash(ctx context.Context, hash string) ([]*core.Document, error)
}

// ChunkRepository stores each document's chunk set and embeddings.
// All stored embeddings share one dimensionality, fixed by the first embedding written.
type ChunkRepository interface {
	// ReplaceChunks atomically swaps a document's chunk set: old chunks are deleted,
	// the new ones written, the document's mean vector recomputed and the document
	// marked processed with its new chunk count. Readers never see a mix of old and
	// new chunks. Returns ErrNotFound if the document doesn't exist and
	// core.ErrDimensionMismatch if an embedding disagrees with the store.
	ReplaceChunks(ctx context.Context, docID core.ID, chunks []*core.Chunk) error

	// GetChunksByDocuments returns the chunks of the given documents, grouped by
	// document in argument order and sorted by index within a document.
	GetChunksByDocuments(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// GetEmbeddedChunks returns every chunk that carries an embedding, skipping
	// documents that are not processed.
	GetEmbeddedChunks(ctx context.Context) ([]*core.Chunk, error)

	// GetChunksFiltered returns embedded chunks of processed documents matching filter.
	// Returns ErrInvalidQuery for metadata fields outside FilterableMetadataFields.
	GetChunksFiltered(ctx context.Context, filter ChunkFilter) ([]*core.Chunk, error)

	// GetMeanVector returns the cached mean embedding of one document, or nil
	// if the document has no embedded chunks.
	GetMeanVector(ctx context.Context, docID core.ID) (core.Vector, error)

	// GetMeanVectors returns the cached mean embedding of every document that has one.
	GetMeanVectors(ctx context.Context) ([]core.DocumentVector, error)

	// DeleteChunks removes a document's chunk set and mean vector.
	DeleteChunks(ctx context.Context, docID core.ID) error

	// ChunkCount returns the number of stored chunks for a document.
	ChunkCount(ctx context.Context, docID core.ID) (int, error)

	// Dimensions returns the embedding size fixed by the store, or 0 if none yet.
	Dimensions(ctx context.Context) (int, error)
}

// LineageRepository records informational relations between documents.
type LineageRepository interface {
	// AddEdges upserts edges keyed by (source, target, relation).
	AddEdges(ctx context.Context, edges ...*core.LineageEdge) error

	// GetEdges returns the edges leaving source, ordered by target ID.
	GetEdges(ctx context.Context, source core.ID) ([]*core.LineageEdge, error)
}
