package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Documents receive IDs from a database sequence.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// RelationDuplicateOf marks the source document as a duplicate of the target.
const RelationDuplicateOf = "duplicate_of"

// Document is an ingested piece of free-form text.
// The ingestion pipeline owns it; search only reads the metadata fields used as filters.
type Document struct {
	Id              ID
	Title           string
	Source          string            // Where the raw text came from (path, URL, ...)
	Markdown        bool              // Source is Markdown and was converted to plain text
	ContentHash     string            // Hash of whitespace-normalized, lowercased text
	FileHash        string            // Hash of the raw bytes
	Tags            []string          // Free-form topical tags
	Status          string            // Workflow status, used as a search filter
	LegalHold       bool              // Documents under legal hold can be filtered in or out
	Metadata        map[string]string // Filterable metadata, see storage.FilterableMetadataFields
	Processed       bool              // True once the full chunk set is embedded and stored
	ProcessingError string            // Last processing failure, empty on success
	ChunkCount      int               // Number of chunks in the current chunk set
	InsertedAt      time.Time
	UpdatedAt       time.Time
}

// Chunk is a bounded, overlapping segment of a document's text.
type Chunk struct {
	DocumentId ID
	Index      int // Ordinal position, unique and increasing within the document
	Content    string
	WordCount  int
	Embedding  Vector // Nil until embedded
}

// Embedded reports whether the chunk carries an embedding.
func (c *Chunk) Embedded() bool {
	return len(c.Embedding) > 0
}

// LineageEdge is an informational relation between two documents.
type LineageEdge struct {
	SourceId   ID
	TargetId   ID
	Relation   string
	Confidence float64
	CreatedAt  time.Time
}

// DocumentVector is the mean chunk embedding of one document.
type DocumentVector struct {
	DocumentId ID
	Vector     Vector
}
