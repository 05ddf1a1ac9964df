package ingestion

import "errors"

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmptyDocument is returned when a document has no text to chunk.
	ErrEmptyDocument = errors.New("document has no text")

	// ErrNotProcessed is returned by Reembed when the document's last processing
	// failed, so its stored chunks may not match its text.
	ErrNotProcessed = errors.New("document is not processed")
)
