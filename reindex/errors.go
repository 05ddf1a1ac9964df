package reindex

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrNoSource is returned by a Source when a document's original text is unavailable.
	ErrNoSource = errors.New("document source unavailable")

	// ErrNeedsSource is returned for an unprocessed document that has no source to rebuild from.
	ErrNeedsSource = errors.New("document needs its source to reindex")

	// ErrIncomplete is returned when some documents failed to reindex.
	ErrIncomplete = errors.New("reindex incomplete")
)
