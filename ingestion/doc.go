// Package ingestion turns raw document text into stored, embedded chunk sets.
//
// The Pipeline type manages the ingestion workflow, including:
//   - Normalizing text and computing content and file hashes
//   - Splitting text into overlapping chunks
//   - Embedding chunk batches concurrently on a bounded worker pool
//   - Atomically replacing the document's chunk set
//
// Embedding results are merged back in chunk order regardless of completion
// order. Processing of one document is serialized; different documents proceed
// concurrently. A failed run marks the document unprocessed with the failure
// message and leaves its previous chunks in place.
package ingestion
