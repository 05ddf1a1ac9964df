// Package reindex rebuilds the chunk sets of every stored document.
//
// Documents whose source file can still be read are re-chunked and re-embedded
// through the ingestion pipeline, picking up edits and chunker changes. The
// rest have their stored chunks re-embedded in place. Progress is reported as
// documents complete, and failures are counted without stopping the run.
package reindex
