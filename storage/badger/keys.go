package badger

import (
	"encoding/binary"

	"github.com/poiesic/passage/core"
)

// Key prefixes for different data types
const (
	documentPrefix    = "doc:"
	documentIDSeq     = "docseq"
	contentHashPrefix = "dch:"
	fileHashPrefix    = "dfh:"
	chunkPrefix       = "chk:"
	chunkVectorPrefix = "chv:"
	meanVectorPrefix  = "dmv:"
	lineagePrefix     = "lin:"
	dimensionsKey     = "meta:dims"
)

// appendID writes id in BigEndian order so lexicographic key order matches numeric order.
func appendID(buf []byte, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// makeDocumentKey generates a key for a document by ID.
// Format: prefix + id
func makeDocumentKey(id core.ID) []byte {
	return appendID([]byte(documentPrefix), id)
}

// idFromDocumentKey extracts the ID from a document key.
func idFromDocumentKey(key []byte) core.ID {
	return idFromPrefixedKey(documentPrefix, key)
}

// idFromPrefixedKey extracts the ID that directly follows prefix in key.
func idFromPrefixedKey(prefix string, key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(prefix):]))
}

// makeHashKey generates an index key mapping a hash to a document.
// Format: prefix + hash + ":" + id
func makeHashKey(prefix, hash string, id core.ID) []byte {
	return appendID(makePartialHashKey(prefix, hash), id)
}

// makePartialHashKey generates the scan prefix for all documents sharing a hash.
func makePartialHashKey(prefix, hash string) []byte {
	buf := make([]byte, 0, len(prefix)+len(hash)+1+8)
	buf = append(buf, prefix...)
	buf = append(buf, hash...)
	return append(buf, ':')
}

// makeChunkKey generates a composite key for a chunk.
// Format: prefix + docID + index
func makeChunkKey(prefix string, docID core.ID, index int) []byte {
	return binary.BigEndian.AppendUint32(makePartialChunkKey(prefix, docID), uint32(index))
}

// makePartialChunkKey generates the scan prefix for all chunks of one document.
func makePartialChunkKey(prefix string, docID core.ID) []byte {
	return appendID([]byte(prefix), docID)
}

// chunkKeyParts extracts document ID and index from a chunk key.
func chunkKeyParts(prefix string, key []byte) (core.ID, int) {
	rest := key[len(prefix):]
	return core.ID(binary.BigEndian.Uint64(rest)), int(binary.BigEndian.Uint32(rest[8:]))
}

// makeMeanVectorKey generates a key for a document's cached mean vector.
func makeMeanVectorKey(docID core.ID) []byte {
	return appendID([]byte(meanVectorPrefix), docID)
}

// makeLineageKey generates a composite key for a lineage edge.
// Format: prefix + sourceID + targetID + relation
func makeLineageKey(source, target core.ID, relation string) []byte {
	buf := appendID(makePartialLineageKey(source), target)
	return append(buf, relation...)
}

// makePartialLineageKey generates the scan prefix for all edges leaving source.
func makePartialLineageKey(source core.ID) []byte {
	return appendID([]byte(lineagePrefix), source)
}
