package core

import (
	"encoding/hex"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// ContentKey returns the formatting-insensitive form of text used for content hashing:
// runs of whitespace collapse to one space, the result is trimmed and lowercased.
func ContentKey(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// ContentHash hashes the normalized text. Two texts that differ only in casing,
// line endings or spacing share a content hash.
func ContentHash(text string) string {
	return hashHex([]byte(ContentKey(text)))
}

// FileHash hashes raw bytes. Any byte change produces a different hash.
func FileHash(raw []byte) string {
	return hashHex(raw)
}

func hashHex(data []byte) string {
	h, _ := blake2b.New(32, nil) // 32 bytes = 256 bits
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
