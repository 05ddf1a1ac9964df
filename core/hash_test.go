package core

import "testing"

func TestContentKey(t *testing.T) {
	got := ContentKey("  Hello\r\n\tWORLD  \n\n again ")
	if got != "hello world again" {
		t.Errorf("ContentKey() = %q", got)
	}
}

func TestHashes_FormattingInsensitiveContent(t *testing.T) {
	rawA := []byte("Quarterly Audit Report\r\nAll controls passed.\r\n")
	rawB := []byte("quarterly audit report\nall controls   passed.\n")

	if ContentHash(string(rawA)) != ContentHash(string(rawB)) {
		t.Error("content hashes should match for texts differing only in formatting")
	}
	if FileHash(rawA) == FileHash(rawB) {
		t.Error("file hashes should differ for different raw bytes")
	}
}

func TestHashes_Deterministic(t *testing.T) {
	raw := []byte("same bytes")
	if FileHash(raw) != FileHash(raw) {
		t.Error("FileHash is not deterministic")
	}
	if len(FileHash(raw)) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(FileHash(raw)))
	}
}
