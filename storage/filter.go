package storage

import (
	"fmt"
	"slices"

	"github.com/poiesic/passage/core"
)

// FilterableMetadataFields lists the metadata keys a ChunkFilter may constrain.
// Keys outside this set are rejected so arbitrary metadata never turns into a query surface.
var FilterableMetadataFields = []string{
	"category",
	"department",
	"document_type",
	"jurisdiction",
	"owner",
}

// ChunkFilter restricts which documents contribute chunks to a search.
// Zero-valued fields do not constrain.
type ChunkFilter struct {
	// AllowedStatuses keeps only documents whose Status is listed.
	AllowedStatuses []string

	// ExcludedStatuses drops documents whose Status is listed.
	ExcludedStatuses []string

	// LegalHold, when set, keeps only documents with that legal hold flag.
	LegalHold *bool

	// Metadata keeps only documents whose metadata equals every given value.
	Metadata map[string]string
}

// Validate rejects metadata keys that are not filterable.
func (f ChunkFilter) Validate() error {
	for k := range f.Metadata {
		if !slices.Contains(FilterableMetadataFields, k) {
			return fmt.Errorf("%w: metadata field %q is not filterable", ErrInvalidQuery, k)
		}
	}
	return nil
}

// IsZero reports whether the filter constrains nothing.
func (f ChunkFilter) IsZero() bool {
	return len(f.AllowedStatuses) == 0 && len(f.ExcludedStatuses) == 0 &&
		f.LegalHold == nil && len(f.Metadata) == 0
}

// Matches reports whether doc passes the filter.
func (f ChunkFilter) Matches(doc *core.Document) bool {
	if len(f.AllowedStatuses) > 0 && !slices.Contains(f.AllowedStatuses, doc.Status) {
		return false
	}
	if slices.Contains(f.ExcludedStatuses, doc.Status) {
		return false
	}
	if f.LegalHold != nil && doc.LegalHold != *f.LegalHold {
		return false
	}
	for k, v := range f.Metadata {
		if got, ok := doc.Metadata[k]; !ok || got != v {
			return false
		}
	}
	return true
}
