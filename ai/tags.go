package ai

import (
	"strings"
	"unicode"
)

// DefaultMaxTags caps the number of tags kept from one extraction.
const DefaultMaxTags = 15

// TagResult is the outcome of a tag extraction. Exactly one of the two shapes holds:
// a non-empty Tags list, or Fallback set with a Reason. Callers that see Fallback
// skip tag pre-filtering and search over every eligible chunk.
type TagResult struct {
	Tags     []string
	Fallback bool
	Reason   string
}

// TagsOK builds a successful result.
func TagsOK(tags []string) TagResult {
	return TagResult{Tags: tags}
}

// TagsFallback builds a result telling the caller to skip Stage 1.
func TagsFallback(reason string) TagResult {
	return TagResult{Fallback: true, Reason: reason}
}

// NormalizeTag lowercases and trims a tag and joins its words with hyphens.
func NormalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, tag)
	return strings.Join(strings.Fields(tag), "-")
}

// NormalizeTags normalizes each tag, drops empties and duplicates while keeping the
// first occurrence, and keeps at most max tags (max <= 0 means no limit).
func NormalizeTags(tags []string, max int) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = NormalizeTag(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
