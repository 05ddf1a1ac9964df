package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagResult(t *testing.T) {
	ok := TagsOK([]string{"tax"})
	assert.False(t, ok.Fallback)
	assert.Equal(t, []string{"tax"}, ok.Tags)

	fb := TagsFallback("timeout")
	assert.True(t, fb.Fallback)
	assert.Empty(t, fb.Tags)
	assert.Equal(t, "timeout", fb.Reason)
}

func TestNormalizeTag(t *testing.T) {
	assert.Equal(t, "data-retention", NormalizeTag("  Data Retention "))
	assert.Equal(t, "data-retention", NormalizeTag("data_retention"))
	assert.Equal(t, "gdpr", NormalizeTag("GDPR"))
	assert.Equal(t, "", NormalizeTag("   "))
}

func TestNormalizeTags(t *testing.T) {
	t.Run("dedupes after normalization", func(t *testing.T) {
		got := NormalizeTags([]string{"Tax", "tax", " TAX ", "vat rules", "vat_rules", ""}, 0)
		assert.Equal(t, []string{"tax", "vat-rules"}, got)
	})

	t.Run("caps at max", func(t *testing.T) {
		in := make([]string, 20)
		for i := range in {
			in[i] = string(rune('a' + i))
		}
		got := NormalizeTags(in, DefaultMaxTags)
		assert.Len(t, got, DefaultMaxTags)
		assert.Equal(t, "a", got[0])
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, NormalizeTags(nil, 5))
	})
}
