package reindex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/textnorm"
)

// SourceText is a document's original content.
type SourceText struct {
	Raw  []byte
	Text string
}

// Source loads a document's original content. It returns ErrNoSource when the
// content cannot be recovered, in which case the stored chunks are re-embedded instead.
type Source func(ctx context.Context, doc *core.Document) (SourceText, error)

// FileSource reads doc.Source as a local file path, converting Markdown to
// plain text when the document was ingested as Markdown or the path says so.
func FileSource(_ context.Context, doc *core.Document) (SourceText, error) {
	if doc.Source == "" {
		return SourceText{}, ErrNoSource
	}
	raw, err := os.ReadFile(doc.Source)
	if errors.Is(err, fs.ErrNotExist) {
		return SourceText{}, fmt.Errorf("%w: %s", ErrNoSource, doc.Source)
	}
	if err != nil {
		return SourceText{}, err
	}

	text := string(raw)
	if doc.Markdown || textnorm.IsMarkdown(doc.Source) {
		text = textnorm.MarkdownToText(raw)
	}
	return SourceText{Raw: raw, Text: textnorm.Normalize(text)}, nil
}

// NoSource always reports the source as unavailable.
func NoSource(context.Context, *core.Document) (SourceText, error) {
	return SourceText{}, ErrNoSource
}
