package chunker

import (
	"fmt"
	"iter"
	"regexp"
	"strings"
	"unicode"
)

const (
	// DefaultTargetWords is the default chunk size in words.
	DefaultTargetWords = 500

	// DefaultOverlapWords is the default number of words repeated across chunk boundaries.
	DefaultOverlapWords = 50

	// DefaultMinWords is the smallest chunk kept when a document yields more than one chunk.
	DefaultMinWords = 20

	// oversizeFactor bounds a single segment before it is force-split.
	oversizeFactor = 1.5
)

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

// Piece is one chunk of text.
type Piece struct {
	Content   string
	WordCount int
}

// Chunker splits text into overlapping pieces. It is stateless and safe for concurrent use.
type Chunker struct {
	targetWords  int
	overlapWords int
	minWords     int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithTargetWords sets the target chunk size in words.
func WithTargetWords(n int) Option {
	return func(c *Chunker) {
		c.targetWords = n
	}
}

// WithOverlapWords sets how many trailing words seed the next chunk.
func WithOverlapWords(n int) Option {
	return func(c *Chunker) {
		c.overlapWords = n
	}
}

// WithMinWords sets the minimum chunk size kept in multi-chunk documents.
func WithMinWords(n int) Option {
	return func(c *Chunker) {
		c.minWords = n
	}
}

// New creates a Chunker. The overlap must be smaller than the target, otherwise the
// window would never advance.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		targetWords:  DefaultTargetWords,
		overlapWords: DefaultOverlapWords,
		minWords:     DefaultMinWords,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.targetWords <= 0 {
		return nil, ErrInvalidTarget
	}
	if c.overlapWords < 0 || c.overlapWords >= c.targetWords {
		return nil, fmt.Errorf("%w: overlap %d, target %d", ErrInvalidOverlap, c.overlapWords, c.targetWords)
	}
	if c.minWords < 0 {
		return nil, ErrInvalidMinWords
	}
	return c, nil
}

// TargetWords returns the configured target size.
func (c *Chunker) TargetWords() int { return c.targetWords }

// OverlapWords returns the configured overlap.
func (c *Chunker) OverlapWords() int { return c.overlapWords }

// Chunk splits text into ordered pieces. Blank input yields no pieces.
func (c *Chunker) Chunk(text string) []Piece {
	segments, sep := splitSegments(text)
	if len(segments) == 0 {
		return nil
	}

	b := &builder{c: c, sep: sep}
	for _, seg := range segments {
		words := strings.Fields(seg)
		if float64(len(words)) > oversizeFactor*float64(c.targetWords) {
			b.flush()
			b.forceSplit(words)
			continue
		}
		if b.fresh > 0 && len(b.words)+len(words) > c.targetWords {
			b.flush()
		}
		b.add(seg, words)
	}
	b.flush()

	return c.dropSmall(b.pieces)
}

// All returns a restartable iterator over the pieces of text.
func (c *Chunker) All(text string) iter.Seq2[int, Piece] {
	return func(yield func(int, Piece) bool) {
		for i, p := range c.Chunk(text) {
			if !yield(i, p) {
				return
			}
		}
	}
}

// dropSmall discards undersized pieces unless the document has exactly one.
func (c *Chunker) dropSmall(pieces []Piece) []Piece {
	if len(pieces) <= 1 {
		return pieces
	}
	kept := pieces[:0:0]
	for _, p := range pieces {
		if p.WordCount >= c.minWords {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		// Never turn a non-empty document into zero chunks.
		return pieces[:1]
	}
	return kept
}

// builder accumulates segments into the current chunk.
type builder struct {
	c      *Chunker
	sep    string
	parts  []string // segment texts of the current chunk, seed included
	words  []string // all words of the current chunk
	fresh  int      // words added since the last seed
	pieces []Piece
}

func (b *builder) add(seg string, words []string) {
	b.parts = append(b.parts, seg)
	b.words = append(b.words, words...)
	b.fresh += len(words)
}

// flush finalizes the current chunk and seeds the next one with its trailing words.
// A chunk holding only seed words is not emitted.
func (b *builder) flush() {
	if b.fresh == 0 {
		return
	}
	b.emit(strings.Join(b.parts, b.sep), len(b.words))
	b.seed(b.words)
}

func (b *builder) seed(words []string) {
	b.parts, b.words, b.fresh = nil, nil, 0
	n := b.c.overlapWords
	if n == 0 || len(words) == 0 {
		return
	}
	if n > len(words) {
		n = len(words)
	}
	tail := append([]string(nil), words[len(words)-n:]...)
	b.parts = []string{strings.Join(tail, " ")}
	b.words = tail
}

// forceSplit cuts an oversized segment into windows of targetWords words that repeat
// overlapWords words between neighbors.
func (b *builder) forceSplit(words []string) {
	target, stride := b.c.targetWords, b.c.targetWords-b.c.overlapWords
	var last []string
	for start := 0; start < len(words); start += stride {
		end := min(start+target, len(words))
		last = words[start:end]
		b.emit(strings.Join(last, " "), len(last))
		if end == len(words) {
			break
		}
	}
	b.seed(last)
}

func (b *builder) emit(content string, wordCount int) {
	b.pieces = append(b.pieces, Piece{Content: content, WordCount: wordCount})
}

// splitSegments returns paragraphs, or sentences when the text has a single paragraph,
// together with the separator used to rejoin them.
func splitSegments(text string) ([]string, string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var paragraphs []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) != 1 {
		return paragraphs, "\n\n"
	}
	return splitSentences(paragraphs[0]), " "
}

// splitSentences cuts after runs of terminal punctuation that are followed by whitespace.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		j := i
		for j+1 < len(runes) && (isTerminal(runes[j+1]) || isCloser(runes[j+1])) {
			j++
		}
		if j+1 < len(runes) && !unicode.IsSpace(runes[j+1]) {
			i = j
			continue
		}
		if s := strings.TrimSpace(string(runes[start : j+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = j + 1
		i = j
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == ']' || r == '”' || r == '’'
}
