package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/storage"
)

// DefaultTagCandidates is how many tag-scored documents Stage 1 passes on.
const DefaultTagCandidates = 20

// Searcher runs two-stage retrieval over the chunk store.
type Searcher struct {
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	embedder  ai.Embedder
	tagger    ai.TagExtractor
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// Options controls a single search.
type Options struct {
	Rank RankOptions

	// UseTags enables the Stage 1 tag pre-filter.
	UseTags bool

	// TagCandidates caps the documents kept by Stage 1.
	TagCandidates int

	// Filter restricts candidate documents. The zero value allows all.
	Filter storage.ChunkFilter

	// Monitor observes each stage. Nil disables monitoring.
	Monitor SearchMonitor
}

// DefaultOptions returns tag pre-filtering with the default ranking.
func DefaultOptions() Options {
	return Options{
		Rank:          DefaultRankOptions(),
		UseTags:       true,
		TagCandidates: DefaultTagCandidates,
	}
}

// Result is the outcome of a search.
type Result struct {
	Query string

	// Tags is the Stage 1 outcome. It is zero when tags were not requested.
	Tags ai.TagResult

	// TagFiltered reports whether candidates came from the tag-scored documents.
	TagFiltered bool

	Chunks    []*ScoredChunk
	Sources   []SourceRelevance
	Documents map[core.ID]*core.Document
	Citations string

	// NoRelevantInformation is set when there were no candidate chunks at all.
	NoRelevantInformation bool
}

// NewSearcher creates a new searcher.
func NewSearcher(
	documents storage.DocumentRepository,
	chunks storage.ChunkRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Searcher, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		documents: documents,
		chunks:    chunks,
		embedder:  provider.Embedder(),
		tagger:    provider.TagExtractor(),
		logger:    slog.Default().With("component", "searcher"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search finds the chunks most relevant to query.
//
// A failed or empty Stage 1 falls back to every chunk allowed by opts.Filter.
// No candidates at all is not an error: the result has NoRelevantInformation set.
// Failing to embed the query is.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) (*Result, error) {
	monitor := opts.Monitor
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if err := opts.Filter.Validate(); err != nil {
		return nil, err
	}

	monitor.Start(query)
	result := &Result{Query: query}

	// 1. Tag pre-filter
	var candidates []*core.Chunk
	if opts.UseTags && s.tagger != nil {
		chunks, tags := s.tagCandidates(ctx, query, opts, monitor)
		result.Tags = tags
		if len(chunks) > 0 {
			candidates = chunks
			result.TagFiltered = true
		}
	}

	// 2. Fallback to every eligible chunk
	if !result.TagFiltered {
		var err error
		if opts.Filter.IsZero() {
			candidates, err = s.chunks.GetEmbeddedChunks(ctx)
		} else {
			candidates, err = s.chunks.GetChunksFiltered(ctx, opts.Filter)
		}
		if err != nil {
			s.logger.Error("error retrieving candidate chunks", "err", err)
			return nil, err
		}
	}
	monitor.AfterCandidateRetrieval(candidates, result.TagFiltered)

	if len(candidates) == 0 {
		result.NoRelevantInformation = true
		result.Citations = NoRelevantInformation
		monitor.Finish(result)
		return result, nil
	}

	// 3. Rank by similarity to the query embedding
	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if dim := len(candidates[0].Embedding); dim != len(embedding) {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d", core.ErrDimensionMismatch, len(embedding), dim)
	}
	result.Chunks = Rank(embedding, candidates, opts.Rank)
	monitor.AfterRanking(result.Chunks)

	// 4. Group and cite
	result.Sources = GroupBySource(result.Chunks)
	ids := make([]core.ID, len(result.Sources))
	for i, src := range result.Sources {
		ids[i] = src.DocumentId
	}
	docs, err := s.documents.GetDocuments(ctx, ids...)
	if err != nil {
		s.logger.Error("error retrieving cited documents", "count", len(ids), "err", err)
		return nil, err
	}
	result.Documents = make(map[core.ID]*core.Document, len(docs))
	for _, doc := range docs {
		result.Documents[doc.Id] = doc
	}
	result.Citations = FormatCitations(result.Chunks, result.Documents)

	monitor.Finish(result)
	return result, nil
}

// tagCandidates runs Stage 1 and returns the embedded chunks of the best tagged
// documents. An empty chunk list means the caller should fall back; Stage 1
// failures are logged and never fail the search.
func (s *Searcher) tagCandidates(ctx context.Context, query string, opts Options, monitor SearchMonitor) ([]*core.Chunk, ai.TagResult) {
	tags := s.tagger.ExtractTags(ctx, query)
	monitor.AfterTagExtraction(tags)
	if tags.Fallback {
		s.logger.Warn("tag extraction fell back to unfiltered search", "reason", tags.Reason)
		return nil, tags
	}

	docs, err := s.documents.ListDocuments(ctx, 0, 0)
	if err != nil {
		s.logger.Warn("listing documents for tag scoring failed, falling back to unfiltered search", "err", err)
		return nil, tags
	}
	eligible := docs[:0]
	for _, doc := range docs {
		if doc.Processed && opts.Filter.Matches(doc) {
			eligible = append(eligible, doc)
		}
	}

	topN := opts.TagCandidates
	if topN <= 0 {
		topN = DefaultTagCandidates
	}
	scores := ScoreDocumentsByTags(tags.Tags, eligible, topN)
	monitor.AfterTagScoring(scores)
	if len(scores) == 0 {
		s.logger.Debug("no documents matched query tags", "tags", tags.Tags)
		return nil, tags
	}

	chunks, err := s.chunks.GetChunksByDocuments(ctx, DocumentIds(scores)...)
	if err != nil {
		s.logger.Warn("retrieving tagged chunks failed, falling back to unfiltered search", "err", err)
		return nil, tags
	}
	embedded := chunks[:0]
	for _, c := range chunks {
		if c.Embedded() {
			embedded = append(embedded, c)
		}
	}
	return embedded, tags
}
