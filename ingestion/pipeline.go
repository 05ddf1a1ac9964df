package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/chunker"
	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/storage"
	"github.com/poiesic/passage/textnorm"
)

// DefaultBatchSize is the number of chunks sent per embedding call.
const DefaultBatchSize = 16

// Pipeline orchestrates chunking, embedding and storage of documents.
type Pipeline struct {
	documents     storage.DocumentRepository
	chunks        storage.ChunkRepository
	embedder      ai.Embedder
	chunker       *chunker.Chunker
	embeddingPool *ants.Pool
	embeddingProc *embeddingProcessor
	batchSize     int
	probe         bool
	locks         *docLocks
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embeddingPool = pool
		return nil
	}
}

// WithBatchSize sets how many chunks go into one embedding call.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		p.batchSize = size
		return nil
	}
}

// WithProbe makes Ingest check the embedding provider before storing anything.
func WithProbe(probe bool) Option {
	return func(p *Pipeline) error {
		p.probe = probe
		return nil
	}
}

// WithChunker replaces the default chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(p *Pipeline) error {
		if c == nil {
			return errors.New("chunker required")
		}
		p.chunker = c
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	documents storage.DocumentRepository,
	chunks storage.ChunkRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	embeddingPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	defaultChunker, err := chunker.New()
	if err != nil {
		embeddingPool.Release()
		return nil, err
	}

	// Create pipeline with defaults
	p := &Pipeline{
		documents:     documents,
		chunks:        chunks,
		embedder:      provider.Embedder(),
		chunker:       defaultChunker,
		embeddingPool: embeddingPool,
		batchSize:     DefaultBatchSize,
		locks:         newDocLocks(),
		logger:        slog.Default().With("component", "ingestion"),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// Create the processor after options are applied so it gets the final config
	p.embeddingProc, err = newEmbeddingProcessor(p.embedder, p.embeddingPool, p.batchSize, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}

	return p, nil
}

// IngestRequest describes a document to add.
type IngestRequest struct {
	Title  string
	Source string

	// Raw holds the original bytes and determines the file hash.
	// When empty, Text is hashed instead.
	Raw []byte

	// Text is the document text. When empty it is derived from Raw, converting
	// Markdown to plain text when Markdown is set or Source ends in .md.
	Text     string
	Markdown bool

	Tags      []string
	Status    string
	LegalHold bool
	Metadata  map[string]string
}

// Ingest stores a new document and processes it. If processing fails the
// document stays stored, marked unprocessed, and is returned with the error.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*core.Document, error) {
	if p.probe {
		if err := p.embedder.Probe(ctx); err != nil {
			p.logger.Error("embedding provider probe failed", "err", err)
			return nil, err
		}
	}

	raw := req.Raw
	if len(raw) == 0 {
		raw = []byte(req.Text)
	}
	text := req.Text
	markdown := false
	if text == "" {
		if req.Markdown || textnorm.IsMarkdown(req.Source) {
			text = textnorm.MarkdownToText(raw)
			markdown = true
		} else {
			text = string(raw)
		}
	}
	text = textnorm.Normalize(text)
	if text == "" {
		return nil, ErrEmptyDocument
	}

	added, err := p.documents.AddDocuments(ctx, &core.Document{
		Title:       req.Title,
		Source:      req.Source,
		Markdown:    markdown,
		ContentHash: core.ContentHash(text),
		FileHash:    core.FileHash(raw),
		Tags:        ai.NormalizeTags(req.Tags, 0),
		Status:      req.Status,
		LegalHold:   req.LegalHold,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	doc := added[0]
	p.logger.Info("document added", "doc", doc.Id, "title", doc.Title)

	if err := p.Process(ctx, doc.Id, text); err != nil {
		if current, getErr := p.documents.GetDocument(context.WithoutCancel(ctx), doc.Id); getErr == nil {
			doc = current
		}
		return doc, err
	}
	return p.documents.GetDocument(ctx, doc.Id)
}

// Process chunks and embeds text and replaces docID's chunk set with the result.
// Calls for the same document run one at a time.
func (p *Pipeline) Process(ctx context.Context, docID core.ID, text string) error {
	unlock := p.locks.lock(docID)
	defer unlock()

	if _, err := p.documents.GetDocument(ctx, docID); err != nil {
		return err
	}

	err := p.process(ctx, docID, text)
	if err != nil {
		p.logger.Error("error processing document", "doc", docID, "err", err)
		if markErr := p.markFailed(ctx, docID, err); markErr != nil {
			return errors.Join(err, markErr)
		}
	}
	return err
}

func (p *Pipeline) process(ctx context.Context, docID core.ID, text string) error {
	pieces := p.chunker.Chunk(textnorm.Normalize(text))
	if len(pieces) == 0 {
		return ErrEmptyDocument
	}

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Content
	}
	vectors, err := p.embeddingProc.embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	chunks := make([]*core.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &core.Chunk{
			DocumentId: docID,
			Index:      i,
			Content:    piece.Content,
			WordCount:  piece.WordCount,
			Embedding:  vectors[i],
		}
	}
	if err := p.chunks.ReplaceChunks(ctx, docID, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	p.logger.Info("document processed", "doc", docID, "chunks", len(chunks))
	return nil
}

// Reembed embeds docID's stored chunk texts again and replaces the chunk set,
// keeping the chunk boundaries. A failure leaves the stored set untouched.
func (p *Pipeline) Reembed(ctx context.Context, docID core.ID) error {
	unlock := p.locks.lock(docID)
	defer unlock()

	doc, err := p.documents.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	if !doc.Processed {
		return fmt.Errorf("%w: document %d", ErrNotProcessed, docID)
	}

	chunks, err := p.chunks.GetChunksByDocuments(ctx, docID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := p.embeddingProc.embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	if err := p.chunks.ReplaceChunks(ctx, docID, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	p.logger.Info("document re-embedded", "doc", docID, "chunks", len(chunks))
	return nil
}

// UpdateHashes records new content and file hashes for docID.
func (p *Pipeline) UpdateHashes(ctx context.Context, docID core.ID, contentHash, fileHash string) error {
	unlock := p.locks.lock(docID)
	defer unlock()

	doc, err := p.documents.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	if doc.ContentHash == contentHash && doc.FileHash == fileHash {
		return nil
	}
	doc.ContentHash, doc.FileHash = contentHash, fileHash
	_, err = p.documents.UpdateDocuments(ctx, doc)
	return err
}

// markFailed records err on the document without touching its chunk set.
// It runs even when ctx is cancelled.
func (p *Pipeline) markFailed(ctx context.Context, docID core.ID, err error) error {
	ctx = context.WithoutCancel(ctx)
	doc, getErr := p.documents.GetDocument(ctx, docID)
	if getErr != nil {
		return getErr
	}
	doc.Processed = false
	doc.ProcessingError = err.Error()
	_, updateErr := p.documents.UpdateDocuments(ctx, doc)
	return updateErr
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}
