package dedup

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/storage"
)

// DefaultThreshold is the minimum mean-embedding similarity reported as a near duplicate.
const DefaultThreshold = 0.92

// similarityPlaces is the rounding applied to reported similarities.
const similarityPlaces = 3

// ExactMatches lists documents sharing a hash with the target, target excluded.
type ExactMatches struct {
	ContentMatches []*core.Document
	FileMatches    []*core.Document
}

// Empty reports whether neither hash matched another document.
func (m *ExactMatches) Empty() bool {
	return len(m.ContentMatches) == 0 && len(m.FileMatches) == 0
}

// NearDuplicate is a document whose mean embedding is close to the target's.
type NearDuplicate struct {
	DocumentId core.ID
	Title      string
	Similarity float64
}

// Detector finds duplicates among stored documents.
type Detector struct {
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	lineage   storage.LineageRepository
	threshold float64
	logger    *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector) error

// WithThreshold sets the default near-duplicate threshold.
func WithThreshold(threshold float64) Option {
	return func(d *Detector) error {
		if threshold <= 0 || threshold > 1 {
			return fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
		}
		d.threshold = threshold
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// NewDetector creates a duplicate detector.
func NewDetector(
	documents storage.DocumentRepository,
	chunks storage.ChunkRepository,
	lineage storage.LineageRepository,
	opts ...Option,
) (*Detector, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if lineage == nil {
		return nil, ErrLineageRepositoryRequired
	}

	d := &Detector{
		documents: documents,
		chunks:    chunks,
		lineage:   lineage,
		threshold: DefaultThreshold,
		logger:    slog.Default().With("component", "dedup"),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// FindDuplicates returns the documents sharing docID's content hash and,
// independently, its file hash.
func (d *Detector) FindDuplicates(ctx context.Context, docID core.ID) (*ExactMatches, error) {
	doc, err := d.documents.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}

	content, err := d.documents.FindByContentHash(ctx, doc.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("content hash lookup: %w", err)
	}
	file, err := d.documents.FindByFileHash(ctx, doc.FileHash)
	if err != nil {
		return nil, fmt.Errorf("file hash lookup: %w", err)
	}

	return &ExactMatches{
		ContentMatches: excluding(content, docID),
		FileMatches:    excluding(file, docID),
	}, nil
}

func excluding(docs []*core.Document, id core.ID) []*core.Document {
	out := make([]*core.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Id != id {
			out = append(out, doc)
		}
	}
	return out
}

// FindNearDuplicates compares docID's mean embedding with every other processed
// document's and returns those at or above threshold, most similar first, with
// similarities rounded to three decimals. A threshold <= 0 uses the detector's
// default. A target without embedded chunks has no near duplicates.
func (d *Detector) FindNearDuplicates(ctx context.Context, docID core.ID, threshold float64) ([]NearDuplicate, error) {
	if threshold <= 0 {
		threshold = d.threshold
	}
	if threshold > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}
	if _, err := d.documents.GetDocument(ctx, docID); err != nil {
		return nil, err
	}

	target, err := d.chunks.GetMeanVector(ctx, docID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		d.logger.Debug("document has no embeddings", "doc", docID)
		return []NearDuplicate{}, nil
	}

	means, err := d.chunks.GetMeanVectors(ctx)
	if err != nil {
		return nil, err
	}
	similarity := make(map[core.ID]float64)
	var ids []core.ID
	for _, m := range means {
		if m.DocumentId == docID {
			continue
		}
		if sim := core.CosineSimilarity(target, m.Vector); sim >= threshold {
			similarity[m.DocumentId] = sim
			ids = append(ids, m.DocumentId)
		}
	}
	if len(ids) == 0 {
		return []NearDuplicate{}, nil
	}

	docs, err := d.documents.GetDocuments(ctx, ids...)
	if err != nil {
		return nil, err
	}
	result := make([]NearDuplicate, 0, len(docs))
	for _, doc := range docs {
		if !doc.Processed {
			continue
		}
		result = append(result, NearDuplicate{
			DocumentId: doc.Id,
			Title:      doc.Title,
			Similarity: core.Round(similarity[doc.Id], similarityPlaces),
		})
	}
	slices.SortFunc(result, func(a, b NearDuplicate) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.DocumentId, b.DocumentId)
	})
	return result, nil
}

// RecordLineage stores duplicate_of edges from docID to each exact duplicate
// (confidence 1) and near duplicate (confidence = similarity) at the default
// threshold. An exact duplicate is recorded once even when it is also near.
func (d *Detector) RecordLineage(ctx context.Context, docID core.ID) ([]*core.LineageEdge, error) {
	exact, err := d.FindDuplicates(ctx, docID)
	if err != nil {
		return nil, err
	}
	near, err := d.FindNearDuplicates(ctx, docID, d.threshold)
	if err != nil {
		return nil, err
	}

	seen := make(map[core.ID]struct{})
	var edges []*core.LineageEdge
	add := func(target core.ID, confidence float64) {
		if _, ok := seen[target]; ok {
			return
		}
		seen[target] = struct{}{}
		edges = append(edges, &core.LineageEdge{
			SourceId:   docID,
			TargetId:   target,
			Relation:   core.RelationDuplicateOf,
			Confidence: confidence,
		})
	}
	for _, doc := range exact.ContentMatches {
		add(doc.Id, 1)
	}
	for _, doc := range exact.FileMatches {
		add(doc.Id, 1)
	}
	for _, n := range near {
		add(n.DocumentId, n.Similarity)
	}

	if len(edges) == 0 {
		return edges, nil
	}
	if err := d.lineage.AddEdges(ctx, edges...); err != nil {
		return nil, fmt.Errorf("record lineage: %w", err)
	}
	d.logger.Info("recorded duplicate lineage", "doc", docID, "edges", len(edges))
	return edges, nil
}
