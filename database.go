// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package passage

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/ai/cache"
	"github.com/poiesic/passage/ai/openai"
	"github.com/poiesic/passage/dedup"
	"github.com/poiesic/passage/ingestion"
	"github.com/poiesic/passage/reindex"
	"github.com/poiesic/passage/search"
	"github.com/poiesic/passage/storage"
	"github.com/poiesic/passage/storage/badger"
)

// ErrProcessorRequired is returned by NewReindexer when no processor is given.
var ErrProcessorRequired = errors.New("reindex processor is required")

// Database ties the document store to an AI provider and builds the
// pipeline, searcher, detector and reindexer on top of them.
type Database struct {
	repos          *badger.Repositories
	provider       ai.AIProvider
	searchProvider ai.AIProvider
	logger         *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig  *ai.Config
	provider  ai.AIProvider
	inMemory  bool
	cacheSize int
	cacheTTL  time.Duration
}

// WithAIConfig sets the configuration used to build the OpenAI-compatible provider.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithProvider uses provider instead of building one from the AI config.
// The Database takes ownership and closes it.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithQueryCache caches query embeddings for searchers built by the Database.
// A zero size or TTL disables the cache.
func WithQueryCache(size int, ttl time.Duration) DatabaseOption {
	return func(o *databaseOptions) {
		o.cacheSize = size
		o.cacheTTL = ttl
	}
}

// WithInMemory keeps all data in memory. The path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	repos, err := badger.OpenRepositories(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			repos.Close()
			return nil, err
		}
	}

	return &Database{
		repos:          repos,
		provider:       provider,
		searchProvider: cache.WrapProvider(provider, options.cacheSize, options.cacheTTL),
		logger:         slog.Default().With("component", "database"),
	}, nil
}

// Close releases the provider and the underlying store.
func (db *Database) Close() error {
	// Close AI provider first
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	if err := db.repos.Close(); err != nil {
		db.logger.Error("error closing repositories", "err", err)
		return err
	}
	return nil
}

func (db *Database) Documents() storage.DocumentRepository {
	return db.repos.Documents
}

func (db *Database) Chunks() storage.ChunkRepository {
	return db.repos.Chunks
}

func (db *Database) Lineage() storage.LineageRepository {
	return db.repos.Lineage
}

// Provider returns the AI provider used for ingestion and reindexing.
func (db *Database) Provider() ai.AIProvider {
	return db.provider
}

// NewIngestionPipeline creates a pipeline. The caller must Release it.
func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(db.repos.Documents, db.repos.Chunks, db.provider, opts...)
}

func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(db.repos.Documents, db.repos.Chunks, db.searchProvider, opts...)
}

func (db *Database) NewDetector(opts ...dedup.Option) (*dedup.Detector, error) {
	return dedup.NewDetector(db.repos.Documents, db.repos.Chunks, db.repos.Lineage, opts...)
}

// NewReindexer creates a reindexer that rebuilds chunk sets through processor.
// With a nil source, stored chunks are re-embedded in place.
func (db *Database) NewReindexer(processor reindex.Processor, source reindex.Source, config *reindex.Config, progress io.Writer) (*reindex.Reindexer, error) {
	if processor == nil {
		return nil, ErrProcessorRequired
	}
	return reindex.NewReindexer(db.repos.Documents, processor, source, config, progress), nil
}
