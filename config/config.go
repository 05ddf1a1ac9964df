// Package config loads the passage YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/chunker"
	"github.com/poiesic/passage/dedup"
	"github.com/poiesic/passage/ingestion"
	"github.com/poiesic/passage/search"
)

// ErrInvalidConfig is returned when a loaded file holds out-of-range values.
var ErrInvalidConfig = errors.New("invalid config")

// AIConfig configures the embedding and tagging services.
type AIConfig struct {
	EmbeddingHost     string        `yaml:"embedding_host"`
	TaggerHost        string        `yaml:"tagger_host"`
	EmbeddingModel    string        `yaml:"embedding_model"`
	TaggerModel       string        `yaml:"tagger_model"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	MaxInputChars     int           `yaml:"max_input_chars"`
	BatchSize         int           `yaml:"batch_size"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxTags           int           `yaml:"max_tags"`
}

// ChunkingConfig configures how documents are split into chunks.
type ChunkingConfig struct {
	TargetWords  int `yaml:"target_words"`
	OverlapWords int `yaml:"overlap_words"`
	MinWords     int `yaml:"min_words"`
}

// IngestionConfig configures the ingestion pipeline.
type IngestionConfig struct {
	PoolSize  int  `yaml:"pool_size"`
	BatchSize int  `yaml:"batch_size"`
	Probe     bool `yaml:"probe"`
}

// SearchConfig configures two-stage retrieval.
type SearchConfig struct {
	TopK           int           `yaml:"top_k"`
	UseThreshold   bool          `yaml:"use_threshold"`
	Threshold      float64       `yaml:"threshold"`
	MinResults     int           `yaml:"min_results"`
	UseTags        bool          `yaml:"use_tags"`
	TagCandidates  int           `yaml:"tag_candidates"`
	QueryCacheSize int           `yaml:"query_cache_size"`
	QueryCacheTTL  time.Duration `yaml:"query_cache_ttl"`
}

// DedupConfig configures duplicate detection.
type DedupConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Database  string          `yaml:"database"`
	AI        AIConfig        `yaml:"ai"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Search    SearchConfig    `yaml:"search"`
	Dedup     DedupConfig     `yaml:"dedup"`
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	aiDefaults := ai.DefaultConfig()
	rank := search.DefaultRankOptions()
	return &AppConfig{
		Database: "passage.db",
		AI: AIConfig{
			EmbeddingHost:  aiDefaults.EmbeddingHost,
			TaggerHost:     aiDefaults.TaggerHost,
			EmbeddingModel: aiDefaults.EmbeddingModel,
			TaggerModel:    aiDefaults.TaggerModel,
			APIKeyEnv:      "PASSAGE_API_KEY",
			MaxInputChars:  aiDefaults.MaxInputChars,
			BatchSize:      aiDefaults.BatchSize,
			RequestTimeout: aiDefaults.RequestTimeout,
			MaxRetries:     aiDefaults.MaxRetries,
			MaxTags:        aiDefaults.MaxTags,
		},
		Chunking: ChunkingConfig{
			TargetWords:  chunker.DefaultTargetWords,
			OverlapWords: chunker.DefaultOverlapWords,
			MinWords:     chunker.DefaultMinWords,
		},
		Ingestion: IngestionConfig{
			BatchSize: ingestion.DefaultBatchSize,
		},
		Search: SearchConfig{
			TopK:           rank.TopK,
			UseThreshold:   rank.UseThreshold,
			Threshold:      rank.Threshold,
			MinResults:     rank.MinResults,
			UseTags:        true,
			TagCandidates:  search.DefaultTagCandidates,
			QueryCacheSize: 256,
			QueryCacheTTL:  10 * time.Minute,
		},
		Dedup: DedupConfig{
			Threshold: dedup.DefaultThreshold,
		},
	}
}

// Load reads a config from path over the defaults. If the file does not exist,
// returns defaults. Durations are written like "30s".
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the values that other packages would otherwise reject late.
func (c *AppConfig) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("%w: database path is required", ErrInvalidConfig)
	}
	if c.Search.Threshold < 0 || c.Search.Threshold > 1 {
		return fmt.Errorf("%w: search threshold must be in [0, 1]", ErrInvalidConfig)
	}
	if c.Dedup.Threshold <= 0 || c.Dedup.Threshold > 1 {
		return fmt.Errorf("%w: dedup threshold must be in (0, 1]", ErrInvalidConfig)
	}
	if c.Search.MinResults < 0 {
		return fmt.Errorf("%w: search min_results cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// APIKey reads the provider key from the configured environment variable,
// falling back to OPENAI_API_KEY.
func (c *AppConfig) APIKey() string {
	if c.AI.APIKeyEnv != "" {
		if key := os.Getenv(c.AI.APIKeyEnv); key != "" {
			return key
		}
	}
	return os.Getenv("OPENAI_API_KEY")
}

// AIOptions converts the ai section into ai.ConfigOptions.
// The API key is only set (and so required) when apiKey is non-empty.
func (c *AppConfig) AIOptions(apiKey string) []ai.ConfigOption {
	opts := []ai.ConfigOption{
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithTaggerHost(c.AI.TaggerHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithTaggerModel(c.AI.TaggerModel),
		ai.WithMaxInputChars(c.AI.MaxInputChars),
		ai.WithBatchSize(c.AI.BatchSize),
		ai.WithRequestTimeout(c.AI.RequestTimeout),
		ai.WithMaxRetries(c.AI.MaxRetries),
		ai.WithRequestsPerSecond(c.AI.RequestsPerSecond),
		ai.WithMaxTags(c.AI.MaxTags),
	}
	if apiKey != "" {
		opts = append(opts, ai.WithAPIKey(apiKey))
	}
	return opts
}

// ChunkerOptions converts the chunking section into chunker options.
func (c *AppConfig) ChunkerOptions() []chunker.Option {
	return []chunker.Option{
		chunker.WithTargetWords(c.Chunking.TargetWords),
		chunker.WithOverlapWords(c.Chunking.OverlapWords),
		chunker.WithMinWords(c.Chunking.MinWords),
	}
}

// SearchOptions converts the search section into per-query search options.
func (c *AppConfig) SearchOptions() search.Options {
	return search.Options{
		Rank: search.RankOptions{
			TopK:         c.Search.TopK,
			UseThreshold: c.Search.UseThreshold,
			Threshold:    c.Search.Threshold,
			MinResults:   c.Search.MinResults,
		},
		UseTags:       c.Search.UseTags,
		TagCandidates: c.Search.TagCandidates,
	}
}
