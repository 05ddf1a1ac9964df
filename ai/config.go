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


package ai

import (
	"fmt"
	"strings"
	"time"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "https://api.openai.com/v1" or "http://localhost:11434/v1"
	EmbeddingHost string

	// TaggerHost is the base URL for the chat service used for query tagging.
	TaggerHost string

	// EmbeddingModel is the model identifier used for chunk and query embeddings.
	// Example: "text-embedding-3-small"
	EmbeddingModel string

	// TaggerModel is the chat model identifier used for query tagging.
	// Example: "gpt-4o-mini", "qwen2.5:3b"
	TaggerModel string

	// APIKey is sent as a bearer token. Local servers usually accept any value.
	APIKey string

	// RequireAPIKey makes Validate fail when APIKey is empty.
	RequireAPIKey bool

	// MaxInputChars truncates embedding inputs longer than this many characters.
	// Default: 8000
	MaxInputChars int

	// BatchSize is the number of texts per embedding request.
	// Default: 64
	BatchSize int

	// RequestTimeout bounds every single provider request.
	// Default: 30s
	RequestTimeout time.Duration

	// MaxRetries is the number of retries for transient embedding failures.
	// Default: 3
	MaxRetries int

	// RequestsPerSecond throttles embedding requests client-side. Zero disables throttling.
	RequestsPerSecond float64

	// MaxTags caps the tags kept from one query.
	// Default: 15
	MaxTags int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithTaggerHost sets the tagging service host URL.
func WithTaggerHost(host string) ConfigOption {
	return func(c *Config) {
		c.TaggerHost = host
	}
}

// WithHost sets both embedding and tagger hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.TaggerHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithTaggerModel sets the tagging model identifier.
func WithTaggerModel(model string) ConfigOption {
	return func(c *Config) {
		c.TaggerModel = model
	}
}

// WithAPIKey sets the API key and makes it mandatory.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
		c.RequireAPIKey = true
	}
}

// WithMaxInputChars sets the embedding input truncation limit.
func WithMaxInputChars(n int) ConfigOption {
	return func(c *Config) {
		c.MaxInputChars = n
	}
}

// WithBatchSize sets the number of texts per embedding request.
func WithBatchSize(n int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = n
	}
}

// WithRequestTimeout sets the per-request timeout.
func WithRequestTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequestTimeout = d
	}
}

// WithMaxRetries sets how many times transient embedding failures are retried.
func WithMaxRetries(n int) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithRequestsPerSecond sets the client-side embedding request rate.
func WithRequestsPerSecond(rps float64) ConfigOption {
	return func(c *Config) {
		c.RequestsPerSecond = rps
	}
}

// WithMaxTags sets the tag cap.
func WithMaxTags(n int) ConfigOption {
	return func(c *Config) {
		c.MaxTags = n
	}
}

// DefaultConfig returns a Config with sensible defaults for a local OpenAI-compatible server.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:  defaultHost,
		TaggerHost:     defaultHost,
		EmbeddingModel: "nomic-embed-text",
		TaggerModel:    "qwen2.5:3b",
		MaxInputChars:  8000,
		BatchSize:      64,
		RequestTimeout: 30 * time.Second,
		MaxRetries:     3,
		MaxTags:        DefaultMaxTags,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("https://api.openai.com/v1"),
//	    WithEmbeddingModel("text-embedding-3-small"),
//	    WithAPIKey(key),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which OpenAI-compatible servers expect.
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.TaggerHost = normalizeHost(c.TaggerHost)
	c.APIKey = strings.TrimSpace(c.APIKey)
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()

	switch {
	case c.EmbeddingHost == "":
		return fmt.Errorf("%w: EmbeddingHost is required", ErrInvalidConfig)
	case c.TaggerHost == "":
		return fmt.Errorf("%w: TaggerHost is required", ErrInvalidConfig)
	case c.EmbeddingModel == "":
		return fmt.Errorf("%w: EmbeddingModel is required", ErrInvalidConfig)
	case c.TaggerModel == "":
		return fmt.Errorf("%w: TaggerModel is required", ErrInvalidConfig)
	case c.RequireAPIKey && c.APIKey == "":
		return fmt.Errorf("%w: APIKey is required", ErrInvalidConfig)
	case c.MaxInputChars <= 0:
		return fmt.Errorf("%w: MaxInputChars must be positive", ErrInvalidConfig)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: BatchSize must be positive", ErrInvalidConfig)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("%w: RequestTimeout must be positive", ErrInvalidConfig)
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: MaxRetries cannot be negative", ErrInvalidConfig)
	case c.RequestsPerSecond < 0:
		return fmt.Errorf("%w: RequestsPerSecond cannot be negative", ErrInvalidConfig)
	case c.MaxTags < 1:
		return fmt.Errorf("%w: MaxTags must be at least 1", ErrInvalidConfig)
	}
	return nil
}
