package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/poiesic/passage/ai"
)

// parseAttempts is how many completions are requested before giving up on malformed output.
const parseAttempts = 2

// Tagger implements ai.TagExtractor using an OpenAI-compatible chat API.
type Tagger struct {
	client  llms.Model
	maxTags int
	timeout time.Duration
	logger  *slog.Logger
}

// tagEnvelope accepts models that wrap the array in an object.
type tagEnvelope struct {
	Tags []string `json:"tags"`
}

// newTagger is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newTagger(config *ai.Config) (*Tagger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	key := config.APIKey
	if key == "" {
		key = "none"
	}
	client, err := openai.New(
		openai.WithBaseURL(config.TaggerHost),
		openai.WithToken(key),
		openai.WithModel(config.TaggerModel),
	)
	if err != nil {
		return nil, err
	}

	return newTaggerWithModel(client, config.MaxTags, config.RequestTimeout), nil
}

func newTaggerWithModel(client llms.Model, maxTags int, timeout time.Duration) *Tagger {
	return &Tagger{
		client:  client,
		maxTags: maxTags,
		timeout: timeout,
		logger:  slog.Default().With("component", "openai-tagger"),
	}
}

// NewTagger creates a new query tagger using the provided configuration.
//
// Returns ai.TagExtractor interface to enforce abstraction.
func NewTagger(config *ai.Config) (ai.TagExtractor, error) {
	return newTagger(config)
}

// ExtractTags asks the model for topical tags. Transport errors, timeouts and
// unparseable output all produce a fallback result rather than an error.
func (t *Tagger) ExtractTags(ctx context.Context, query string) ai.TagResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return ai.TagsFallback("empty query")
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildTagPrompt(t.maxTags))},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(query)},
		},
	}

	var lastErr error
	for attempt := 0; attempt < parseAttempts; attempt++ {
		raw, err := t.complete(ctx, content)
		if err != nil {
			t.logger.Warn("tag extraction failed, falling back", "attempt", attempt+1, "err", err)
			return ai.TagsFallback(fmt.Sprintf("tag service error: %v", err))
		}

		tags, err := parseTags(raw)
		if err != nil {
			lastErr = err
			t.logger.Warn("error parsing tagger response", "attempt", attempt+1, "response", raw, "err", err)
			continue
		}

		tags = ai.NormalizeTags(tags, t.maxTags)
		if len(tags) == 0 {
			t.logger.Debug("no tags extracted", "query", query)
			return ai.TagsFallback("no tags extracted")
		}
		t.logger.Debug("extracted tags", "count", len(tags))
		return ai.TagsOK(tags)
	}

	t.logger.Warn("failed to parse tagger response after retries, falling back", "err", lastErr)
	return ai.TagsFallback(fmt.Sprintf("unparseable tag response: %v", lastErr))
}

func (t *Tagger) complete(ctx context.Context, content []llms.MessageContent) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	response, err := t.client.GenerateContent(callCtx, content, llms.WithTemperature(0.0))
	if err != nil {
		return "", err
	}
	if len(response.Choices) < 1 {
		return "", fmt.Errorf("%w: no choices returned", ai.ErrMalformedResponse)
	}
	return response.Choices[0].Content, nil
}

// parseTags extracts a list of strings from a model reply. It accepts a bare JSON
// array, an object with a "tags" array, and either one wrapped in code fences or prose.
func parseTags(raw string) ([]string, error) {
	text := stripCodeFences(raw)

	var tags []string
	if err := json.Unmarshal([]byte(text), &tags); err == nil {
		return tags, nil
	}

	var env tagEnvelope
	if err := json.Unmarshal([]byte(repairJSON(text)), &env); err == nil && env.Tags != nil {
		return env.Tags, nil
	}

	start, end := strings.Index(text, "["), strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &tags); err == nil {
			return tags, nil
		}
	}
	return nil, fmt.Errorf("%w: expected a JSON array of strings", ai.ErrMalformedResponse)
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
