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


// Package ai provides abstractions for the model services used by passage.
//
// Two services are involved: an Embedder that maps text to vectors for chunk
// and query embedding, and a TagExtractor that reduces a search query to a few
// topical tags for the document pre-filter. AIProvider groups both so they can
// share one Config.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible embeddings (openai-go) and chat tagging (langchaingo)
//   - ai/cache: an expiring LRU in front of any Embedder, used for query embeddings
//   - ai/mock: deterministic doubles for tests
//
// Public constructors return interfaces. Mock constructors return concrete types
// so tests can inject behavior and read call counts.
//
// # Usage Example
//
//	cfg := ai.NewConfig(
//	    ai.WithHost("https://api.openai.com/v1"),
//	    ai.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	)
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "retention schedule for invoices")
//	tags := provider.TagExtractor().ExtractTags(ctx, "how long do we keep invoices?")
//	if tags.Fallback {
//	    // search every chunk instead
//	}
package ai
