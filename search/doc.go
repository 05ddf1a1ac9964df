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


// Package search implements two-stage retrieval over chunked documents.
//
// Stage 1 is an optional tag pre-filter: an ai.TagExtractor turns the query into
// normalized tags and ScoreDocumentsByTags picks the documents whose own tags
// overlap them. Stage 2 embeds the query and ranks candidate chunks by cosine
// similarity with a relevance threshold that never starves the caller of a
// minimum number of results.
//
// The Searcher wires both stages to the storage repositories. Rank, GroupBySource
// and FormatCitations are usable on their own.
package search
