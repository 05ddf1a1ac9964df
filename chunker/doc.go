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


// Package chunker splits normalized document text into overlapping word-bounded pieces.
//
// Text is split on blank-line paragraph boundaries, or on sentence boundaries when the
// text is a single paragraph. Segments are accumulated greedily up to a target word
// count. When a chunk is finalized, the next chunk starts with the last N words of the
// previous one so a fact that straddles a boundary is retrievable from either side.
// Oversized segments are force-split into fixed windows, which bounds chunk size
// regardless of paragraph structure.
//
// # Usage
//
//	c, err := chunker.New(chunker.WithTargetWords(500), chunker.WithOverlapWords(50))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for i, piece := range c.All(text) {
//	    fmt.Println(i, piece.WordCount)
//	}
package chunker
