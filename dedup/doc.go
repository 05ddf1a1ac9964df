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


// Package dedup finds exact and near duplicate documents.
//
// Exact duplicates share a content hash (same text after whitespace and case
// normalization) or a file hash (same raw bytes). The two are reported
// separately, so a content match without a file match means the same text
// arrived in different bytes.
//
// Near duplicates compare each document's mean chunk embedding, cached by the
// chunk repository, against every other processed document's. Averaging makes
// this one comparison per document at the cost of diluting partial overlaps.
package dedup
