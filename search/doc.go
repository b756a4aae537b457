// Copyright 2025 The Carrel Authors
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

// Package search answers retrieval queries over ingested documents.
//
// The Searcher embeds the query, fans it out across the caller's chosen
// scopes through the vector index gateway, and ranks the merged matches by
// similarity. Chunks that verbatim-contain every significant query word get
// a small boost, so an exact mention outranks a merely similar one.
//
// Callers that already hold a query vector can skip the embedding step with
// Search; SearchText is the usual entry point.
package search
