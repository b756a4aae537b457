// Copyright 2025 Carrel Authors
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


// Package vecindex routes vector operations to a pluggable vector index.
//
// The Gateway is the only path to the index. It resolves a document's scope
// to a namespace (one fixed namespace for the system knowledge base, one per
// user, one per tenant), assigns deterministic vector ids derived from the
// document id and chunk sequence, and wraps every index call in a
// resilience.Guard. Search fans out across the namespaces the caller chooses
// and merges results by score.
//
// Two adapters implement the Index contract:
//
//   - vecindex/memindex: in-process brute-force index for tests and small
//     local deployments
//   - vecindex/qdrant: Qdrant over gRPC, one collection per namespace
package vecindex
