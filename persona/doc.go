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

// Package persona manages user personas and resolves the effective system
// prompt for a chat turn.
//
// A persona is a user-owned override of the assistant's instructions. Each
// user has at most one active persona; activating one deactivates the rest,
// and deleting the active persona clears the user's active pointer in the
// same transaction.
//
// The Resolver walks a three-step chain: active persona, then the knowledge
// base's configured default prompt, then FallbackSystemPrompt. Resolution
// never fails; an unreachable step degrades to the next.
package persona
