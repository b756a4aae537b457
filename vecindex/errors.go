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


package vecindex

import "errors"

// ErrMismatchedVectors is returned when the number of vectors handed to the
// gateway differs from the number of chunks.
var ErrMismatchedVectors = errors.New("vector count does not match chunk count")

// ErrNoScopes is returned when a search names no scopes to query.
var ErrNoScopes = errors.New("at least one scope is required")
