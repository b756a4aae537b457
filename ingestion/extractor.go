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


package ingestion

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// TextExtractor turns raw uploaded bytes into plain text for chunking.
type TextExtractor interface {
	// Extract returns the text content of data. The MIME type tells the
	// extractor how to interpret the bytes.
	Extract(ctx context.Context, mimeType string, data []byte) (string, error)
}

// PlainTextExtractor handles text-based MIME types by decoding the bytes
// as UTF-8. Binary formats (PDF, Word) need a richer extractor.
type PlainTextExtractor struct{}

var _ TextExtractor = (*PlainTextExtractor)(nil)

// Extract implements TextExtractor.
func (PlainTextExtractor) Extract(ctx context.Context, mimeType string, data []byte) (string, error) {
	mt := strings.ToLower(mimeType)
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	switch {
	case strings.HasPrefix(mt, "text/"):
	case mt == "application/json", mt == "application/xml",
		mt == "application/x-yaml", mt == "application/javascript":
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMimeType, mimeType)
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s content is not valid utf-8", mt)
	}
	return string(data), nil
}
