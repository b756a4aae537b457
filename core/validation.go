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


package core

import "fmt"

// maxIdentifierLen bounds owner and tenant IDs so namespaces stay within
// vector store collection name limits.
const maxIdentifierLen = 64

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Id must not be empty
//   - Scope must be valid
//   - Status must be valid
//   - a failed document must carry an ErrorCode
//   - a completed document must carry at least one chunk
//
// NOT validated (populated during processing):
//   - ContentHash (empty until extracted text is known)
//   - ExtractedText (may be empty when the blob is the source of truth)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Id == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDocument)
	}

	if err := ValidateScope(doc.Scope); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if err := ValidateStatus(doc.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if doc.Status == StatusFailed && doc.ErrorCode == "" {
		return fmt.Errorf("%w: failed document without an error code", ErrInvalidDocument)
	}

	if doc.Status == StatusCompleted && doc.ChunkCount < 1 {
		return fmt.Errorf("%w: completed document without chunks", ErrInvalidDocument)
	}

	return nil
}

// ValidateScope validates that a Scope carries exactly the identifiers its
// source type requires.
//
// Validation rules:
//   - Source must be system, user or tenant
//   - user scopes require OwnerId and forbid TenantId
//   - tenant scopes require TenantId and forbid OwnerId
//   - system scopes carry neither
//   - identifiers use only [A-Za-z0-9_-], at most 64 characters
func ValidateScope(scope Scope) error {
	if err := ValidateSourceType(scope.Source); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}

	switch scope.Source {
	case SourceSystem:
		if scope.OwnerId != "" || scope.TenantId != "" {
			return fmt.Errorf("%w: %w", ErrInvalidScope, ErrUnexpectedIdentifier)
		}
	case SourceUser:
		if scope.OwnerId == "" {
			return fmt.Errorf("%w: %w", ErrInvalidScope, ErrMissingOwner)
		}
		if scope.TenantId != "" {
			return fmt.Errorf("%w: %w", ErrInvalidScope, ErrUnexpectedIdentifier)
		}
		if !validIdentifier(scope.OwnerId) {
			return fmt.Errorf("%w: %w: %q", ErrInvalidScope, ErrBadIdentifier, scope.OwnerId)
		}
	case SourceTenant:
		if scope.TenantId == "" {
			return fmt.Errorf("%w: %w", ErrInvalidScope, ErrMissingTenant)
		}
		if scope.OwnerId != "" {
			return fmt.Errorf("%w: %w", ErrInvalidScope, ErrUnexpectedIdentifier)
		}
		if !validIdentifier(scope.TenantId) {
			return fmt.Errorf("%w: %w: %q", ErrInvalidScope, ErrBadIdentifier, scope.TenantId)
		}
	}

	return nil
}

// ValidatePersona validates a Persona according to domain rules.
//
// Validation rules:
//   - Id and OwnerId must not be empty
//   - Name must not be empty
//   - Prompt must not be empty
func ValidatePersona(persona *Persona) error {
	if persona == nil {
		return fmt.Errorf("%w: persona is nil", ErrInvalidPersona)
	}

	if persona.Id == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidPersona)
	}

	if persona.OwnerId == "" {
		return fmt.Errorf("%w: missing owner id", ErrInvalidPersona)
	}

	if persona.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPersona, ErrEmptyPersonaName)
	}

	if persona.Prompt == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPersona, ErrEmptyPersonaPrompt)
	}

	return nil
}

// ValidateFolder validates a Folder according to domain rules.
//
// Validation rules:
//   - Id and OwnerId must not be empty
//   - Name must not be empty
func ValidateFolder(folder *Folder) error {
	if folder == nil {
		return fmt.Errorf("%w: folder is nil", ErrInvalidFolder)
	}

	if folder.Id == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidFolder)
	}

	if folder.OwnerId == "" {
		return fmt.Errorf("%w: missing owner id", ErrInvalidFolder)
	}

	if folder.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFolder, ErrEmptyFolderName)
	}

	return nil
}

// ValidateSourceType validates that a SourceType has a valid value.
func ValidateSourceType(source SourceType) error {
	if source != SourceSystem && source != SourceUser && source != SourceTenant {
		return fmt.Errorf("%w: value %d", ErrInvalidSourceType, source)
	}
	return nil
}

// ValidateStatus validates that a Status has a valid value.
func ValidateStatus(status Status) error {
	switch status {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return nil
	default:
		return fmt.Errorf("%w: value %q", ErrInvalidStatus, string(status))
	}
}

// validIdentifier reports whether id is safe to embed in a namespace.
func validIdentifier(id string) bool {
	if len(id) == 0 || len(id) > maxIdentifierLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
