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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidScope indicates a Scope failed validation.
	ErrInvalidScope = errors.New("invalid scope")

	// ErrInvalidPersona indicates a Persona failed validation.
	ErrInvalidPersona = errors.New("invalid persona")

	// ErrInvalidSourceType indicates an invalid SourceType value.
	ErrInvalidSourceType = errors.New("invalid source type")

	// ErrInvalidStatus indicates an invalid document Status value.
	ErrInvalidStatus = errors.New("invalid document status")

	// ErrMissingOwner indicates a user scope without an owner ID.
	ErrMissingOwner = errors.New("user scope requires an owner id")

	// ErrMissingTenant indicates a tenant scope without a tenant ID.
	ErrMissingTenant = errors.New("tenant scope requires a tenant id")

	// ErrUnexpectedIdentifier indicates an owner or tenant ID on a scope
	// whose source type must not carry one.
	ErrUnexpectedIdentifier = errors.New("scope carries an identifier its source type forbids")

	// ErrBadIdentifier indicates an owner or tenant ID that cannot appear
	// in a namespace.
	ErrBadIdentifier = errors.New("identifier contains invalid characters")

	// ErrEmptyDocumentText indicates a document whose extracted text is empty.
	ErrEmptyDocumentText = errors.New("document text is empty")

	// ErrEmptyPersonaName indicates the persona Name field is empty.
	ErrEmptyPersonaName = errors.New("persona name cannot be empty")

	// ErrEmptyPersonaPrompt indicates the persona Prompt field is empty.
	ErrEmptyPersonaPrompt = errors.New("persona prompt cannot be empty")

	// ErrInvalidFolder indicates a Folder failed validation.
	ErrInvalidFolder = errors.New("invalid folder")

	// ErrEmptyFolderName indicates the folder Name field is empty.
	ErrEmptyFolderName = errors.New("folder name cannot be empty")
)

// ErrorCode is the machine-readable reason recorded on a failed document.
type ErrorCode string

const (
	// CodeUnknownProcessing is the fallback when a failure carries no more
	// specific code.
	CodeUnknownProcessing ErrorCode = "UNKNOWN_PROCESSING_ERROR"

	// CodeEmptyDocumentText marks a document with no extractable text.
	CodeEmptyDocumentText ErrorCode = "EMPTY_DOCUMENT_TEXT"

	// CodeChunkingFailed marks a failure while splitting text into chunks.
	CodeChunkingFailed ErrorCode = "CHUNKING_FAILED"

	// CodeEmbeddingFailed marks a failure while embedding chunk text.
	CodeEmbeddingFailed ErrorCode = "EMBEDDING_FAILED"

	// CodeVectorUpsertFailed marks a failure while writing to the vector index.
	CodeVectorUpsertFailed ErrorCode = "VECTOR_UPSERT_FAILED"

	// CodeProviderUnavailable marks a dependency whose circuit breaker is open.
	CodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
)

// ProcessingError attaches an ErrorCode to an underlying failure so the
// ingestion state machine can persist why a document failed.
type ProcessingError struct {
	Code ErrorCode
	Err  error
}

func (e *ProcessingError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Err.Error()
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// WithCode wraps err with a machine-readable processing code.
func WithCode(code ErrorCode, err error) error {
	return &ProcessingError{Code: code, Err: err}
}

// CodeOf extracts the ErrorCode carried by err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return "", false
}
