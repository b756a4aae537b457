package ingestion

import "errors"

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrBlobStoreRequired is returned when a blob store is not provided.
	ErrBlobStoreRequired = errors.New("blob store required")

	// ErrExtractorRequired is returned when a text extractor is not provided.
	ErrExtractorRequired = errors.New("text extractor required")

	// ErrChunkerRequired is returned when a chunker is not provided.
	ErrChunkerRequired = errors.New("chunker required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrGatewayRequired is returned when a vector index gateway is not provided.
	ErrGatewayRequired = errors.New("vector index gateway required")

	// ErrMissingMimeType is returned for documents without a MIME type.
	// The orchestrator never guesses a default.
	ErrMissingMimeType = errors.New("document has no mime type")

	// ErrUnsupportedMimeType is returned by extractors for formats they
	// cannot handle.
	ErrUnsupportedMimeType = errors.New("unsupported mime type")
)
