package vecindex

import "context"

// Record is one embedded chunk ready for indexing.
type Record struct {
	// Id is the deterministic vector identifier (core.VectorID).
	Id string

	// Vector is the embedding for the chunk text.
	Vector []float32

	// Metadata travels with the vector and comes back on every match.
	Metadata Metadata
}

// Metadata identifies where a vector came from.
type Metadata struct {
	// DocumentId is the owning document.
	DocumentId string

	// Source is the scope source type the document was ingested under
	// ("system", "user" or "tenant").
	Source string

	// Sequence is the chunk's position within the document.
	Sequence int

	// Text is the chunk text, stored alongside the vector so search results
	// can be rendered without a second lookup.
	Text string
}

// Match is one search hit.
type Match struct {
	// Id is the vector identifier of the matched chunk.
	Id string

	// Score is the similarity between the query and the match, higher is
	// closer.
	Score float32

	// Namespace is the namespace the match came from. The gateway stamps it
	// during fan-out so callers can tell system hits from their own.
	Namespace string

	Metadata Metadata
}

// Index is the contract a vector index adapter satisfies. Namespaces
// partition the index hard: an operation in one namespace can never observe
// vectors from another.
//
// Implementations must be safe for concurrent use.
type Index interface {
	// Upsert writes records into the namespace, overwriting records with the
	// same id.
	Upsert(ctx context.Context, namespace string, records []Record) error

	// Query returns up to topK matches for vector within the namespace,
	// ordered by descending score. A namespace that has never been written
	// yields no matches, not an error.
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)

	// Delete removes the given vector ids from the namespace. Missing ids
	// are ignored.
	Delete(ctx context.Context, namespace string, ids []string) error
}
