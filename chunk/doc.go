// Package chunk splits extracted document text into overlapping segments
// sized for the embedding model.
//
// Splitting is policy-driven: prose, code and unknown content each get their
// own chunk size and overlap. Policies are validated once at construction
// against the embedding model's token ceiling, using a chars-per-token
// estimate, so a misconfigured policy fails fast instead of failing
// documents one at a time.
//
// Splitting is pure and rune-based. The same text and policy always produce
// the same chunks with the same sequence numbers and offsets, which keeps
// vector IDs stable across re-indexing runs.
package chunk
