// Package reindex re-embeds previously ingested documents with a new or
// updated embedding model.
//
// The Reindexer walks every completed document and pushes it back through
// the ingestion pipeline with the content-hash short-circuit bypassed.
// Deterministic vector ids make the new vectors overwrite the old ones in
// place. Progress is reported to a configurable writer.
package reindex
