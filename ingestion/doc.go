// Package ingestion drives uploaded documents through processing.
//
// The Orchestrator type runs the per-document state machine: mark
// processing, extract text, deduplicate by content hash, chunk, embed,
// upsert vectors, then record the terminal completed or failed state.
// Documents are processed in the background on a worker pool; every
// terminal failure is written to the document record so the error survives
// the process, with logs as a secondary channel.
package ingestion
