// Package blob defines the object storage contract for document content.
//
// Uploaded files live in a blob store keyed by bucket and key; the
// ingestion orchestrator reads them back through the Store interface and
// removes them when a document is deleted. The fsblob subpackage provides
// a local filesystem implementation.
package blob
