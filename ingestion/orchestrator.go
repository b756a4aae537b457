package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/panjf2000/ants/v2"

	"github.com/carrelhq/carrel/ai"
	"github.com/carrelhq/carrel/blob"
	"github.com/carrelhq/carrel/chunk"
	"github.com/carrelhq/carrel/core"
	"github.com/carrelhq/carrel/resilience"
	"github.com/carrelhq/carrel/storage"
	"github.com/carrelhq/carrel/vecindex"
)

// Orchestrator drives documents through the ingestion state machine:
// pending, processing, then completed or failed. It owns the durable error
// surface: every terminal failure lands on the document record, not just in
// the logs.
type Orchestrator struct {
	documents storage.DocumentRepository
	blobs     blob.Store
	extractor TextExtractor
	chunker   *chunk.Chunker
	embedder  ai.Embedder
	gateway   *vecindex.Gateway
	pool      *ants.Pool
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithPoolSize sets the worker pool size for background processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(o *Orchestrator) error {
		if size < 1 {
			size = 1
		}

		if o.pool != nil {
			o.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		o.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates an ingestion orchestrator over the given
// collaborators.
func NewOrchestrator(
	documents storage.DocumentRepository,
	blobs blob.Store,
	extractor TextExtractor,
	chunker *chunk.Chunker,
	embedder ai.Embedder,
	gateway *vecindex.Gateway,
	opts ...Option,
) (*Orchestrator, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if blobs == nil {
		return nil, ErrBlobStoreRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if chunker == nil {
		return nil, ErrChunkerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if gateway == nil {
		return nil, ErrGatewayRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		documents: documents,
		blobs:     blobs,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		gateway:   gateway,
		pool:      pool,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(o); optErr != nil {
			o.Release()
			return nil, optErr
		}
	}

	return o, nil
}

// Enqueue submits a document for background processing and returns as soon
// as the work is accepted. Processing errors are recorded on the document
// and logged, they never reach the caller.
func (o *Orchestrator) Enqueue(documentID string) error {
	return o.pool.Submit(func() {
		if err := o.Process(context.Background(), documentID); err != nil {
			o.logger.Error("background processing failed", "document", documentID, "err", err)
		}
	})
}

// Process runs the ingestion state machine for one document synchronously.
// Identical content already completed in the same scope short-circuits to
// completed without re-embedding.
func (o *Orchestrator) Process(ctx context.Context, documentID string) error {
	return o.run(ctx, documentID, false)
}

// Reprocess runs the state machine bypassing the content-hash
// short-circuit, so the document is chunked and embedded again even when a
// completed document with the same content exists. Deterministic vector IDs
// make the new vectors overwrite the old in place.
func (o *Orchestrator) Reprocess(ctx context.Context, documentID string) error {
	return o.run(ctx, documentID, true)
}

func (o *Orchestrator) run(ctx context.Context, documentID string, force bool) error {
	doc, err := o.documents.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}

	// Best-effort: a missed status flicker is a smaller failure than an
	// unprocessed document.
	processing := core.StatusProcessing
	if _, err := o.documents.UpdateDocumentFields(ctx, documentID, storage.DocumentFieldUpdate{
		Status: &processing,
	}); err != nil {
		o.logger.Warn("could not mark document processing", "document", documentID, "err", err)
	}

	if err := o.ingest(ctx, doc, force); err != nil {
		o.recordFailure(ctx, documentID, err)
		return err
	}
	return nil
}

// ingest performs the processing steps after the document is loaded. Any
// error aborts the remaining steps; the caller records it on the document.
func (o *Orchestrator) ingest(ctx context.Context, doc *core.Document, force bool) error {
	if doc.MimeType == "" {
		return fmt.Errorf("%w: document %s", ErrMissingMimeType, doc.Id)
	}

	text := doc.ExtractedText
	if text == "" {
		if doc.StorageKey == "" {
			return fmt.Errorf("document %s has no extracted text and no storage key", doc.Id)
		}
		data, err := o.blobs.Get(ctx, doc.StorageBucket, doc.StorageKey)
		if err != nil {
			return fmt.Errorf("fetch document content: %w", err)
		}
		text, err = o.extractor.Extract(ctx, doc.MimeType, data)
		if err != nil {
			return fmt.Errorf("extract text: %w", err)
		}
	}

	if strings.TrimSpace(text) == "" {
		return core.WithCode(core.CodeEmptyDocumentText, core.ErrEmptyDocumentText)
	}

	hash := core.ContentHash(text)
	if doc.ContentHash != hash {
		if _, err := o.documents.UpdateDocumentFields(ctx, doc.Id, storage.DocumentFieldUpdate{
			ContentHash: &hash,
		}); err != nil {
			return fmt.Errorf("record content hash: %w", err)
		}
	}

	if !force {
		existing, err := o.documents.FindCompletedByContentHash(ctx, doc.Scope, hash)
		switch {
		case err == nil:
			o.logger.Info("identical content already indexed, skipping embedding",
				"document", doc.Id, "existing", existing.Id)
			return o.complete(ctx, doc.Id, existing.ChunkCount)
		case !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("content hash lookup: %w", err)
		}
	}

	chunks := o.chunker.Split(doc.Id, chunk.KindFor(doc.MimeType, doc.FileExt), text)
	if len(chunks) == 0 {
		return core.WithCode(core.CodeChunkingFailed,
			fmt.Errorf("no chunks produced for document %s", doc.Id))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	o.logger.Debug("embedding document chunks", "document", doc.Id, "chunks", len(chunks))
	vectors, err := o.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return core.WithCode(core.CodeEmbeddingFailed, err)
	}

	// A shrinking chunk count would leave tail vectors behind; clear the
	// old set before writing the new one.
	if doc.ChunkCount > len(chunks) {
		if err := o.gateway.DeleteDocument(ctx, doc.Scope, doc.Id, doc.ChunkCount); err != nil {
			o.logger.Warn("stale vector cleanup failed", "document", doc.Id, "err", err)
		}
	}

	if err := o.gateway.UpsertChunks(ctx, doc.Scope, doc.Id, chunks, vectors); err != nil {
		return core.WithCode(core.CodeVectorUpsertFailed, err)
	}

	return o.complete(ctx, doc.Id, len(chunks))
}

// complete marks the document completed and clears any error left by an
// earlier failed run.
func (o *Orchestrator) complete(ctx context.Context, documentID string, chunkCount int) error {
	completed := core.StatusCompleted
	noCode := core.ErrorCode("")
	noMessage := ""
	if _, err := o.documents.UpdateDocumentFields(ctx, documentID, storage.DocumentFieldUpdate{
		Status:       &completed,
		ChunkCount:   &chunkCount,
		ErrorCode:    &noCode,
		ErrorMessage: &noMessage,
	}); err != nil {
		return fmt.Errorf("record completion: %w", err)
	}

	o.logger.Info("document processed", "document", documentID, "chunks", chunkCount)
	return nil
}

// recordFailure writes the terminal failed state. The document record is
// the durable error surface; when even that write fails, both errors are
// logged so the original cause is never lost.
func (o *Orchestrator) recordFailure(ctx context.Context, documentID string, procErr error) {
	failed := core.StatusFailed
	code := processingCode(procErr)
	message := procErr.Error()
	if message == "" {
		message = "Unknown processing error"
	}

	if _, err := o.documents.UpdateDocumentFields(ctx, documentID, storage.DocumentFieldUpdate{
		Status:       &failed,
		ErrorCode:    &code,
		ErrorMessage: &message,
	}); err != nil {
		o.logger.Error("could not record processing failure",
			"document", documentID,
			"processing_err", procErr,
			"update_err", err)
		return
	}

	o.logger.Warn("document processing failed",
		"document", documentID, "code", code, "err", procErr)
}

// processingCode maps an error to the code persisted on the document. An
// open circuit breaker wins over the step code so operators can tell "the
// provider is down" from "this document failed".
func processingCode(err error) core.ErrorCode {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return core.CodeProviderUnavailable
	}
	if code, ok := core.CodeOf(err); ok {
		return code
	}
	return core.CodeUnknownProcessing
}

// Delete removes the document record, then cleans up its vectors and blob.
// Cleanup failures are logged, not returned; the record deletion is the
// operation's success criterion.
func (o *Orchestrator) Delete(ctx context.Context, documentID string) error {
	removed, err := o.documents.DeleteDocument(ctx, documentID)
	if err != nil {
		return err
	}

	if removed.ChunkCount > 0 {
		if err := o.gateway.DeleteDocument(ctx, removed.Scope, removed.Id, removed.ChunkCount); err != nil {
			o.logger.Warn("vector cleanup failed", "document", documentID, "err", err)
		}
	}
	if removed.StorageKey != "" {
		if err := o.blobs.Delete(ctx, removed.StorageBucket, removed.StorageKey); err != nil {
			o.logger.Warn("blob cleanup failed", "document", documentID, "err", err)
		}
	}

	o.logger.Info("document deleted", "document", documentID, "chunks", removed.ChunkCount)
	return nil
}

// Release releases the worker pool. The orchestrator should not be used
// after calling Release.
func (o *Orchestrator) Release() {
	if o.pool != nil {
		o.pool.Release()
	}
}
