package ingestion

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrelhq/carrel/ai"
	"github.com/carrelhq/carrel/blob/fsblob"
	"github.com/carrelhq/carrel/chunk"
	"github.com/carrelhq/carrel/core"
	"github.com/carrelhq/carrel/resilience"
	"github.com/carrelhq/carrel/storage"
	"github.com/carrelhq/carrel/storage/badger"
	"github.com/carrelhq/carrel/vecindex"
	"github.com/carrelhq/carrel/vecindex/memindex"
)

// testEmbedder implements ai.Embedder for testing.
type testEmbedder struct {
	mu      sync.Mutex
	batches int
	err     error
}

func (m *testEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *testEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batches++
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{float32(i)*0.1 + 0.1, 0.2, 0.3}
	}
	return result, nil
}

func (m *testEmbedder) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches
}

func (m *testEmbedder) setError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

type testEnv struct {
	docs     storage.DocumentRepository
	blobs    *fsblob.Store
	index    *memindex.Index
	embedder *testEmbedder
	orch     *Orchestrator
}

// newTestEnv wires an orchestrator over in-memory storage, a temp-dir blob
// store and the in-memory vector index.
func newTestEnv(t *testing.T, embedBreaker resilience.CircuitBreakerConfig, opts ...Option) *testEnv {
	t.Helper()

	docs, _, _, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	blobs, err := fsblob.New(t.TempDir())
	require.NoError(t, err)

	index := memindex.New()
	gateway := vecindex.NewGateway(index, resilience.NewGuard("vector-index", fastRetry(), resilience.CircuitBreakerConfig{}))

	embedder := &testEmbedder{}
	resilient := ai.NewResilientEmbedder(embedder, resilience.NewGuard("embeddings", fastRetry(), embedBreaker))

	// Small chunks so short test strings split into several pieces.
	chunker, err := chunk.NewChunker(chunk.Config{
		Document: chunk.Policy{Size: 8, Overlap: 2},
		Code:     chunk.Policy{Size: 8, Overlap: 2},
		Default:  chunk.Policy{Size: 8, Overlap: 2},
	})
	require.NoError(t, err)

	orch, err := NewOrchestrator(docs, blobs, PlainTextExtractor{}, chunker, resilient, gateway, opts...)
	require.NoError(t, err)
	t.Cleanup(orch.Release)

	return &testEnv{
		docs:     docs,
		blobs:    blobs,
		index:    index,
		embedder: embedder,
		orch:     orch,
	}
}

func createDocument(t *testing.T, docs storage.DocumentRepository, doc *core.Document) *core.Document {
	t.Helper()
	created, err := docs.CreateDocument(context.Background(), doc)
	require.NoError(t, err)
	return created
}

func TestNewOrchestrator(t *testing.T) {
	docs, _, _, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()

	blobs, err := fsblob.New(t.TempDir())
	require.NoError(t, err)

	gateway := vecindex.NewGateway(memindex.New(), resilience.NewGuard("vector-index", fastRetry(), resilience.CircuitBreakerConfig{}))
	embedder := &testEmbedder{}
	chunker, err := chunk.NewChunker(chunk.Config{})
	require.NoError(t, err)
	extractor := PlainTextExtractor{}

	t.Run("valid orchestrator", func(t *testing.T) {
		orch, err := NewOrchestrator(docs, blobs, extractor, chunker, embedder, gateway)
		require.NoError(t, err)
		require.NotNil(t, orch)
		defer orch.Release()

		assert.NotNil(t, orch.pool)
		assert.NotNil(t, orch.logger)
	})

	t.Run("nil document repository", func(t *testing.T) {
		_, err := NewOrchestrator(nil, blobs, extractor, chunker, embedder, gateway)
		assert.Equal(t, ErrDocumentRepositoryRequired, err)
	})

	t.Run("nil blob store", func(t *testing.T) {
		_, err := NewOrchestrator(docs, nil, extractor, chunker, embedder, gateway)
		assert.Equal(t, ErrBlobStoreRequired, err)
	})

	t.Run("nil extractor", func(t *testing.T) {
		_, err := NewOrchestrator(docs, blobs, nil, chunker, embedder, gateway)
		assert.Equal(t, ErrExtractorRequired, err)
	})

	t.Run("nil chunker", func(t *testing.T) {
		_, err := NewOrchestrator(docs, blobs, extractor, nil, embedder, gateway)
		assert.Equal(t, ErrChunkerRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewOrchestrator(docs, blobs, extractor, chunker, nil, gateway)
		assert.Equal(t, ErrEmbedderRequired, err)
	})

	t.Run("nil gateway", func(t *testing.T) {
		_, err := NewOrchestrator(docs, blobs, extractor, chunker, embedder, nil)
		assert.Equal(t, ErrGatewayRequired, err)
	})

	t.Run("with pool size", func(t *testing.T) {
		orch, err := NewOrchestrator(docs, blobs, extractor, chunker, embedder, gateway, WithPoolSize(2))
		require.NoError(t, err)
		defer orch.Release()
	})
}

func TestProcess_CompletesInlineText(t *testing.T) {
	env := newTestEnv(t, resilience.CircuitBreakerConfig{})
	ctx := context.Background()

	doc := createDocument(t, env.docs, &core.Document{
		Scope:         core.UserScope("alice"),
		FileName:      "a.txt",
		MimeType:      "text/plain",
		ExtractedText: "AAAABBBBCCCC",
	})

	require.NoError(t, env.orch.Process(ctx, doc.Id))

	processed, err := env.docs.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, processed.Status)
	// Size 8, overlap 2 over 12 runes yields [0:8) and [6:12).
	assert.Equal(t, 2, processed.ChunkCount)
	assert.Equal(t, core.ContentHash("AAAABBBBCCCC"), processed.ContentHash)
	assert.Empty(t, processed.ErrorCode)

	assert.Equal(t, 2, env.index.Len("user-alice"))
	assert.Equal(t, 1, env.embedder.batchCount())
}

func TestProcess_TextFromBlob(t *testing.T) {
	env := newTestEnv(t, resilience.CircuitBreakerConfig{})
	ctx := context.Background()

	require.NoError(t, env.blobs.Put(ctx, "uploads", "alice/b.txt", []byte("hello from the blob store")))

	doc := createDocument(t, env.docs, &core.Document{
		Scope:         core.UserScope("alice"),
		FileName:      "b.txt",
		MimeType:      "text/plain",
		StorageBucket: "uploads",
		StorageKey:    "alice/b.txt",
	})

	require.NoError(t, env.orch.Process(ctx, doc.Id))

	processed, err := env.docs.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, processed.Status)
	assert.Equal(t, core.ContentHash("hello from the blob store"), processed.ContentHash)
	assert.Equal(t, processed.ChunkCount, env.index.Len("user-alice"))
}

func TestProcess_MissingMetadata(t *testing.T) {
	env := newTestEnv(t, resilience.CircuitBreakerConfig{})
	ctx := context.Background()

	t.Run("missing mime type", func(t *testing.T) {
		doc := createDocument(t, env.docs, &core.Document{
			Scope:         core.UserScope("alice"),
			ExtractedText: "some text",
		})

		err := env.orch.Process(ctx, doc.Id)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingMimeType)

		failed, err := env.docs.GetDocument(ctx, doc.Id)
		require.NoError(t, err)
		assert.Equal(t, core.StatusFailed, failed.Status)
		assert.Equal(t, core.CodeUnknownProcessing, failed.ErrorCode)
		assert.NotEmpty(t, failed.ErrorMessage)
	})

	t.Run("no text and no storage key", func(t *testing.T) {
		doc := createDocument(t, env.docs, &core.Document{
			Scope:    core.UserScope("alice"),
			MimeType: "text/plain",
		})

		err := env.orch.Process(ctx, doc.Id)
		require.Error(t, err)

		failed, err := env.docs.GetDocument(ctx, doc.Id)
		require.NoError(t, err)
		assert.Equal(t, core.StatusFailed, failed.Status)
		assert.Equal(t, core.CodeUnknownProcessing, failed.ErrorCode)
	})
}

func TestProcess_EmptyText(t *testing.T) {
	env := newTestEnv(t, resilience.CircuitBreakerConfig{})
	ctx := context.Background()

	doc := createDocument(t, env.docs, &core.Document{
		Scope:         core.UserScope("alice"),
		MimeType:      "text/plain",
		ExtractedText: "   \n\t  ",
	})

	err := env.orch.Process(ctx, doc.Id)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmptyDocumentText)

	failed, err := env.docs.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, failed.Status)
	assert.Equal(t, core.CodeEmptyDocumentText, failed.ErrorCode)
	assert.Equal(t, 0, env.index.Len("user-alice"))
}

func TestProcess_DuplicateContentShortCircuits(t *testing.T) {
	env := newTestEnv(t, resilience.CircuitBreakerConfig{})
	ctx := context.Background()

	text := "the same twelve"

	first := createDocument(t, env.docs, &core.Document{
		Scope:         core.UserScope("alice"),
		MimeType:      "text/plain",
		ExtractedText: text,
	})
	require.NoError(t, env.orch.Process(ctx, first.Id))

	firstDone, err := env.docs.GetDocument(ctx, first.Id)
	require.NoError(t, err)
	vectorsAfterFirst := env.index.Len("user-alice")
	require.Equal(t, firstDone.ChunkCount, vectorsAfterFirst)

	// Identical content in the same scope completes without a second
	// embedding pass or a second vector set.
	second := createDocument(t, env.docs, &core.Document{
		Scope:         core.UserScope("alice"),
		MimeType:      "text/plain",
		ExtractedText: text,
	})
	require.NoError(t, env.orch.Process(ctx, second.Id))

	secondDone, err := env.docs.GetDocument(ctx, second.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, secondDone.Status)
	assert.Equal(t, firstDone.ChunkCount, secondDone.ChunkCount)
	assert.Equal(t, vectorsAfterFirst, env.index.Len("user-alice"))
	assert.Equal(t, 1, env.embedder.batchCount())

	// The same content in another scope is not a duplicate.
	other := createDocument(t, env.docs, &core.Document{
		Scope:         core.UserScope("bob"),
		MimeType:      "text/plain",
		ExtractedText: text,
	})
	require.NoError(t, env.orch.Process(ctx, other.Id))

	assert.Equal(t, 2, env.embedder.batchCount())
	assert.Equal(t, vectorsAfterFirst, env.index.Len("user-bob"))
}

func TestProcess_EmbedderFailure(t *testing.T) {
	env := newTestEnv(t, resilience.CircuitBreakerConfig{})
	ctx := context.Background()

	env.embedder.setError(resilience.MarkPermanent(errors.New("model exploded")))

	doc := createDocument(t, env.docs, &core.Document{
		Scope:         core.UserScope("alice"),
		MimeType:      "text/plain",
		ExtractedText: "some document text",
	})

	err := env.orch.Process(ctx, doc.Id)
	require.Error(t, err)

	failed, err := env.docs.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, failed.Status)
	assert.Equal(t, core.CodeEmbeddingFailed, failed.ErrorCode)
	assert.Contains(t, failed.ErrorMessage, "model exploded")
	assert.Equal(t, 0, env.index.Len("user-alice"))
}

func TestProcess_BreakerOpen(t *testing.T) {
	// One failure opens the embedding breaker.
	env := newTestEnv(t, resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
	})
	ctx := context.Background()

	env.embedder.setError(resilience.MarkPermanent(errors.New("provider down")))

	first := createDocument(t, env.docs, &core.Document{
		Scope:         core.UserScope("alice"),
		MimeType:      "text/plain",
		ExtractedText: "first document",
	})
	require.Error(t, env.orch.Process(ctx, first.Id))

	// The breaker is open now; the next document fails fast with the
	// provider-unavailable code even though the embedder would succeed.
	env.embedder.setError(nil)
	batchesBefore := env.embedder.batchCount()

	second := createDocument(t, env.docs, &core.Document{
		Scope:         core.UserScope("alice"),
		MimeType:      "text/plain",
		ExtractedText: "second document",
	})
	err := env.orch.Process(ctx, second.Id)
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)

	failed, err := env.docs.GetDocument(ctx, second.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, failed.Status)
	assert.Equal(t, core.CodeProviderUnavailable, failed.ErrorCode)
	assert.Equal(t, batchesBefore, env.embedder.batchCount())
}

func TestReprocess_BypassesShortCircuit(t *testing.T) {
	env := newTestEnv(t, resilience.CircuitBreakerConfig{})
	ctx := context.Background()

	doc := createDocument(t, env.docs, &core.Document{
		Scope:         core.UserScope("alice"),
		MimeType:      "text/plain",
		ExtractedText: "reindex me please",
	})
	require.NoError(t, env.orch.Process(ctx, doc.Id))
	require.Equal(t, 1, env.embedder.batchCount())

	vectorsBefore := env.index.Len("user-alice")

	require.NoError(t, env.orch.Reprocess(ctx, doc.Id))

	// Re-embedded, and deterministic IDs overwrote in place.
	assert.Equal(t, 2, env.embedder.batchCount())
	assert.Equal(t, vectorsBefore, env.index.Len("user-alice"))

	done, err := env.docs.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, done.Status)
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t, resilience.CircuitBreakerConfig{})
	ctx := context.Background()

	require.NoError(t, env.blobs.Put(ctx, "uploads", "alice/gone.txt", []byte("delete me when done")))

	doc := createDocument(t, env.docs, &core.Document{
		Scope:         core.UserScope("alice"),
		MimeType:      "text/plain",
		StorageBucket: "uploads",
		StorageKey:    "alice/gone.txt",
	})
	require.NoError(t, env.orch.Process(ctx, doc.Id))
	require.Greater(t, env.index.Len("user-alice"), 0)

	require.NoError(t, env.orch.Delete(ctx, doc.Id))

	_, err := env.docs.GetDocument(ctx, doc.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 0, env.index.Len("user-alice"))

	_, err = env.blobs.Get(ctx, "uploads", "alice/gone.txt")
	assert.Error(t, err)

	err = env.orch.Delete(ctx, doc.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEnqueue_ProcessesInBackground(t *testing.T) {
	env := newTestEnv(t, resilience.CircuitBreakerConfig{}, WithPoolSize(1))
	ctx := context.Background()

	doc := createDocument(t, env.docs, &core.Document{
		Scope:         core.UserScope("alice"),
		MimeType:      "text/plain",
		ExtractedText: "processed in the background",
	})

	require.NoError(t, env.orch.Enqueue(doc.Id))

	assert.Eventually(t, func() bool {
		current, err := env.docs.GetDocument(ctx, doc.Id)
		return err == nil && current.Status == core.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

// failingUpdateRepo wraps a repository and fails every field update, to
// exercise the nested-failure path.
type failingUpdateRepo struct {
	storage.DocumentRepository
}

func (r *failingUpdateRepo) UpdateDocumentFields(ctx context.Context, id string, update storage.DocumentFieldUpdate) (*core.Document, error) {
	return nil, errors.New("storage offline")
}

func TestProcess_FailureWriteNeverMasksOriginal(t *testing.T) {
	docs, _, _, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()

	blobs, err := fsblob.New(t.TempDir())
	require.NoError(t, err)

	gateway := vecindex.NewGateway(memindex.New(), resilience.NewGuard("vector-index", fastRetry(), resilience.CircuitBreakerConfig{}))
	chunker, err := chunk.NewChunker(chunk.Config{})
	require.NoError(t, err)

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	orch, err := NewOrchestrator(&failingUpdateRepo{DocumentRepository: docs}, blobs,
		PlainTextExtractor{}, chunker, &testEmbedder{}, gateway, WithLogger(logger))
	require.NoError(t, err)
	defer orch.Release()

	ctx := context.Background()

	// Created directly so the document exists despite the failing updates.
	doc, err := docs.CreateDocument(ctx, &core.Document{
		Scope:         core.UserScope("alice"),
		ExtractedText: "text without a mime type",
	})
	require.NoError(t, err)

	err = orch.Process(ctx, doc.Id)
	require.Error(t, err)
	// The original cause surfaces, not the bookkeeping failure.
	assert.ErrorIs(t, err, ErrMissingMimeType)

	logged := logBuf.String()
	assert.Contains(t, logged, "could not record processing failure")
	assert.Contains(t, logged, "storage offline")
	assert.Contains(t, logged, "mime type")
}
