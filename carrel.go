// Copyright 2025 The Carrel Authors
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

package carrel

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/carrelhq/carrel/ai"
	"github.com/carrelhq/carrel/ai/openai"
	"github.com/carrelhq/carrel/blob"
	"github.com/carrelhq/carrel/blob/fsblob"
	"github.com/carrelhq/carrel/chunk"
	"github.com/carrelhq/carrel/core"
	"github.com/carrelhq/carrel/ingestion"
	"github.com/carrelhq/carrel/persona"
	"github.com/carrelhq/carrel/reindex"
	"github.com/carrelhq/carrel/resilience"
	"github.com/carrelhq/carrel/search"
	"github.com/carrelhq/carrel/storage"
	"github.com/carrelhq/carrel/storage/badger"
	"github.com/carrelhq/carrel/vecindex"
	"github.com/carrelhq/carrel/vecindex/memindex"
)

// Engine wires storage, the embedding provider, the vector index and the
// pipeline components over one data directory. It is the single entry point
// the route layer talks to.
type Engine struct {
	backend   *badger.Backend
	documents storage.DocumentRepository
	personas  storage.PersonaRepository
	folders   storage.FolderRepository
	blobs     blob.Store

	provider     ai.Provider
	embedder     ai.Embedder
	gateway      *vecindex.Gateway
	orchestrator *ingestion.Orchestrator
	personaSvc   *persona.Service
	resolver     *persona.Resolver
	searcher     *search.Searcher

	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig      *ai.Config
	provider      ai.Provider
	chunkConfig   chunk.Config
	retryConfig   resilience.RetryConfig
	breakerConfig resilience.CircuitBreakerConfig
	index         vecindex.Index
	blobs         blob.Store
	settings      persona.Settings
	poolSize      int
}

// WithAIConfig sets the embedding provider configuration.
func WithAIConfig(cfg *ai.Config) EngineOption {
	return func(o *engineOptions) {
		if cfg != nil {
			o.aiConfig = cfg
		}
	}
}

// WithProvider sets the AI provider directly, bypassing the OpenAI-compatible
// client the engine would otherwise construct from its config. The engine
// takes ownership and closes it.
func WithProvider(provider ai.Provider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithChunkConfig sets the chunking policies.
func WithChunkConfig(cfg chunk.Config) EngineOption {
	return func(o *engineOptions) {
		o.chunkConfig = cfg
	}
}

// WithRetryConfig sets the retry behavior used for external dependencies.
func WithRetryConfig(cfg resilience.RetryConfig) EngineOption {
	return func(o *engineOptions) {
		o.retryConfig = cfg
	}
}

// WithBreakerConfig sets the circuit breaker thresholds used for external
// dependencies. Each dependency still gets its own breaker instance.
func WithBreakerConfig(cfg resilience.CircuitBreakerConfig) EngineOption {
	return func(o *engineOptions) {
		o.breakerConfig = cfg
	}
}

// WithVectorIndex sets the vector index backing the gateway.
// Default is the in-process memindex.
func WithVectorIndex(index vecindex.Index) EngineOption {
	return func(o *engineOptions) {
		o.index = index
	}
}

// WithBlobStore sets the blob store documents are fetched from.
// Default is a filesystem store under the data directory.
func WithBlobStore(store blob.Store) EngineOption {
	return func(o *engineOptions) {
		o.blobs = store
	}
}

// WithSettings sets the settings collaborator that supplies the default
// system prompt. Without one, prompt resolution falls straight through to
// the built-in fallback when no persona is active.
func WithSettings(settings persona.Settings) EngineOption {
	return func(o *engineOptions) {
		o.settings = settings
	}
}

// WithDefaultSystemPrompt configures a fixed default system prompt.
// Shorthand for WithSettings(persona.StaticSettings(prompt)).
func WithDefaultSystemPrompt(prompt string) EngineOption {
	return func(o *engineOptions) {
		o.settings = persona.StaticSettings(prompt)
	}
}

// WithIngestionPoolSize sets the number of background ingestion workers.
func WithIngestionPoolSize(size int) EngineOption {
	return func(o *engineOptions) {
		o.poolSize = size
	}
}

// NewEngine opens the store under dataDir and wires the full pipeline.
func NewEngine(dataDir string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig:      ai.DefaultConfig(),
		chunkConfig:   chunk.DefaultConfig(),
		retryConfig:   resilience.DefaultRetryConfig(),
		breakerConfig: resilience.DefaultCircuitBreakerConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filepath.Join(dataDir, "db"), false)
	if err != nil {
		return nil, err
	}

	documents := badger.NewDocumentRepository(backend)
	personas := badger.NewPersonaRepository(backend)
	folders := badger.NewFolderRepository(backend)

	blobs := options.blobs
	if blobs == nil {
		blobs, err = fsblob.New(filepath.Join(dataDir, "blobs"))
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	// One guard per external dependency; the breakers trip independently.
	embedder := ai.NewResilientEmbedder(provider.Embedder(),
		resilience.NewGuard("embeddings", options.retryConfig, options.breakerConfig))

	index := options.index
	if index == nil {
		index = memindex.New()
	}
	gateway := vecindex.NewGateway(index,
		resilience.NewGuard("vector-index", options.retryConfig, options.breakerConfig))

	chunker, err := chunk.NewChunker(options.chunkConfig)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	var orchOpts []ingestion.Option
	if options.poolSize > 0 {
		orchOpts = append(orchOpts, ingestion.WithPoolSize(options.poolSize))
	}
	orchestrator, err := ingestion.NewOrchestrator(documents, blobs,
		ingestion.PlainTextExtractor{}, chunker, embedder, gateway, orchOpts...)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	personaSvc, err := persona.NewService(personas)
	if err != nil {
		orchestrator.Release()
		provider.Close()
		backend.Close()
		return nil, err
	}

	resolver, err := persona.NewResolver(personas, options.settings)
	if err != nil {
		orchestrator.Release()
		provider.Close()
		backend.Close()
		return nil, err
	}

	searcher, err := search.NewSearcher(embedder, gateway)
	if err != nil {
		orchestrator.Release()
		provider.Close()
		backend.Close()
		return nil, err
	}

	return &Engine{
		backend:      backend,
		documents:    documents,
		personas:     personas,
		folders:      folders,
		blobs:        blobs,
		provider:     provider,
		embedder:     embedder,
		gateway:      gateway,
		orchestrator: orchestrator,
		personaSvc:   personaSvc,
		resolver:     resolver,
		searcher:     searcher,
		logger:       slog.Default(),
	}, nil
}

// Close releases the worker pool, the provider and the storage backend.
func (e *Engine) Close() error {
	e.orchestrator.Release()

	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}

	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing storage backend", "err", err)
		return err
	}
	return nil
}

// Ingest stores doc as pending and queues it for background processing. The
// returned record carries the generated id; its status moves to completed or
// failed as the pipeline runs.
func (e *Engine) Ingest(ctx context.Context, doc *core.Document) (*core.Document, error) {
	created, err := e.documents.CreateDocument(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := e.orchestrator.Enqueue(created.Id); err != nil {
		return nil, err
	}
	return created, nil
}

// Enqueue queues an already-stored document for background processing.
func (e *Engine) Enqueue(documentID string) error {
	return e.orchestrator.Enqueue(documentID)
}

// Process runs the ingestion pipeline for documentID synchronously.
func (e *Engine) Process(ctx context.Context, documentID string) error {
	return e.orchestrator.Process(ctx, documentID)
}

// DeleteDocument removes a document, its vectors and its stored content.
func (e *Engine) DeleteDocument(ctx context.Context, documentID string) error {
	return e.orchestrator.Delete(ctx, documentID)
}

// Search returns the topK chunks closest to vector across the given scopes.
func (e *Engine) Search(ctx context.Context, scopes []core.Scope, vector []float32, topK int) ([]vecindex.Match, error) {
	return e.searcher.Search(ctx, scopes, vector, topK)
}

// SearchText embeds query and returns the topK closest chunks across the
// given scopes.
func (e *Engine) SearchText(ctx context.Context, scopes []core.Scope, query string, topK int) ([]vecindex.Match, error) {
	return e.searcher.SearchText(ctx, scopes, query, topK)
}

// ResolveSystemPrompt returns the system prompt for userID's next chat turn:
// the active persona's prompt, the configured default, or the built-in
// fallback.
func (e *Engine) ResolveSystemPrompt(ctx context.Context, userID string) string {
	return e.resolver.ResolveSystemPrompt(ctx, userID)
}

// Documents returns the document repository.
func (e *Engine) Documents() storage.DocumentRepository {
	return e.documents
}

// Folders returns the folder repository.
func (e *Engine) Folders() storage.FolderRepository {
	return e.folders
}

// Personas returns the persona service.
func (e *Engine) Personas() *persona.Service {
	return e.personaSvc
}

// Blobs returns the blob store documents are fetched from.
func (e *Engine) Blobs() blob.Store {
	return e.blobs
}

// NewSearcher creates a searcher sharing the engine's embedder and index.
func (e *Engine) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(e.embedder, e.gateway, opts...)
}

// NewReindexer creates a reindexer that re-embeds every completed document.
// progress: where to write progress output (typically os.Stderr)
func (e *Engine) NewReindexer(config *reindex.Config, progress io.Writer) *reindex.Reindexer {
	return reindex.NewReindexer(e.documents, e.orchestrator, config, progress)
}
