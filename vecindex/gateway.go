package vecindex

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/carrelhq/carrel/core"
	"github.com/carrelhq/carrel/resilience"
)

// Gateway is the single entry point to the vector index. It owns namespace
// resolution, deterministic vector identifiers and resilience; callers never
// talk to an Index directly.
//
// Namespace isolation is enforced at the boundary: every operation resolves
// its namespace through core.Scope.Namespace, which rejects malformed scopes
// instead of coercing them. A bad scope fails the call before the index is
// touched.
type Gateway struct {
	index  Index
	guard  *resilience.Guard
	logger *slog.Logger
}

// NewGateway creates a Gateway over index. All index calls run through
// guard, so a struggling vector service trips the breaker rather than
// stalling ingestion.
func NewGateway(index Index, guard *resilience.Guard) *Gateway {
	return &Gateway{
		index:  index,
		guard:  guard,
		logger: slog.Default().With("component", "vecindex-gateway"),
	}
}

// UpsertChunks writes one vector per chunk into the scope's namespace.
// Vector ids are derived from the document id and chunk sequence, so
// re-ingesting a document overwrites its previous vectors in place.
func (g *Gateway) UpsertChunks(ctx context.Context, scope core.Scope, documentID string, chunks []core.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ErrMismatchedVectors, len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	namespace, err := scope.Namespace()
	if err != nil {
		return err
	}

	records := make([]Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = Record{
			Id:     core.VectorID(documentID, chunk.Sequence),
			Vector: vectors[i],
			Metadata: Metadata{
				DocumentId: documentID,
				Source:     scope.Source.String(),
				Sequence:   chunk.Sequence,
				Text:       chunk.Text,
			},
		}
	}

	err = g.guard.Do(ctx, func(ctx context.Context) error {
		return g.index.Upsert(ctx, namespace, records)
	})
	if err != nil {
		return err
	}

	g.logger.Debug("upserted vectors",
		"namespace", namespace,
		"documentId", documentID,
		"count", len(records))
	return nil
}

// Search queries every given scope's namespace concurrently and merges the
// results by descending score, truncated to topK. The scope list is the
// caller's search mode: own documents, the system knowledge base, or both.
// Every scope is resolved before any query runs, so one malformed scope
// fails the whole search.
func (g *Gateway) Search(ctx context.Context, scopes []core.Scope, vector []float32, topK int) ([]Match, error) {
	if len(scopes) == 0 {
		return nil, ErrNoScopes
	}
	if topK <= 0 {
		topK = 10
	}

	namespaces := make([]string, len(scopes))
	for i, scope := range scopes {
		namespace, err := scope.Namespace()
		if err != nil {
			return nil, err
		}
		namespaces[i] = namespace
	}

	perNamespace := make([][]Match, len(namespaces))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, namespace := range namespaces {
		eg.Go(func() error {
			var matches []Match
			err := g.guard.Do(egCtx, func(ctx context.Context) error {
				var queryErr error
				matches, queryErr = g.index.Query(ctx, namespace, vector, topK)
				return queryErr
			})
			if err != nil {
				return fmt.Errorf("query namespace %q: %w", namespace, err)
			}
			for j := range matches {
				matches[j].Namespace = namespace
			}
			perNamespace[i] = matches
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var merged []Match
	for _, matches := range perNamespace {
		merged = append(merged, matches...)
	}

	// Sort by similarity descending
	slices.SortFunc(merged, func(a, b Match) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// DeleteDocument removes every vector a completed document put into its
// namespace. Ids are reconstructed from the chunk count, so no reverse
// lookup index is needed.
func (g *Gateway) DeleteDocument(ctx context.Context, scope core.Scope, documentID string, chunkCount int) error {
	if chunkCount <= 0 {
		return nil
	}

	namespace, err := scope.Namespace()
	if err != nil {
		return err
	}

	ids := make([]string, chunkCount)
	for seq := 0; seq < chunkCount; seq++ {
		ids[seq] = core.VectorID(documentID, seq)
	}

	err = g.guard.Do(ctx, func(ctx context.Context) error {
		return g.index.Delete(ctx, namespace, ids)
	})
	if err != nil {
		return err
	}

	g.logger.Debug("deleted vectors",
		"namespace", namespace,
		"documentId", documentID,
		"count", chunkCount)
	return nil
}
