package ai

import (
	"context"
	"fmt"

	"github.com/carrelhq/carrel/resilience"
)

// ErrVectorCountMismatch is returned when a provider answers a batch request
// with a different number of vectors than texts. The whole batch fails; no
// partial result is ever returned.
var ErrVectorCountMismatch = fmt.Errorf("embedding provider returned mismatched vector count")

// ResilientEmbedder decorates an Embedder with retry and circuit breaking.
// Every provider call goes through the guard, so repeated provider failures
// open the breaker and later calls fail fast instead of piling up.
//
// The decorator also enforces the batch contract: a request for n texts must
// yield exactly n vectors. A provider that drops or pads results fails the
// whole batch rather than letting a mismatched result propagate.
type ResilientEmbedder struct {
	inner Embedder
	guard *resilience.Guard
}

// NewResilientEmbedder wraps inner with the given guard. The guard should be
// dedicated to the embedding provider so its breaker state reflects that one
// dependency.
func NewResilientEmbedder(inner Embedder, guard *resilience.Guard) *ResilientEmbedder {
	return &ResilientEmbedder{
		inner: inner,
		guard: guard,
	}
}

// EmbedText generates an embedding for a single text through the guard.
func (r *ResilientEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := r.guard.Do(ctx, func(ctx context.Context) error {
		var embedErr error
		vector, embedErr = r.inner.EmbedText(ctx, text)
		return embedErr
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// EmbedTexts generates embeddings for a batch of texts through the guard.
// An empty batch is a no-op and does not touch the provider. The result
// always has exactly one vector per input text or the call fails.
func (r *ResilientEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var vectors [][]float32
	err := r.guard.Do(ctx, func(ctx context.Context) error {
		var embedErr error
		vectors, embedErr = r.inner.EmbedTexts(ctx, texts)
		if embedErr != nil {
			return embedErr
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("%w: got %d vectors for %d texts",
				ErrVectorCountMismatch, len(vectors), len(texts))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}
