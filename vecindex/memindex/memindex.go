package memindex

import (
	"context"
	"slices"
	"sync"

	"github.com/carrelhq/carrel/vecindex"
)

// Index is an in-process vector index. Records live in a map keyed by
// namespace and id; queries scan the whole namespace and score by dot
// product, which equals cosine similarity for normalized embeddings.
//
// It exists for tests and for small single-node deployments that don't want
// to run a vector database.
type Index struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]vecindex.Record
}

// New creates an empty in-memory index.
func New() *Index {
	return &Index{
		namespaces: make(map[string]map[string]vecindex.Record),
	}
}

// Upsert writes records into the namespace, overwriting existing ids.
func (idx *Index) Upsert(ctx context.Context, namespace string, records []vecindex.Record) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ns, ok := idx.namespaces[namespace]
	if !ok {
		ns = make(map[string]vecindex.Record)
		idx.namespaces[namespace] = ns
	}
	for _, record := range records {
		ns[record.Id] = record
	}
	return nil
}

// Query scans the namespace and returns the topK closest records by dot
// product, descending. An unknown namespace yields no matches.
func (idx *Index) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vecindex.Match, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ns, ok := idx.namespaces[namespace]
	if !ok {
		return nil, nil
	}

	matches := make([]vecindex.Match, 0, len(ns))
	for _, record := range ns {
		if len(record.Vector) == 0 {
			continue
		}
		matches = append(matches, vecindex.Match{
			Id:       record.Id,
			Score:    dotProduct(vector, record.Vector),
			Metadata: record.Metadata,
		})
	}

	// Sort by similarity descending
	slices.SortFunc(matches, func(a, b vecindex.Match) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete removes ids from the namespace. Missing ids and namespaces are
// ignored.
func (idx *Index) Delete(ctx context.Context, namespace string, ids []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ns, ok := idx.namespaces[namespace]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(ns, id)
	}
	return nil
}

// Len reports how many records a namespace holds. Test helper.
func (idx *Index) Len(namespace string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.namespaces[namespace])
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
