package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrelhq/carrel/ai/mock"
	"github.com/carrelhq/carrel/core"
	"github.com/carrelhq/carrel/resilience"
	"github.com/carrelhq/carrel/vecindex"
	"github.com/carrelhq/carrel/vecindex/memindex"
)

func newTestGateway() (*vecindex.Gateway, *memindex.Index) {
	index := memindex.New()
	guard := resilience.NewGuard("vector-index", resilience.RetryConfig{
		MaxAttempts:  1,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1.0,
	}, resilience.CircuitBreakerConfig{})
	return vecindex.NewGateway(index, guard), index
}

func seedChunk(t *testing.T, index *memindex.Index, namespace, documentID string, seq int, text string, vector []float32) {
	t.Helper()
	err := index.Upsert(context.Background(), namespace, []vecindex.Record{{
		Id:     core.VectorID(documentID, seq),
		Vector: vector,
		Metadata: vecindex.Metadata{
			DocumentId: documentID,
			Sequence:   seq,
			Text:       text,
		},
	}})
	require.NoError(t, err)
}

func TestNewSearcher(t *testing.T) {
	gateway, _ := newTestGateway()
	embedder := mock.NewMockEmbedder()

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(embedder, gateway)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with custom logger", func(t *testing.T) {
		searcher, err := NewSearcher(embedder, gateway, WithLogger(slog.Default()))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(embedder, gateway, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(nil, gateway)
		assert.Equal(t, ErrEmbedderRequired, err)
	})

	t.Run("nil gateway", func(t *testing.T) {
		_, err := NewSearcher(embedder, nil)
		assert.Equal(t, ErrGatewayRequired, err)
	})
}

func TestSearchText_EmptyIndex(t *testing.T) {
	gateway, _ := newTestGateway()
	searcher, err := NewSearcher(mock.NewMockEmbedder(), gateway)
	require.NoError(t, err)

	results, err := searcher.SearchText(context.Background(), []core.Scope{core.UserScope("alice")}, "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchText_RanksBySimilarity(t *testing.T) {
	gateway, index := newTestGateway()

	seedChunk(t, index, "user-alice", "doc-1", 0, "neural networks overview", []float32{0.9, 0.1, 0.0})
	seedChunk(t, index, "user-alice", "doc-1", 1, "training deep models", []float32{0.8, 0.2, 0.0})
	seedChunk(t, index, "user-alice", "doc-2", 0, "sourdough starter care", []float32{0.0, 0.1, 0.9})

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{0.9, 0.1, 0.0}, nil
	}

	searcher, err := NewSearcher(embedder, gateway)
	require.NoError(t, err)

	results, err := searcher.SearchText(context.Background(), []core.Scope{core.UserScope("alice")}, "how do neural nets work", 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "neural networks overview", results[0].Metadata.Text)
	assert.Equal(t, "training deep models", results[1].Metadata.Text)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchText_ScopeIsolation(t *testing.T) {
	gateway, index := newTestGateway()

	// Identical chunks under different owners and in the shared base.
	vector := []float32{0.9, 0.1, 0.0}
	seedChunk(t, index, "user-alice", "alice-doc", 0, "quarterly revenue numbers", vector)
	seedChunk(t, index, "user-bob", "bob-doc", 0, "quarterly revenue numbers", vector)
	seedChunk(t, index, "system", "handbook", 0, "expense policy", vector)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return vector, nil
	}

	searcher, err := NewSearcher(embedder, gateway)
	require.NoError(t, err)
	ctx := context.Background()

	// Searching only alice's scope never surfaces bob's copy.
	results, err := searcher.SearchText(ctx, []core.Scope{core.UserScope("alice")}, "revenue", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alice-doc", results[0].Metadata.DocumentId)
	assert.Equal(t, "user-alice", results[0].Namespace)

	// Adding the system scope widens the search to the shared base.
	results, err = searcher.SearchText(ctx, []core.Scope{core.UserScope("alice"), core.SystemScope()}, "revenue", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, match := range results {
		assert.NotEqual(t, "bob-doc", match.Metadata.DocumentId)
	}

	// A malformed scope fails the whole search instead of degrading.
	_, err = searcher.SearchText(ctx, []core.Scope{{Source: core.SourceUser}}, "revenue", 10)
	assert.Error(t, err)
}

func TestSearchText_VerbatimBoost(t *testing.T) {
	gateway, index := newTestGateway()

	// Same vector, so only the boost separates them.
	vector := []float32{0.9, 0.1, 0.0}
	seedChunk(t, index, "user-alice", "doc-1", 0, "the onboarding checklist for new hires", vector)
	seedChunk(t, index, "user-alice", "doc-2", 0, "general company information", vector)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return vector, nil
	}

	searcher, err := NewSearcher(embedder, gateway)
	require.NoError(t, err)

	results, err := searcher.SearchText(context.Background(), []core.Scope{core.UserScope("alice")}, "onboarding checklist", 10)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "doc-1", results[0].Metadata.DocumentId)
	assert.InDelta(t, verbatimBoost, results[0].Score-results[1].Score, 0.0001)
}

func TestSearch_RawVectorSkipsEmbedding(t *testing.T) {
	gateway, index := newTestGateway()
	seedChunk(t, index, "user-alice", "doc-1", 0, "some chunk", []float32{0.5, 0.5, 0.0})

	embedder := mock.NewMockEmbedder()
	searcher, err := NewSearcher(embedder, gateway)
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), []core.Scope{core.UserScope("alice")}, []float32{0.5, 0.5, 0.0}, 10)
	require.NoError(t, err)

	assert.Len(t, results, 1)
	assert.Zero(t, embedder.CallCount())
}

func TestSearchText_EmbedderError(t *testing.T) {
	gateway, _ := newTestGateway()

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("provider unreachable")
	}

	searcher, err := NewSearcher(embedder, gateway)
	require.NoError(t, err)

	_, err = searcher.SearchText(context.Background(), []core.Scope{core.UserScope("alice")}, "query", 10)
	assert.ErrorContains(t, err, "provider unreachable")
}

// testMonitor records which stages ran.
type testMonitor struct {
	startCalled   bool
	embeddingDim  int
	indexMatches  int
	verbatimHits  int
	finishedCount int
	finishCalled  bool
}

func (m *testMonitor) Start(query string)                       { m.startCalled = true }
func (m *testMonitor) AfterEmbedding(vector []float32)          { m.embeddingDim = len(vector) }
func (m *testMonitor) AfterIndexQuery(matches []vecindex.Match) { m.indexMatches = len(matches) }
func (m *testMonitor) VerbatimHit(match vecindex.Match)         { m.verbatimHits++ }
func (m *testMonitor) Finish(results []vecindex.Match) {
	m.finishCalled = true
	m.finishedCount = len(results)
}

func TestSearchTextWithMonitor(t *testing.T) {
	gateway, index := newTestGateway()

	vector := []float32{0.9, 0.1, 0.0}
	seedChunk(t, index, "user-alice", "doc-1", 0, "release roadmap details", vector)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return vector, nil
	}

	searcher, err := NewSearcher(embedder, gateway)
	require.NoError(t, err)

	monitor := &testMonitor{}
	results, err := searcher.SearchTextWithMonitor(context.Background(), []core.Scope{core.UserScope("alice")}, "release roadmap", 10, monitor)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, monitor.startCalled)
	assert.Equal(t, 3, monitor.embeddingDim)
	assert.Equal(t, 1, monitor.indexMatches)
	assert.Equal(t, 1, monitor.verbatimHits)
	assert.True(t, monitor.finishCalled)
	assert.Equal(t, 1, monitor.finishedCount)
}
