package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/carrelhq/carrel/ai"
	"github.com/carrelhq/carrel/core"
	"github.com/carrelhq/carrel/vecindex"
)

// verbatimBoost is added to a match whose chunk text contains every word of
// the query. Two chunks with near-identical similarity then rank by whether
// they actually mention what was asked.
const verbatimBoost = 0.3

// Searcher answers retrieval queries over the vector index. The scope list
// passed to each call is the search mode: a caller searching only its own
// scope sees only its own documents, a caller adding the system scope sees
// the shared knowledge base too.
type Searcher struct {
	embedder ai.Embedder
	gateway  *vecindex.Gateway
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(embedder ai.Embedder, gateway *vecindex.Gateway, opts ...Option) (*Searcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if gateway == nil {
		return nil, ErrGatewayRequired
	}

	s := &Searcher{
		embedder: embedder,
		gateway:  gateway,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search returns the topK chunks closest to vector across the given scopes,
// ranked by similarity. Callers that already hold a query vector use this
// directly; everyone else wants SearchText.
func (s *Searcher) Search(ctx context.Context, scopes []core.Scope, vector []float32, topK int) ([]vecindex.Match, error) {
	return s.gateway.Search(ctx, scopes, vector, topK)
}

// SearchText embeds query and returns the topK closest chunks across the
// given scopes, ranked by similarity with a verbatim-match boost.
func (s *Searcher) SearchText(ctx context.Context, scopes []core.Scope, query string, topK int) ([]vecindex.Match, error) {
	return s.SearchTextWithMonitor(ctx, scopes, query, topK, nil)
}

// SearchTextWithMonitor is SearchText with stage callbacks for observing the
// retrieval process.
func (s *Searcher) SearchTextWithMonitor(ctx context.Context, scopes []core.Scope, query string, topK int, monitor SearchMonitor) ([]vecindex.Match, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(vector)

	matches, err := s.gateway.Search(ctx, scopes, vector, topK)
	if err != nil {
		s.logger.Error("error querying vector index", "err", err)
		return nil, err
	}
	monitor.AfterIndexQuery(matches)

	// Boost chunks that verbatim-contain the query terms, then restore the
	// score ordering.
	boosted := false
	for i := range matches {
		if containsAllTerms(matches[i].Metadata.Text, query) {
			matches[i].Score += verbatimBoost
			boosted = true
			monitor.VerbatimHit(matches[i])
		}
	}
	if boosted {
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Score > matches[j].Score
		})
	}

	monitor.Finish(matches)
	return matches, nil
}
