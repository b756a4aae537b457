package search

import "github.com/carrelhq/carrel/vecindex"

// SearchMonitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(vector []float32)
	AfterIndexQuery(matches []vecindex.Match)
	VerbatimHit(match vecindex.Match)
	Finish(results []vecindex.Match)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                     {}
func (n *noopMonitor) AfterEmbedding(_ []float32)         {}
func (n *noopMonitor) AfterIndexQuery(_ []vecindex.Match) {}
func (n *noopMonitor) VerbatimHit(_ vecindex.Match)       {}
func (n *noopMonitor) Finish(_ []vecindex.Match)          {}
