package search

import "github.com/TogetherCrew/hivemind-backend/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterQueryEmbedding(dimension int)
	AfterSimilaritySearch(keys []string)
	VerbatimHit(chunk *core.EmbeddedChunk)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                    {}
func (n *noopMonitor) AfterQueryEmbedding(_ int)         {}
func (n *noopMonitor) AfterSimilaritySearch(_ []string)  {}
func (n *noopMonitor) VerbatimHit(_ *core.EmbeddedChunk) {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)     {}
