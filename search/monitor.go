package search

import "github.com/poiesic/masterdb/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(k int, filter Filter)
	AfterCategoryFilter(category core.Category, members int)
	AfterScoring(candidates, skipped int)
	Finish(results []core.ScoredQuestion)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ int, _ Filter)                      {}
func (n *noopMonitor) AfterCategoryFilter(_ core.Category, _ int) {}
func (n *noopMonitor) AfterScoring(_, _ int)                      {}
func (n *noopMonitor) Finish(_ []core.ScoredQuestion)             {}
