package search

import (
	"github.com/poiesic/hybridrank/core"
	"github.com/poiesic/hybridrank/query"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(text string)
	AfterQueryBuilt(q *query.CompositeQuery)
	AfterRetrieval(candidates []*core.Candidate)
	AfterFusion(results []*core.FusedResult)
	AfterHydration(docs []*core.Document)
	Finish(list *RankedList)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                          {}
func (n *noopMonitor) AfterQueryBuilt(_ *query.CompositeQuery) {}
func (n *noopMonitor) AfterRetrieval(_ []*core.Candidate)      {}
func (n *noopMonitor) AfterFusion(_ []*core.FusedResult)       {}
func (n *noopMonitor) AfterHydration(_ []*core.Document)       {}
func (n *noopMonitor) Finish(_ *RankedList)                    {}
