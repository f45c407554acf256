package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/poiesic/hybridrank/core"
	"github.com/poiesic/hybridrank/query"
	"github.com/poiesic/hybridrank/search"
)

// explainMonitor prints what each search stage produced.
type explainMonitor struct {
	out io.Writer
}

var _ search.SearchMonitor = (*explainMonitor)(nil)

func newExplainMonitor(out io.Writer) *explainMonitor {
	return &explainMonitor{out: out}
}

func (m *explainMonitor) Start(text string) {
	fmt.Fprintf(m.out, "query: %q\n", text)
}

func (m *explainMonitor) AfterQueryBuilt(q *query.CompositeQuery) {
	fmt.Fprintf(m.out, "terms: [%s] k=%d\n", strings.Join(q.Terms, " "), q.K)
	for _, sq := range q.SubQueries() {
		fmt.Fprintf(m.out, "  sub-query %s fields=%v\n", sq.Name, sq.Fields)
	}
}

func (m *explainMonitor) AfterRetrieval(candidates []*core.Candidate) {
	fmt.Fprintf(m.out, "retrieved %d candidates\n", len(candidates))
}

func (m *explainMonitor) AfterFusion(results []*core.FusedResult) {
	fmt.Fprintln(m.out, "fusion:")
	for _, r := range results {
		fmt.Fprintf(m.out, "  %-20s final=%.4f fused=%.4f decay=%.4f boost=%.4f",
			r.DocumentID, r.FinalScore, r.FusedScore, r.DecayModifier, r.BoostModifier)
		for _, signal := range core.Signals {
			if v, ok := r.Signals[signal]; ok {
				fmt.Fprintf(m.out, " %s=%.4f", signal, v)
			}
		}
		fmt.Fprintln(m.out)
	}
}

func (m *explainMonitor) AfterHydration(docs []*core.Document) {
	fmt.Fprintf(m.out, "hydrated %d documents\n", len(docs))
}

func (m *explainMonitor) Finish(list *search.RankedList) {
	if list.Skipped > 0 {
		fmt.Fprintf(m.out, "skipped %d results whose documents vanished\n", list.Skipped)
	}
	fmt.Fprintln(m.out)
}
