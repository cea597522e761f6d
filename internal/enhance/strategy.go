// Package enhance proposes rewired graphs and drives the propose, score and
// decide cycle over one current graph.
package enhance

import (
	"context"
	"errors"
	"fmt"

	"graphgolf/internal/graph"
	"graphgolf/internal/metric"
)

var (
	ErrInvalidMutation  = errors.New("no feasible mutation")
	ErrStrategyExists   = errors.New("strategy already registered")
	ErrStrategyNotFound = errors.New("strategy not found")
)

// Candidate is a proposed graph and the edits that produced it from its
// parent. It belongs to the loop iteration that created it.
type Candidate struct {
	Graph    *graph.Graph
	Changes  []graph.EdgeChange
	Strategy string
}

// Strategy proposes a structurally valid rewiring of current. It never
// mutates current and fails with ErrInvalidMutation when no feasible edit
// exists. Connectivity is left to scoring.
type Strategy interface {
	Name() string
	Propose(ctx context.Context, current *graph.Graph, snap metric.Metrics) (Candidate, error)
}

// IterationObserver is implemented by strategies whose behaviour follows
// the loop's iteration, such as scheduled bulk replacement.
type IterationObserver interface {
	ObserveIteration(iteration, horizon int)
}

func newCandidate(current *graph.Graph, changes []graph.EdgeChange, name string) (Candidate, error) {
	next := current.Clone()
	if err := next.Apply(changes); err != nil {
		return Candidate{}, fmt.Errorf("%s: %w", name, err)
	}
	return Candidate{Graph: next, Changes: changes, Strategy: name}, nil
}

// randomEdge picks a vertex and one of its neighbors uniformly, which is a
// uniform edge choice on regular graphs.
func randomEdge(g *graph.Graph, intn func(int) int) (int, int, bool) {
	for tries := 0; tries < 4*g.Order(); tries++ {
		u := intn(g.Order())
		nbrs := g.Neighbors(u)
		if len(nbrs) == 0 {
			continue
		}
		return u, nbrs[intn(len(nbrs))], true
	}
	return 0, 0, false
}
