package enhance

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"graphgolf/internal/graph"
	"graphgolf/internal/metric"
)

const defaultMaxAttempts = 32

// RandomRelink swaps the endpoints of two disjoint random edges:
// (a,b),(c,e) become (a,c),(b,e) or (a,e),(b,c).
type RandomRelink struct {
	Rand        *rand.Rand
	MaxAttempts int
}

func (o *RandomRelink) Name() string {
	return "random_relink"
}

func (o *RandomRelink) Propose(_ context.Context, current *graph.Graph, _ metric.Metrics) (Candidate, error) {
	if o == nil || o.Rand == nil {
		return Candidate{}, errors.New("random source is required")
	}
	if current.EdgeCount() < 2 {
		return Candidate{}, fmt.Errorf("%w: %d edges", ErrInvalidMutation, current.EdgeCount())
	}
	attempts := o.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	for attempt := 0; attempt < attempts; attempt++ {
		a, b, ok := randomEdge(current, o.Rand.Intn)
		if !ok {
			break
		}
		c, e, ok := randomEdge(current, o.Rand.Intn)
		if !ok {
			break
		}
		if a == c || a == e || b == c || b == e {
			continue
		}
		pairings := [2][2]graph.Edge{
			{graph.NewEdge(a, c), graph.NewEdge(b, e)},
			{graph.NewEdge(a, e), graph.NewEdge(b, c)},
		}
		if o.Rand.Intn(2) == 1 {
			pairings[0], pairings[1] = pairings[1], pairings[0]
		}
		for _, p := range pairings {
			if current.HasEdge(p[0].U, p[0].V) || current.HasEdge(p[1].U, p[1].V) {
				continue
			}
			changes := []graph.EdgeChange{
				graph.Removed(a, b),
				graph.Removed(c, e),
				graph.Added(p[0].U, p[0].V),
				graph.Added(p[1].U, p[1].V),
			}
			return newCandidate(current, changes, o.Name())
		}
	}
	return Candidate{}, fmt.Errorf("%w: no relinkable edge pair in %d attempts", ErrInvalidMutation, attempts)
}
