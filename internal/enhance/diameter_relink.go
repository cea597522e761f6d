package enhance

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"graphgolf/internal/graph"
	"graphgolf/internal/metric"
)

const defaultReach = 2

// DiameterRelink shortens a path realizing the diameter. With x near one
// end and y near the other, and x', y' off-path neighbors, it removes
// (x,x'),(y,y') and adds (x,y),(x',y').
type DiameterRelink struct {
	Rand  *rand.Rand
	Reach int

	bounds    graph.Bounds
	boundsFor [2]int
}

func (o *DiameterRelink) Name() string {
	return "diameter_relink"
}

func (o *DiameterRelink) Propose(_ context.Context, current *graph.Graph, snap metric.Metrics) (Candidate, error) {
	if o == nil || o.Rand == nil {
		return Candidate{}, errors.New("random source is required")
	}
	bounds, err := o.lowerBounds(current)
	if err != nil {
		return Candidate{}, err
	}
	if snap.Diameter <= bounds.Diameter {
		return Candidate{}, fmt.Errorf("%w: diameter %d at lower bound", ErrInvalidMutation, snap.Diameter)
	}
	u, v := snap.FarthestU, snap.FarthestV
	if u == v {
		return Candidate{}, fmt.Errorf("%w: no farthest pair", ErrInvalidMutation)
	}
	path, err := metric.RandomShortestPath(current, u, v, o.Rand)
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: %v", ErrInvalidMutation, err)
	}

	reach := o.Reach
	if reach <= 0 {
		reach = defaultReach
	}
	if reach > len(path)/2 {
		reach = len(path) / 2
	}
	onPath := make(map[int]struct{}, len(path))
	for _, w := range path {
		onPath[w] = struct{}{}
	}

	type move struct{ x, xn, y, yn int }
	var moves []move
	for i := 0; i < reach; i++ {
		for j := len(path) - 1; j >= len(path)-reach; j-- {
			if j-i < 2 {
				continue
			}
			x, y := path[i], path[j]
			if current.HasEdge(x, y) {
				continue
			}
			for _, xn := range current.Neighbors(x) {
				if _, ok := onPath[xn]; ok {
					continue
				}
				for _, yn := range current.Neighbors(y) {
					if _, ok := onPath[yn]; ok || yn == xn || current.HasEdge(xn, yn) {
						continue
					}
					moves = append(moves, move{x: x, xn: xn, y: y, yn: yn})
				}
			}
		}
	}
	if len(moves) == 0 {
		return Candidate{}, fmt.Errorf("%w: no rewiring shortens %d-%d", ErrInvalidMutation, u, v)
	}

	m := moves[o.Rand.Intn(len(moves))]
	changes := []graph.EdgeChange{
		graph.Removed(m.x, m.xn),
		graph.Removed(m.y, m.yn),
		graph.Added(m.x, m.y),
		graph.Added(m.xn, m.yn),
	}
	return newCandidate(current, changes, o.Name())
}

func (o *DiameterRelink) lowerBounds(g *graph.Graph) (graph.Bounds, error) {
	key := [2]int{g.Order(), g.DegreeBound()}
	if o.boundsFor == key {
		return o.bounds, nil
	}
	b, err := graph.LowerBounds(key[0], key[1])
	if err != nil {
		return graph.Bounds{}, err
	}
	o.bounds, o.boundsFor = b, key
	return b, nil
}
