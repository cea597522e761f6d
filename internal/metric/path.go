package metric

import (
	"fmt"
	"math/rand"

	"graphgolf/internal/graph"
)

// ShortestPath returns the vertices of one shortest u-v path, u first.
// Among equal choices the lowest-indexed neighbor is taken.
func ShortestPath(g *graph.Graph, u, v int) ([]int, error) {
	return walkPath(g, u, v, nil)
}

// RandomShortestPath returns a shortest u-v path chosen uniformly among the
// next-hop candidates at every step.
func RandomShortestPath(g *graph.Graph, u, v int, rng *rand.Rand) ([]int, error) {
	return walkPath(g, u, v, rng)
}

func walkPath(g *graph.Graph, u, v int, rng *rand.Rand) ([]int, error) {
	if u < 0 || u >= g.Order() {
		return nil, fmt.Errorf("%w: %d", graph.ErrVertexOutOfRange, u)
	}
	toV, err := DistancesFrom(g, v)
	if err != nil && toV == nil {
		return nil, err
	}
	if toV[u] == Unreachable {
		return nil, fmt.Errorf("%w: no path %d-%d", ErrDisconnected, u, v)
	}
	path := make([]int, 0, toV[u]+1)
	path = append(path, u)
	cur := u
	var next []int
	for cur != v {
		next = next[:0]
		for _, w := range g.Neighbors(cur) {
			if toV[w] == toV[cur]-1 {
				next = append(next, w)
			}
		}
		pick := next[0]
		if rng != nil {
			pick = next[rng.Intn(len(next))]
		} else {
			for _, w := range next[1:] {
				if w < pick {
					pick = w
				}
			}
		}
		path = append(path, pick)
		cur = pick
	}
	return path, nil
}
