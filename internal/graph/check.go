package graph

import "fmt"

// Check validates every structural invariant: bounds, symmetry, no self
// loops, no duplicates, edge count and fingerprint.
func (g *Graph) Check() error {
	if len(g.adj) != g.order {
		return fmt.Errorf("adjacency has %d lists, want %d", len(g.adj), g.order)
	}
	halfEdges := 0
	for u, list := range g.adj {
		if len(list) > g.degree {
			return fmt.Errorf("%w: vertex %d has degree %d > %d", ErrDegreeExceeded, u, len(list), g.degree)
		}
		seen := make(map[int]struct{}, len(list))
		for _, v := range list {
			if !g.inRange(v) {
				return fmt.Errorf("%w: %d-%d", ErrVertexOutOfRange, u, v)
			}
			if v == u {
				return fmt.Errorf("%w: %d", ErrSelfLoop, u)
			}
			if _, dup := seen[v]; dup {
				return fmt.Errorf("%w: %d-%d", ErrDuplicateEdge, u, v)
			}
			seen[v] = struct{}{}
			if !contains(g.adj[v], u) {
				return fmt.Errorf("%w: asymmetric adjacency %d-%d", ErrStructural, u, v)
			}
		}
		halfEdges += len(list)
	}
	if halfEdges != 2*g.edges {
		return fmt.Errorf("%w: edge count %d does not match %d half edges", ErrStructural, g.edges, halfEdges)
	}
	if h := FingerprintOf(g.Edges()); h != g.hash {
		return fmt.Errorf("%w: fingerprint drift", ErrStructural)
	}
	return nil
}

// AssertInvariants panics when Check fails. It is a no-op in release builds.
func (g *Graph) AssertInvariants() {
	if !debugAssertions {
		return
	}
	if err := g.Check(); err != nil {
		panic("graph: " + err.Error())
	}
}

func contains(list []int, v int) bool {
	for _, w := range list {
		if w == v {
			return true
		}
	}
	return false
}
