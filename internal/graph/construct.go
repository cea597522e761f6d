package graph

import (
	"errors"
	"fmt"
	"math/rand"
)

const maxStubMatchingAttempts = 3

var ErrConstructFailed = errors.New("graph construction failed")

// RandomRegular builds a connected graph in which every vertex uses its full
// degree bound. Stubs are paired after a seeded shuffle; when no shuffle
// yields a simple pairing within the attempt limit, the remaining ports are
// filled greedily and repaired with edge swaps. Components are merged last.
func RandomRegular(order, degree int, rng *rand.Rand) (*Graph, error) {
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	g, err := New(order, degree)
	if err != nil {
		return nil, err
	}

	stubs := make([]int, 0, order*degree)
	for v := 0; v < order; v++ {
		for k := 0; k < degree; k++ {
			stubs = append(stubs, v)
		}
	}
	for attempt := 0; attempt < maxStubMatchingAttempts; attempt++ {
		rng.Shuffle(len(stubs), func(i, j int) { stubs[i], stubs[j] = stubs[j], stubs[i] })
		if simplePairing(stubs) {
			for i := 0; i < len(stubs); i += 2 {
				if err := g.AddEdge(stubs[i], stubs[i+1]); err != nil {
					return nil, fmt.Errorf("stub matching: %w", err)
				}
			}
			break
		}
	}
	if !g.IsRegular() {
		// the last shuffle still gives a random base to start from
		for i := 0; i < len(stubs); i += 2 {
			u, v := stubs[i], stubs[i+1]
			if u != v && !g.HasEdge(u, v) && g.FreePorts(u) > 0 && g.FreePorts(v) > 0 {
				_ = g.AddEdge(u, v)
			}
		}
		g.FillRandom(rng)
		if err := g.repairPorts(rng); err != nil {
			return nil, err
		}
	}
	if err := g.Connect(rng); err != nil {
		return nil, err
	}
	g.AssertInvariants()
	return g, nil
}

func simplePairing(stubs []int) bool {
	seen := make(map[Edge]struct{}, len(stubs)/2)
	for i := 0; i < len(stubs); i += 2 {
		if stubs[i] == stubs[i+1] {
			return false
		}
		e := NewEdge(stubs[i], stubs[i+1])
		if _, dup := seen[e]; dup {
			return false
		}
		seen[e] = struct{}{}
	}
	return true
}

// FillRandom adds random edges until no two vertices with free ports remain
// non-adjacent. It returns the number of edges added.
func (g *Graph) FillRandom(rng *rand.Rand) int {
	added := 0
	for {
		open := g.openVertices()
		rng.Shuffle(len(open), func(i, j int) { open[i], open[j] = open[j], open[i] })
		progress := false
		for i, u := range open {
			for _, v := range open[i+1:] {
				if g.FreePorts(u) == 0 {
					break
				}
				if g.FreePorts(v) == 0 || g.HasEdge(u, v) {
					continue
				}
				if err := g.AddEdge(u, v); err == nil {
					added++
					progress = true
				}
			}
		}
		if !progress {
			return added
		}
	}
}

func (g *Graph) openVertices() []int {
	var open []int
	for v := 0; v < g.order; v++ {
		if g.FreePorts(v) > 0 {
			open = append(open, v)
		}
	}
	return open
}

// repairPorts uses the remaining free ports by splitting existing edges:
// (a,b) becomes (u,a),(v,b) for open vertices u,v.
func (g *Graph) repairPorts(rng *rand.Rand) error {
	for guard := 0; guard < g.order*g.degree; guard++ {
		open := g.openVertices()
		if len(open) == 0 {
			return nil
		}
		u := open[0]
		v := u
		if g.FreePorts(u) < 2 {
			if len(open) < 2 {
				return fmt.Errorf("%w: odd free port count", ErrConstructFailed)
			}
			v = open[1+rng.Intn(len(open)-1)]
		}
		if !g.splitEdgeFor(u, v, rng) {
			return fmt.Errorf("%w: no edge to split for %d,%d", ErrConstructFailed, u, v)
		}
	}
	return fmt.Errorf("%w: port repair did not converge", ErrConstructFailed)
}

func (g *Graph) splitEdgeFor(u, v int, rng *rand.Rand) bool {
	edges := g.Edges()
	rng.Shuffle(len(edges), func(i, j int) { edges[i], edges[j] = edges[j], edges[i] })
	for _, e := range edges {
		for _, pair := range [2][2]int{{e.U, e.V}, {e.V, e.U}} {
			a, b := pair[0], pair[1]
			if a == u || a == v || b == u || b == v {
				continue
			}
			if g.HasEdge(u, a) || g.HasEdge(v, b) {
				continue
			}
			if u == v && a == b {
				continue
			}
			changes := []EdgeChange{Removed(a, b), Added(u, a), Added(v, b)}
			if err := g.Apply(changes); err == nil {
				return true
			}
		}
	}
	return false
}

// Connect merges components by swapping one cycle edge of each pair of
// components: (a,b),(c,e) become (a,c),(b,e).
func (g *Graph) Connect(rng *rand.Rand) error {
	for {
		comps := g.components()
		if len(comps) <= 1 {
			return nil
		}
		a, b, ok := g.cycleEdge(comps[0], rng)
		if !ok {
			return fmt.Errorf("%w: component of %d has no cycle edge", ErrConstructFailed, len(comps[0]))
		}
		c, e, ok := g.cycleEdge(comps[1], rng)
		if !ok {
			return fmt.Errorf("%w: component of %d has no cycle edge", ErrConstructFailed, len(comps[1]))
		}
		if err := g.Apply([]EdgeChange{Removed(a, b), Removed(c, e), Added(a, c), Added(b, e)}); err != nil {
			return fmt.Errorf("%w: merge components: %v", ErrConstructFailed, err)
		}
	}
}

func (g *Graph) components() [][]int {
	label := make([]int, g.order)
	for i := range label {
		label[i] = -1
	}
	var comps [][]int
	for s := 0; s < g.order; s++ {
		if label[s] >= 0 {
			continue
		}
		id := len(comps)
		label[s] = id
		comp := []int{s}
		for head := 0; head < len(comp); head++ {
			for _, w := range g.adj[comp[head]] {
				if label[w] < 0 {
					label[w] = id
					comp = append(comp, w)
				}
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

// cycleEdge finds an edge inside comp whose removal keeps its endpoints
// connected.
func (g *Graph) cycleEdge(comp []int, rng *rand.Rand) (int, int, bool) {
	order := append([]int(nil), comp...)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	for _, a := range order {
		for _, b := range append([]int(nil), g.adj[a]...) {
			if err := g.RemoveEdge(a, b); err != nil {
				continue
			}
			reach := g.reaches(a, b)
			if err := g.AddEdge(a, b); err != nil {
				panic(fmt.Sprintf("graph: restore %d-%d: %v", a, b, err))
			}
			if reach {
				return a, b, true
			}
		}
	}
	return 0, 0, false
}

func (g *Graph) reaches(from, to int) bool {
	seen := make([]bool, g.order)
	queue := []int{from}
	seen[from] = true
	for head := 0; head < len(queue); head++ {
		v := queue[head]
		if v == to {
			return true
		}
		for _, w := range g.adj[v] {
			if !seen[w] {
				seen[w] = true
				queue = append(queue, w)
			}
		}
	}
	return false
}

// Circulant connects i to i±k for k = 1..degree/2, plus the antipodal vertex
// when degree is odd. The result is connected and regular.
func Circulant(order, degree int) (*Graph, error) {
	g, err := New(order, degree)
	if err != nil {
		return nil, err
	}
	for k := 1; k <= degree/2; k++ {
		for i := 0; i < order; i++ {
			j := (i + k) % order
			if g.HasEdge(i, j) {
				continue
			}
			if err := g.AddEdge(i, j); err != nil {
				return nil, fmt.Errorf("circulant k=%d: %w", k, err)
			}
		}
	}
	if degree%2 == 1 {
		for i := 0; i < order/2; i++ {
			if err := g.AddEdge(i, i+order/2); err != nil {
				return nil, fmt.Errorf("circulant antipodal: %w", err)
			}
		}
	}
	g.AssertInvariants()
	return g, nil
}

// FromEdges builds a graph from an edge list, rejecting structural
// violations.
func FromEdges(order, degree int, edges []Edge) (*Graph, error) {
	g, err := New(order, degree)
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		if err := g.AddEdge(e.U, e.V); err != nil {
			return nil, err
		}
	}
	return g, nil
}
