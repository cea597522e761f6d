package metric

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"graphgolf/internal/graph"
)

// CrossCheck scores g with gonum's all-pairs shortest paths. It shares no
// code with the engine and is meant for validation, not the search loop.
func CrossCheck(g *graph.Graph) (Metrics, error) {
	ug := toGonum(g)
	if comps := topo.ConnectedComponents(ug); len(comps) != 1 {
		return Metrics{}, fmt.Errorf("%w: %d components", ErrDisconnected, len(comps))
	}

	all := path.DijkstraAllPaths(ug)
	m := Metrics{Order: g.Order()}
	best := -1
	for u := 0; u < g.Order(); u++ {
		for v := 0; v < g.Order(); v++ {
			if u == v {
				continue
			}
			w := all.Weight(int64(u), int64(v))
			if math.IsInf(w, 1) {
				return Metrics{}, fmt.Errorf("%w: no path %d-%d", ErrDisconnected, u, v)
			}
			d := int(w)
			m.TotalDistance += int64(d)
			if d > best {
				best = d
				m.FarthestU, m.FarthestV = u, v
			}
		}
	}
	m.Diameter = best
	return m, nil
}

func toGonum(g *graph.Graph) *simple.UndirectedGraph {
	ug := simple.NewUndirectedGraph()
	for v := 0; v < g.Order(); v++ {
		ug.AddNode(simple.Node(v))
	}
	for _, e := range g.Edges() {
		ug.SetEdge(ug.NewEdge(simple.Node(e.U), simple.Node(e.V)))
	}
	return ug
}
