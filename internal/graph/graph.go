// Package graph holds the order- and degree-bounded simple undirected graph
// searched by the enhancers, with mutation primitives that fail fast on
// precondition violations instead of normalizing input.
package graph

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrStructural is matched by every structural violation below.
	ErrStructural       = errors.New("structural violation")
	ErrSelfLoop         = fmt.Errorf("%w: self loop", ErrStructural)
	ErrDuplicateEdge    = fmt.Errorf("%w: duplicate edge", ErrStructural)
	ErrDegreeExceeded   = fmt.Errorf("%w: degree exceeded", ErrStructural)
	ErrEdgeNotFound     = fmt.Errorf("%w: edge not found", ErrStructural)
	ErrVertexOutOfRange = fmt.Errorf("%w: vertex out of range", ErrStructural)

	ErrInfeasible = errors.New("infeasible order/degree")
)

// Edge is an undirected edge, normalized so that U < V.
type Edge struct {
	U int
	V int
}

func NewEdge(u, v int) Edge {
	if u > v {
		u, v = v, u
	}
	return Edge{U: u, V: v}
}

func (e Edge) String() string {
	return fmt.Sprintf("%d-%d", e.U, e.V)
}

type Graph struct {
	order  int
	degree int
	adj    [][]int
	edges  int
	hash   uint64
}

// ValidateParams rejects (order, degree) pairs for which no connected
// degree-bounded regular simple graph exists.
func ValidateParams(order, degree int) error {
	if order < 2 {
		return fmt.Errorf("%w: order must be >= 2, got %d", ErrInfeasible, order)
	}
	if degree < 1 || degree >= order {
		return fmt.Errorf("%w: degree must be in [1,%d), got %d", ErrInfeasible, order, degree)
	}
	if (order*degree)%2 != 0 {
		return fmt.Errorf("%w: order*degree must be even (order=%d degree=%d)", ErrInfeasible, order, degree)
	}
	if degree == 1 && order != 2 {
		return fmt.Errorf("%w: degree 1 cannot connect %d vertices", ErrInfeasible, order)
	}
	return nil
}

// New returns an edgeless graph of the given order and degree bound.
func New(order, degree int) (*Graph, error) {
	if err := ValidateParams(order, degree); err != nil {
		return nil, err
	}
	adj := make([][]int, order)
	for i := range adj {
		adj[i] = make([]int, 0, degree)
	}
	return &Graph{order: order, degree: degree, adj: adj}, nil
}

func (g *Graph) Order() int       { return g.order }
func (g *Graph) DegreeBound() int { return g.degree }
func (g *Graph) EdgeCount() int   { return g.edges }

// Fingerprint identifies the edge set independently of insertion order.
func (g *Graph) Fingerprint() uint64 { return g.hash }

func (g *Graph) Degree(v int) int {
	return len(g.adj[v])
}

// Neighbors returns the adjacency list of v. The slice is owned by the graph
// and must not be modified or retained across mutations.
func (g *Graph) Neighbors(v int) []int {
	return g.adj[v]
}

// FreePorts reports how many more edges v can take.
func (g *Graph) FreePorts(v int) int {
	return g.degree - len(g.adj[v])
}

func (g *Graph) HasEdge(u, v int) bool {
	if !g.inRange(u) || !g.inRange(v) {
		return false
	}
	if len(g.adj[v]) < len(g.adj[u]) {
		u, v = v, u
	}
	for _, w := range g.adj[u] {
		if w == v {
			return true
		}
	}
	return false
}

// AddEdge connects u and v. The caller must ensure both have free ports and
// are not yet adjacent; violations are reported, never repaired.
func (g *Graph) AddEdge(u, v int) error {
	if !g.inRange(u) || !g.inRange(v) {
		return fmt.Errorf("%w: %d-%d (order %d)", ErrVertexOutOfRange, u, v, g.order)
	}
	if u == v {
		return fmt.Errorf("%w: %d", ErrSelfLoop, u)
	}
	if g.HasEdge(u, v) {
		return fmt.Errorf("%w: %d-%d", ErrDuplicateEdge, u, v)
	}
	if len(g.adj[u]) >= g.degree {
		return fmt.Errorf("%w: vertex %d at %d", ErrDegreeExceeded, u, g.degree)
	}
	if len(g.adj[v]) >= g.degree {
		return fmt.Errorf("%w: vertex %d at %d", ErrDegreeExceeded, v, g.degree)
	}
	g.adj[u] = append(g.adj[u], v)
	g.adj[v] = append(g.adj[v], u)
	g.edges++
	g.hash ^= edgeHash(u, v)
	return nil
}

// RemoveEdge disconnects u and v. Connectivity of the result is the
// caller's responsibility.
func (g *Graph) RemoveEdge(u, v int) error {
	if !g.inRange(u) || !g.inRange(v) {
		return fmt.Errorf("%w: %d-%d (order %d)", ErrVertexOutOfRange, u, v, g.order)
	}
	if !removeNeighbor(&g.adj[u], v) {
		return fmt.Errorf("%w: %d-%d", ErrEdgeNotFound, u, v)
	}
	if !removeNeighbor(&g.adj[v], u) {
		// asymmetric adjacency means an earlier primitive was bypassed
		panic(fmt.Sprintf("graph: asymmetric adjacency for %d-%d", u, v))
	}
	g.edges--
	g.hash ^= edgeHash(u, v)
	return nil
}

func removeNeighbor(list *[]int, v int) bool {
	l := *list
	for i, w := range l {
		if w == v {
			last := len(l) - 1
			l[i] = l[last]
			*list = l[:last]
			return true
		}
	}
	return false
}

// IsConnected runs one BFS from vertex 0. Validation only; scoring already
// detects disconnection.
func (g *Graph) IsConnected() bool {
	if g.order <= 1 {
		return true
	}
	seen := make([]bool, g.order)
	queue := make([]int, 0, g.order)
	seen[0] = true
	queue = append(queue, 0)
	for head := 0; head < len(queue); head++ {
		for _, w := range g.adj[queue[head]] {
			if !seen[w] {
				seen[w] = true
				queue = append(queue, w)
			}
		}
	}
	return len(queue) == g.order
}

// Clone returns a deep copy sharing no mutable state with g.
func (g *Graph) Clone() *Graph {
	adj := make([][]int, g.order)
	for i, list := range g.adj {
		adj[i] = make([]int, len(list), g.degree)
		copy(adj[i], list)
	}
	return &Graph{
		order:  g.order,
		degree: g.degree,
		adj:    adj,
		edges:  g.edges,
		hash:   g.hash,
	}
}

// Edges lists every edge once, sorted by (U, V).
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edges)
	for u, list := range g.adj {
		for _, v := range list {
			if u < v {
				out = append(out, Edge{U: u, V: v})
			}
		}
	}
	sortEdges(out)
	return out
}

// Equal reports whether both graphs have the same order, bound and edge set.
func (g *Graph) Equal(other *Graph) bool {
	if g.order != other.order || g.degree != other.degree || g.edges != other.edges || g.hash != other.hash {
		return false
	}
	for u, list := range g.adj {
		for _, v := range list {
			if !other.HasEdge(u, v) {
				return false
			}
		}
	}
	return true
}

// IsRegular reports whether every vertex uses its full degree bound.
func (g *Graph) IsRegular() bool {
	for _, list := range g.adj {
		if len(list) != g.degree {
			return false
		}
	}
	return true
}

func (g *Graph) String() string {
	return fmt.Sprintf("graph(order=%d degree=%d edges=%d)", g.order, g.degree, g.edges)
}

func (g *Graph) inRange(v int) bool {
	return v >= 0 && v < g.order
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].U == edges[j].U {
			return edges[i].V < edges[j].V
		}
		return edges[i].U < edges[j].U
	})
}
