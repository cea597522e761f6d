package graph

import "fmt"

// EdgeChange is one edit of an edge list: an added or a removed edge.
type EdgeChange struct {
	Edge  Edge
	Added bool
}

func Added(u, v int) EdgeChange   { return EdgeChange{Edge: NewEdge(u, v), Added: true} }
func Removed(u, v int) EdgeChange { return EdgeChange{Edge: NewEdge(u, v)} }

func (c EdgeChange) String() string {
	if c.Added {
		return "+" + c.Edge.String()
	}
	return "-" + c.Edge.String()
}

// Apply performs changes in order. On failure the graph is restored to its
// state before the call.
func (g *Graph) Apply(changes []EdgeChange) error {
	for i, c := range changes {
		if err := g.applyOne(c); err != nil {
			g.undo(changes[:i])
			return fmt.Errorf("apply %s: %w", c, err)
		}
	}
	g.AssertInvariants()
	return nil
}

// Revert undoes changes previously applied with Apply.
func (g *Graph) Revert(changes []EdgeChange) error {
	inverse := Invert(changes)
	return g.Apply(inverse)
}

// Invert returns the edit list that undoes changes.
func Invert(changes []EdgeChange) []EdgeChange {
	out := make([]EdgeChange, len(changes))
	for i, c := range changes {
		out[len(changes)-1-i] = EdgeChange{Edge: c.Edge, Added: !c.Added}
	}
	return out
}

func (g *Graph) applyOne(c EdgeChange) error {
	if c.Added {
		return g.AddEdge(c.Edge.U, c.Edge.V)
	}
	return g.RemoveEdge(c.Edge.U, c.Edge.V)
}

func (g *Graph) undo(applied []EdgeChange) {
	for i := len(applied) - 1; i >= 0; i-- {
		c := applied[i]
		c.Added = !c.Added
		if err := g.applyOne(c); err != nil {
			panic(fmt.Sprintf("graph: undo %s: %v", c, err))
		}
	}
}

// Diff returns the changes that turn a into b: removals first, then
// additions, each sorted by edge.
func Diff(a, b *Graph) []EdgeChange {
	var removed, added []Edge
	for _, e := range a.Edges() {
		if !b.HasEdge(e.U, e.V) {
			removed = append(removed, e)
		}
	}
	for _, e := range b.Edges() {
		if !a.HasEdge(e.U, e.V) {
			added = append(added, e)
		}
	}
	out := make([]EdgeChange, 0, len(removed)+len(added))
	for _, e := range removed {
		out = append(out, EdgeChange{Edge: e})
	}
	for _, e := range added {
		out = append(out, EdgeChange{Edge: e, Added: true})
	}
	return out
}

// Touched lists the distinct endpoints of changes in first-seen order.
func Touched(changes []EdgeChange) []int {
	seen := make(map[int]struct{}, 2*len(changes))
	out := make([]int, 0, 2*len(changes))
	for _, c := range changes {
		for _, v := range [2]int{c.Edge.U, c.Edge.V} {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
