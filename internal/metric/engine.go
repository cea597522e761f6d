package metric

import (
	"fmt"

	"graphgolf/internal/graph"
)

// Stats counts engine work since construction.
type Stats struct {
	FullSnapshots        int64
	IncrementalSnapshots int64
	BFSRuns              int64
	ReusedVectors        int64
	Commits              int64
	Rollbacks            int64
}

// Engine caches one distance vector per source for the graph it last
// committed. Incremental snapshots of a candidate write recomputed vectors
// into a pending overlay that is either committed or rolled back.
//
// An Engine is bound to one graph lineage and is not safe for concurrent use.
type Engine struct {
	order int
	warm  bool
	// fingerprint of the graph the committed vectors describe
	base uint64

	dist  []DistanceVector
	res   []sourceResult
	stale []bool

	pending     bool
	pendingBase uint64
	overlay     []DistanceVector
	overlayRes  []sourceResult
	overlaySrcs []int

	spare []DistanceVector
	queue []int32
	stats Stats
}

func NewEngine() *Engine {
	return &Engine{}
}

// Snapshot scores g from scratch and commits the result.
func (e *Engine) Snapshot(g *graph.Graph) (Metrics, error) {
	e.discardPending()
	e.bind(g.Order())
	e.stats.FullSnapshots++
	e.warm = false
	for s := 0; s < e.order; s++ {
		e.res[s] = e.compute(g, s, e.dist[s])
		e.stale[s] = false
		if e.res[s].reached != e.order {
			return Metrics{}, disconnected(e.res[s].reached, e.order, s)
		}
	}
	e.warm = true
	e.base = g.Fingerprint()
	return e.aggregate(), nil
}

// SnapshotIncremental scores g, which must equal the committed graph with
// changes applied. A committed vector D_s is reused when every removed edge
// (a,b) has D_s[a] == D_s[b] and every added edge has |D_s[a]-D_s[b]| <= 1;
// no distance from s can change then. Other sources are recomputed into the
// pending overlay. A cold cache, another order, or a graph that is not a
// child of the committed one make every source pending.
func (e *Engine) SnapshotIncremental(g *graph.Graph, changes []graph.EdgeChange) (Metrics, error) {
	e.discardPending()
	e.stats.IncrementalSnapshots++

	parent := g.Fingerprint() ^ changesFingerprint(changes)
	related := e.warm && e.order == g.Order() && parent == e.base
	if !related {
		if e.order != g.Order() {
			e.bind(g.Order())
			e.warm = false
		}
	}

	e.pending = true
	e.pendingBase = g.Fingerprint()
	for s := 0; s < e.order; s++ {
		if related && !e.stale[s] && reusable(e.dist[s], changes) {
			e.stats.ReusedVectors++
			continue
		}
		vec := e.takeSpare()
		res := e.compute(g, s, vec)
		e.overlay[s] = vec
		e.overlayRes[s] = res
		e.overlaySrcs = append(e.overlaySrcs, s)
		if res.reached != e.order {
			e.discardPending()
			return Metrics{}, disconnected(res.reached, e.order, s)
		}
	}
	return e.aggregate(), nil
}

// Commit promotes the pending overlay. It is a no-op without one.
func (e *Engine) Commit() {
	if !e.pending {
		return
	}
	for _, s := range e.overlaySrcs {
		e.spare = append(e.spare, e.dist[s])
		e.dist[s] = e.overlay[s]
		e.res[s] = e.overlayRes[s]
		e.stale[s] = false
		e.overlay[s] = nil
	}
	e.overlaySrcs = e.overlaySrcs[:0]
	e.pending = false
	e.base = e.pendingBase
	e.warm = true
	e.stats.Commits++
}

// Rollback discards the pending overlay.
func (e *Engine) Rollback() {
	if !e.pending {
		return
	}
	e.discardPending()
	e.stats.Rollbacks++
}

// Pending reports whether an uncommitted overlay exists.
func (e *Engine) Pending() bool { return e.pending }

// Invalidate marks the given sources stale; with no arguments the whole
// cache is dropped. Stale sources are recomputed on next use.
func (e *Engine) Invalidate(vertices ...int) {
	if len(vertices) == 0 {
		e.discardPending()
		e.warm = false
		return
	}
	for _, v := range vertices {
		if v >= 0 && v < len(e.stale) {
			e.stale[v] = true
		}
	}
}

// Distances returns the vector of source v for the most recently scored
// graph g. The slice is owned by the engine and valid until the next call.
// While an overlay is pending, stale sources are recomputed into the overlay
// so a rollback leaves the committed vectors untouched.
func (e *Engine) Distances(g *graph.Graph, v int) (DistanceVector, error) {
	if v < 0 || v >= g.Order() {
		return nil, fmt.Errorf("%w: source %d", graph.ErrVertexOutOfRange, v)
	}
	if e.pending && e.overlay[v] != nil {
		return e.overlay[v], nil
	}
	if !e.warm || e.order != g.Order() {
		return DistancesFrom(g, v)
	}
	if e.stale[v] && e.pending {
		vec := e.takeSpare()
		res := e.compute(g, v, vec)
		e.overlay[v] = vec
		e.overlayRes[v] = res
		e.overlaySrcs = append(e.overlaySrcs, v)
		if res.reached != e.order {
			return vec, disconnected(res.reached, e.order, v)
		}
		return vec, nil
	}
	if e.stale[v] {
		res := e.compute(g, v, e.dist[v])
		e.res[v] = res
		e.stale[v] = false
		if res.reached != e.order {
			return e.dist[v], disconnected(res.reached, e.order, v)
		}
	}
	return e.dist[v], nil
}

func (e *Engine) Stats() Stats { return e.stats }

func (e *Engine) bind(order int) {
	if e.order == order && len(e.dist) == order {
		return
	}
	e.order = order
	e.dist = make([]DistanceVector, order)
	for i := range e.dist {
		e.dist[i] = make(DistanceVector, order)
	}
	e.res = make([]sourceResult, order)
	e.stale = make([]bool, order)
	e.overlay = make([]DistanceVector, order)
	e.overlayRes = make([]sourceResult, order)
	e.overlaySrcs = make([]int, 0, order)
	e.spare = nil
	e.queue = make([]int32, 0, order)
}

func (e *Engine) compute(g *graph.Graph, source int, dist DistanceVector) sourceResult {
	e.stats.BFSRuns++
	return bfsInto(g, source, dist, e.queue)
}

func (e *Engine) takeSpare() DistanceVector {
	if n := len(e.spare); n > 0 {
		vec := e.spare[n-1]
		e.spare = e.spare[:n-1]
		return vec
	}
	return make(DistanceVector, e.order)
}

func (e *Engine) discardPending() {
	if !e.pending {
		return
	}
	for _, s := range e.overlaySrcs {
		e.spare = append(e.spare, e.overlay[s])
		e.overlay[s] = nil
	}
	e.overlaySrcs = e.overlaySrcs[:0]
	e.pending = false
}

func (e *Engine) resultFor(s int) sourceResult {
	if e.pending && e.overlay[s] != nil {
		return e.overlayRes[s]
	}
	return e.res[s]
}

func (e *Engine) aggregate() Metrics {
	m := Metrics{Order: e.order}
	best := int32(-1)
	for s := 0; s < e.order; s++ {
		r := e.resultFor(s)
		m.TotalDistance += r.sum
		if r.ecc > best {
			best = r.ecc
			m.FarthestU = s
			m.FarthestV = int(r.far)
		}
	}
	m.Diameter = int(best)
	return m
}

func reusable(dist DistanceVector, changes []graph.EdgeChange) bool {
	for _, c := range changes {
		a, b := dist[c.Edge.U], dist[c.Edge.V]
		if a == Unreachable || b == Unreachable {
			return false
		}
		if c.Added {
			if a-b > 1 || b-a > 1 {
				return false
			}
		} else if a != b {
			return false
		}
	}
	return true
}

func changesFingerprint(changes []graph.EdgeChange) uint64 {
	edges := make([]graph.Edge, len(changes))
	for i, c := range changes {
		edges[i] = c.Edge
	}
	return graph.FingerprintOf(edges)
}

func disconnected(reached, order, source int) error {
	return fmt.Errorf("%w: %d of %d vertices reachable from %d", ErrDisconnected, reached, order, source)
}

// Evaluate scores g with a throwaway engine.
func Evaluate(g *graph.Graph) (Metrics, error) {
	return NewEngine().Snapshot(g)
}
