package metric

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphgolf/internal/graph"
)

func buildGraph(t *testing.T, order, degree int, edges ...[2]int) *graph.Graph {
	t.Helper()
	g, err := graph.New(order, degree)
	require.NoError(t, err)
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func triangle(t *testing.T) *graph.Graph {
	return buildGraph(t, 3, 2, [2]int{0, 1}, [2]int{1, 2}, [2]int{2, 0})
}

func rectangle(t *testing.T) *graph.Graph {
	return buildGraph(t, 4, 2, [2]int{0, 1}, [2]int{1, 2}, [2]int{2, 3}, [2]int{3, 0})
}

// regressionGraph is a 5-regular graph on 32 vertices with a known score.
func regressionGraph(t *testing.T) *graph.Graph {
	lists := []struct {
		from int
		to   []int
	}{
		{0, []int{2, 31, 8, 16, 15}}, {1, []int{4, 26, 27, 29, 11}}, {2, []int{25, 29, 15, 7}},
		{3, []int{18, 17, 27, 8, 16}}, {4, []int{21, 5, 28, 10}}, {5, []int{14, 22, 24, 15}},
		{6, []int{16, 14, 30, 19, 9}}, {7, []int{13, 20, 12, 10}}, {8, []int{29, 15, 24}},
		{9, []int{23, 18, 28, 22}}, {10, []int{24, 16, 11}}, {11, []int{22, 26, 17}},
		{12, []int{31, 30, 14, 29}}, {13, []int{17, 28, 19, 23}}, {14, []int{21, 25}},
		{15, []int{23}}, {16, []int{20}}, {17, []int{22, 26}}, {18, []int{29, 26, 24}},
		{19, []int{22, 27, 20}}, {20, []int{25, 23}}, {21, []int{30, 25, 23}}, {24, []int{31}},
		{25, []int{26}}, {27, []int{31, 28}}, {28, []int{30}}, {30, []int{31}},
	}
	g, err := graph.New(32, 5)
	require.NoError(t, err)
	for _, l := range lists {
		for _, v := range l.to {
			require.NoError(t, g.AddEdge(l.from, v))
		}
	}
	return g
}

func TestSnapshotKnownGraphs(t *testing.T) {
	m, err := Evaluate(triangle(t))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Diameter)
	assert.Equal(t, 1.0, m.ASPL())

	m, err = Evaluate(rectangle(t))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Diameter)
	assert.Equal(t, int64(16), m.TotalDistance)
	assert.InDelta(t, 4.0/3.0, m.ASPL(), 1e-15)

	m, err = Evaluate(regressionGraph(t))
	require.NoError(t, err)
	assert.Equal(t, 4, m.Diameter)
	assert.Equal(t, int64(2188), m.TotalDistance)
	assert.InDelta(t, 2.20564516129, m.ASPL(), 1e-11)
}

func TestSnapshotCompleteGraphs(t *testing.T) {
	for _, order := range []int{5, 10} {
		g, err := graph.New(order, order-1)
		require.NoError(t, err)
		g.FillRandom(rand.New(rand.NewSource(1)))
		m, err := Evaluate(g)
		require.NoError(t, err)
		assert.Equal(t, 1, m.Diameter)
		assert.Equal(t, 1.0, m.ASPL())
	}
}

func TestSnapshotDisconnected(t *testing.T) {
	g := buildGraph(t, 3, 2, [2]int{0, 1})
	_, err := Evaluate(g)
	assert.ErrorIs(t, err, ErrDisconnected)

	dist, err := DistancesFrom(g, 0)
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.Equal(t, DistanceVector{0, 1, Unreachable}, dist)
}

func TestDistancesSymmetricAndZeroOnDiagonal(t *testing.T) {
	g := regressionGraph(t)
	vectors := make([]DistanceVector, g.Order())
	for v := range vectors {
		d, err := DistancesFrom(g, v)
		require.NoError(t, err)
		vectors[v] = d
	}
	m, err := Evaluate(g)
	require.NoError(t, err)

	maxEntry := int32(0)
	for u := range vectors {
		assert.Equal(t, int32(0), vectors[u][u])
		for v := range vectors {
			assert.Equal(t, vectors[u][v], vectors[v][u], "%d-%d", u, v)
			if vectors[u][v] > maxEntry {
				maxEntry = vectors[u][v]
			}
		}
	}
	assert.Equal(t, int(maxEntry), m.Diameter)
	assert.Equal(t, int32(m.Diameter), vectors[m.FarthestU][m.FarthestV])
}

func TestShortestPath(t *testing.T) {
	line := buildGraph(t, 3, 2, [2]int{0, 1}, [2]int{1, 2})
	p, err := ShortestPath(line, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, p)

	p, err = ShortestPath(line, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, p)

	g := rectangle(t)
	require.NoError(t, g.RemoveEdge(0, 3))
	p, err = ShortestPath(g, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, p)

	rp, err := RandomShortestPath(regressionGraph(t), 0, 9, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	want, err := DistancesFrom(regressionGraph(t), 0)
	require.NoError(t, err)
	assert.Len(t, rp, int(want[9])+1)
	assert.Equal(t, 0, rp[0])
	assert.Equal(t, 9, rp[len(rp)-1])
}

func TestCompareIsLexicographic(t *testing.T) {
	a := Metrics{Order: 10, Diameter: 2, TotalDistance: 200}
	b := Metrics{Order: 10, Diameter: 3, TotalDistance: 150}
	c := Metrics{Order: 10, Diameter: 2, TotalDistance: 190}
	assert.True(t, a.Better(b))
	assert.True(t, c.Better(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.False(t, a.Better(a))
}

func TestRemovingEdgeMakesScoreWorse(t *testing.T) {
	for _, order := range []int{5, 10} {
		a, err := graph.New(order, order-1)
		require.NoError(t, err)
		a.FillRandom(rand.New(rand.NewSource(2)))
		b := a.Clone()
		require.NoError(t, b.RemoveEdge(0, 1))

		ma, err := Evaluate(a)
		require.NoError(t, err)
		mb, err := Evaluate(b)
		require.NoError(t, err)
		assert.True(t, ma.Better(mb))
		assert.False(t, mb.Better(ma))
	}
}

func rewire(g *graph.Graph, rng *rand.Rand) []graph.EdgeChange {
	edges := g.Edges()
	for {
		e1 := edges[rng.Intn(len(edges))]
		e2 := edges[rng.Intn(len(edges))]
		a, b, c, d := e1.U, e1.V, e2.U, e2.V
		if a == c || a == d || b == c || b == d {
			continue
		}
		if rng.Intn(2) == 0 {
			c, d = d, c
		}
		if g.HasEdge(a, c) || g.HasEdge(b, d) {
			continue
		}
		return []graph.EdgeChange{graph.Removed(a, b), graph.Removed(e2.U, e2.V), graph.Added(a, c), graph.Added(b, d)}
	}
}

func TestIncrementalMatchesFullSnapshot(t *testing.T) {
	for _, tc := range []struct {
		order, degree int
		seed          int64
	}{
		{30, 3, 1}, {40, 4, 2}, {24, 5, 3}, {12, 2, 4},
	} {
		rng := rand.New(rand.NewSource(tc.seed))
		current, err := graph.RandomRegular(tc.order, tc.degree, rng)
		require.NoError(t, err)

		engine := NewEngine()
		_, err = engine.Snapshot(current)
		require.NoError(t, err)

		for i := 0; i < 300; i++ {
			candidate := current.Clone()
			changes := rewire(candidate, rng)
			require.NoError(t, candidate.Apply(changes))

			got, err := engine.SnapshotIncremental(candidate, changes)
			want, wantErr := Evaluate(candidate)
			if wantErr != nil {
				require.ErrorIs(t, err, ErrDisconnected)
				assert.False(t, engine.Pending())
				continue
			}
			require.NoError(t, err)
			require.Equal(t, want, got, "order=%d iteration=%d", tc.order, i)

			if rng.Intn(2) == 0 {
				engine.Commit()
				current = candidate
			} else {
				engine.Rollback()
			}
		}
		stats := engine.Stats()
		assert.Positive(t, stats.Commits)
		// even cycles have no edge at equal distance from any source
		if tc.degree >= 3 {
			assert.Positive(t, stats.ReusedVectors, "order=%d degree=%d", tc.order, tc.degree)
		}
	}
}

func TestIncrementalMatchesCrossCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	current, err := graph.RandomRegular(20, 3, rng)
	require.NoError(t, err)
	engine := NewEngine()
	_, err = engine.Snapshot(current)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		candidate := current.Clone()
		changes := rewire(candidate, rng)
		require.NoError(t, candidate.Apply(changes))
		got, err := engine.SnapshotIncremental(candidate, changes)
		if err != nil {
			continue
		}
		want, err := CrossCheck(candidate)
		require.NoError(t, err)
		require.Equal(t, want, got)
		engine.Commit()
		current = candidate
	}
}

func TestRollbackKeepsCommittedState(t *testing.T) {
	g := rectangle(t)
	engine := NewEngine()
	base, err := engine.Snapshot(g)
	require.NoError(t, err)

	candidate := g.Clone()
	changes := []graph.EdgeChange{graph.Removed(0, 1), graph.Removed(2, 3), graph.Added(0, 2), graph.Added(1, 3)}
	require.NoError(t, candidate.Apply(changes))
	_, err = engine.SnapshotIncremental(candidate, changes)
	require.NoError(t, err)
	require.True(t, engine.Pending())
	engine.Rollback()
	require.False(t, engine.Pending())

	d, err := engine.Distances(g, 0)
	require.NoError(t, err)
	assert.Equal(t, DistanceVector{0, 1, 2, 1}, d)

	// the committed graph scores the same through an empty change list
	again, err := engine.SnapshotIncremental(g, nil)
	require.NoError(t, err)
	assert.Equal(t, base, again)
	assert.Equal(t, int64(4), engine.Stats().ReusedVectors)
}

func TestIncrementalFallsBackForUnrelatedGraph(t *testing.T) {
	engine := NewEngine()
	_, err := engine.Snapshot(rectangle(t))
	require.NoError(t, err)

	before := engine.Stats().BFSRuns
	m, err := engine.SnapshotIncremental(triangle(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Diameter)
	assert.Equal(t, before+3, engine.Stats().BFSRuns)
	engine.Commit()

	// same order, different lineage: the triangle's vectors must not be reused
	line := buildGraph(t, 3, 2, [2]int{0, 1}, [2]int{1, 2})
	m, err = engine.SnapshotIncremental(line, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Diameter)
	assert.Equal(t, int64(8), m.TotalDistance)
}

func TestInvalidateRecomputesStaleSources(t *testing.T) {
	g := regressionGraph(t)
	engine := NewEngine()
	want, err := engine.Snapshot(g)
	require.NoError(t, err)

	engine.Invalidate(3, 7)
	before := engine.Stats().BFSRuns
	got, err := engine.SnapshotIncremental(g, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, before+2, engine.Stats().BFSRuns)
	engine.Commit()

	engine.Invalidate()
	before = engine.Stats().BFSRuns
	_, err = engine.SnapshotIncremental(g, nil)
	require.NoError(t, err)
	assert.Equal(t, before+int64(g.Order()), engine.Stats().BFSRuns)
}

func TestDistancesWhilePendingLeavesCommittedState(t *testing.T) {
	g := regressionGraph(t)
	engine := NewEngine()
	_, err := engine.Snapshot(g)
	require.NoError(t, err)

	_, err = engine.SnapshotIncremental(g, nil)
	require.NoError(t, err)
	require.True(t, engine.Pending())

	engine.Invalidate(5)
	before := engine.Stats().BFSRuns
	d, err := engine.Distances(g, 5)
	require.NoError(t, err)
	want, err := DistancesFrom(g, 5)
	require.NoError(t, err)
	assert.Equal(t, want, d)
	assert.Equal(t, before+1, engine.Stats().BFSRuns)
	engine.Rollback()

	// the rollback dropped the recompute, so source 5 is still stale
	before = engine.Stats().BFSRuns
	_, err = engine.SnapshotIncremental(g, nil)
	require.NoError(t, err)
	assert.Equal(t, before+1, engine.Stats().BFSRuns)

	d, err = engine.Distances(g, 5)
	require.NoError(t, err)
	assert.Equal(t, want, d)
	engine.Commit()

	before = engine.Stats().BFSRuns
	_, err = engine.SnapshotIncremental(g, nil)
	require.NoError(t, err)
	assert.Equal(t, before, engine.Stats().BFSRuns)
}

func TestCrossCheckKnownGraphs(t *testing.T) {
	m, err := CrossCheck(regressionGraph(t))
	require.NoError(t, err)
	assert.Equal(t, 4, m.Diameter)
	assert.Equal(t, int64(2188), m.TotalDistance)

	full, err := Evaluate(regressionGraph(t))
	require.NoError(t, err)
	assert.Equal(t, full, m)

	_, err = CrossCheck(buildGraph(t, 3, 2, [2]int{0, 1}))
	assert.ErrorIs(t, err, ErrDisconnected)
}
