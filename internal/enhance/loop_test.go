package enhance

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphgolf/internal/graph"
	"graphgolf/internal/metric"
	"graphgolf/internal/tuning"
)

type failingStrategy struct {
	name string
	err  error
	hits int
}

func (s *failingStrategy) Name() string { return s.name }

func (s *failingStrategy) Propose(context.Context, *graph.Graph, metric.Metrics) (Candidate, error) {
	s.hits++
	return Candidate{}, s.err
}

// splitStrategy removes one edge without replacing it.
type splitStrategy struct{}

func (splitStrategy) Name() string { return "split" }

func (splitStrategy) Propose(_ context.Context, current *graph.Graph, _ metric.Metrics) (Candidate, error) {
	e := current.Edges()[0]
	return newCandidate(current, []graph.EdgeChange{graph.Removed(e.U, e.V)}, "split")
}

func newTestLoop(t *testing.T, start *graph.Graph, acceptance tuning.AcceptancePolicy, items ...WeightedStrategy) *Loop {
	t.Helper()
	selector, err := NewSelector(rand.New(rand.NewSource(1)), items, 16)
	require.NoError(t, err)
	loop, err := NewLoop(LoopConfig{Selector: selector, Acceptance: acceptance, RetryLimit: 2}, start)
	require.NoError(t, err)
	return loop
}

func assertCounting(t *testing.T, c Counters) {
	t.Helper()
	assert.Equal(t, c.Iterations, c.Accepted+c.Rejected+c.Invalid+c.Disconnected+c.Structural, "%+v", c)
	assert.LessOrEqual(t, c.Escapes, c.Accepted)
}

func TestLoopGreedyNeverWorsensCurrent(t *testing.T) {
	start := randomGraph(t, 30, 3, 3)
	loop := newTestLoop(t, start, tuning.Greedy{},
		WeightedStrategy{Strategy: &RandomRelink{Rand: rand.New(rand.NewSource(2))}, Weight: 1},
		WeightedStrategy{Strategy: &DiameterRelink{Rand: rand.New(rand.NewSource(3))}, Weight: 1},
	)
	assert.Equal(t, StateIdle, loop.State())

	prev := loop.Snapshot()
	for i := 0; i < 300; i++ {
		res, err := loop.Step(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i+1, res.Iteration)
		snap := loop.Snapshot()
		assert.False(t, prev.Better(snap), "iteration %d regressed %s -> %s", i, prev, snap)
		if res.Outcome == OutcomeAccepted {
			assert.True(t, res.Improved)
			assert.Equal(t, StateAccepted, loop.State())
		} else {
			assert.NotEqual(t, StateAccepted, loop.State())
		}
		prev = snap
	}
	assertCounting(t, loop.Counters())
	assert.Positive(t, loop.Counters().Accepted)

	// the committed snapshot matches a fresh evaluation of the current graph
	fresh, err := metric.Evaluate(loop.Current())
	require.NoError(t, err)
	assert.Equal(t, fresh, loop.Snapshot())
	assert.NoError(t, loop.Current().Check())
	assert.True(t, loop.Current().IsConnected())
}

func TestLoopEscapeCountsNonImprovingAccepts(t *testing.T) {
	escape, err := tuning.NewEscape(rand.New(rand.NewSource(4)), 1, 5)
	require.NoError(t, err)
	loop := newTestLoop(t, randomGraph(t, 30, 3, 5), escape,
		WeightedStrategy{Strategy: &RandomRelink{Rand: rand.New(rand.NewSource(6))}, Weight: 1},
	)
	for i := 0; i < 200; i++ {
		_, err := loop.Step(context.Background())
		require.NoError(t, err)
	}
	c := loop.Counters()
	assertCounting(t, c)
	assert.Positive(t, c.Escapes)
}

func TestLoopCountsInvalidMutations(t *testing.T) {
	a := &failingStrategy{name: "a", err: fmt.Errorf("%w: test", ErrInvalidMutation)}
	b := &failingStrategy{name: "b", err: fmt.Errorf("%w: test", ErrInvalidMutation)}
	loop := newTestLoop(t, randomGraph(t, 10, 3, 1), tuning.Greedy{},
		WeightedStrategy{Strategy: a, Weight: 1},
		WeightedStrategy{Strategy: b, Weight: 1},
	)
	res, err := loop.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrInvalidMutation)
	// one proposal plus RetryLimit retries, both strategies tried
	assert.Equal(t, 3, a.hits+b.hits)
	assert.Positive(t, a.hits)
	assert.Positive(t, b.hits)
	assert.Equal(t, Counters{Iterations: 1, Invalid: 1}, loop.Counters())
}

func TestLoopCountsStructuralAndDisconnected(t *testing.T) {
	structural := &failingStrategy{name: "broken", err: fmt.Errorf("broken: %w", graph.ErrDuplicateEdge)}
	loop := newTestLoop(t, randomGraph(t, 10, 3, 1), tuning.Greedy{},
		WeightedStrategy{Strategy: structural, Weight: 1},
	)
	res, err := loop.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeStructural, res.Outcome)
	assert.Equal(t, Counters{Iterations: 1, Structural: 1}, loop.Counters())

	ring, err := graph.Circulant(8, 2)
	require.NoError(t, err)
	loop = newTestLoop(t, ring, tuning.Greedy{}, WeightedStrategy{Strategy: splitStrategy{}, Weight: 1})
	// removing one ring edge leaves a path, removing the next disconnects
	_, err = loop.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, loop.Counters().Rejected)

	loop.cfg.Acceptance = acceptAll{}
	res, err = loop.Step(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeAccepted, res.Outcome)
	res, err = loop.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDisconnected, res.Outcome)
	assert.ErrorIs(t, res.Err, metric.ErrDisconnected)
	assertCounting(t, loop.Counters())
	assert.Equal(t, 7, loop.Current().EdgeCount())
}

type acceptAll struct{}

func (acceptAll) Name() string { return "all" }

func (acceptAll) Decide(tuning.Decision) tuning.Outcome {
	return tuning.Outcome{Accept: true, Escape: true}
}

func (acceptAll) Reset() {}

func TestLoopStopsOnCancellation(t *testing.T) {
	loop := newTestLoop(t, randomGraph(t, 10, 3, 1), tuning.Greedy{},
		WeightedStrategy{Strategy: &RandomRelink{Rand: rand.New(rand.NewSource(1))}, Weight: 1},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := loop.Step(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateStopped, loop.State())
	assert.Equal(t, Counters{}, loop.Counters())

	_, err = loop.Step(context.Background())
	assert.Error(t, err)
}

func TestNewLoopRejectsDisconnectedStart(t *testing.T) {
	g, err := graph.New(6, 2)
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(0, 1))
	selector, err := NewSelector(rand.New(rand.NewSource(1)), []WeightedStrategy{{Strategy: splitStrategy{}, Weight: 1}}, 0)
	require.NoError(t, err)
	_, err = NewLoop(LoopConfig{Selector: selector}, g)
	assert.ErrorIs(t, err, metric.ErrDisconnected)
}

func TestLoopResetRestoresTarget(t *testing.T) {
	start := randomGraph(t, 24, 3, 8)
	best := start.Clone()
	escape, err := tuning.NewEscape(rand.New(rand.NewSource(2)), 1, 50)
	require.NoError(t, err)
	loop := newTestLoop(t, start, escape,
		WeightedStrategy{Strategy: &RandomRelink{Rand: rand.New(rand.NewSource(9))}, Weight: 1},
	)
	for i := 0; i < 20; i++ {
		_, err := loop.Step(context.Background())
		require.NoError(t, err)
	}
	require.False(t, loop.Current().Equal(best))

	require.NoError(t, loop.Reset(best))
	assert.True(t, loop.Current().Equal(best))
	assert.Equal(t, 0, escape.Run())
	want, err := metric.Evaluate(best)
	require.NoError(t, err)
	assert.Equal(t, want, loop.Snapshot())

	// the target stays independent of further search
	_, err = loop.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, score(t, best))
}

func TestSelectorAdaptsToAcceptance(t *testing.T) {
	a := &failingStrategy{name: "a"}
	b := &failingStrategy{name: "b"}
	s, err := NewSelector(rand.New(rand.NewSource(1)), []WeightedStrategy{{Strategy: a, Weight: 1}, {Strategy: b, Weight: 1}}, 10)
	require.NoError(t, err)

	w := s.Weights()
	assert.Equal(t, w[0], w[1])
	for i := 0; i < 10; i++ {
		s.Record(0, true)
		s.Record(1, false)
	}
	w = s.Weights()
	assert.InDelta(t, 1*(0.1+11.0/12.0), w[0], 1e-12)
	assert.InDelta(t, 1*(0.1+1.0/12.0), w[1], 1e-12)

	picks := [2]int{}
	for i := 0; i < 1000; i++ {
		picks[s.Pick(nil)]++
	}
	assert.Greater(t, picks[0], picks[1]*3)

	assert.Equal(t, 1, s.Pick([]bool{true, false}))
	assert.Equal(t, -1, s.Pick([]bool{true, true}))
}

func TestSelectorValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := NewSelector(nil, []WeightedStrategy{{Strategy: splitStrategy{}, Weight: 1}}, 0)
	assert.Error(t, err)
	_, err = NewSelector(rng, nil, 0)
	assert.Error(t, err)
	_, err = NewSelector(rng, []WeightedStrategy{{Strategy: nil, Weight: 1}}, 0)
	assert.Error(t, err)
	_, err = NewSelector(rng, []WeightedStrategy{{Strategy: splitStrategy{}, Weight: -1}}, 0)
	assert.Error(t, err)
	_, err = NewSelector(rng, []WeightedStrategy{{Strategy: splitStrategy{}, Weight: 0}}, 0)
	assert.Error(t, err)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "proposing", StateProposing.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "disconnected", OutcomeDisconnected.String())
}
