package search

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphgolf/internal/enhance"
	"graphgolf/internal/graph"
	"graphgolf/internal/metric"
)

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func randomStart(t *testing.T, order, degree int, seed int64) *graph.Graph {
	t.Helper()
	g, err := graph.RandomRegular(order, degree, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return g
}

func assertProgress(t *testing.T, res Result) {
	t.Helper()
	require.NotEmpty(t, res.Progress)
	assert.Equal(t, res.Initial, res.Progress[0].Metrics)
	for i := 1; i < len(res.Progress); i++ {
		prev, next := res.Progress[i-1], res.Progress[i]
		assert.True(t, next.Metrics.Better(prev.Metrics), "progress %d: %s after %s", i, next.Metrics, prev.Metrics)
		assert.Greater(t, next.Iteration, prev.Iteration)
	}
	assert.Equal(t, res.BestMetrics, res.Progress[len(res.Progress)-1].Metrics)
}

func assertCounting(t *testing.T, c enhance.Counters) {
	t.Helper()
	assert.Equal(t, c.Iterations, c.Accepted+c.Rejected+c.Invalid+c.Disconnected+c.Structural, "%+v", c)
}

func TestControllerImprovesSmallCubicGraph(t *testing.T) {
	start := randomStart(t, 10, 3, 42)
	cfg := quietConfig()
	cfg.Seed = 42
	cfg.Iterations = 1000

	var improvements []Improvement
	cfg.OnImprovement = func(imp Improvement) { improvements = append(improvements, imp) }

	c, err := NewController(cfg, start)
	require.NoError(t, err)
	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StopIterations, res.StopReason)
	assert.Equal(t, 1000, res.Counters.Iterations)
	assertCounting(t, res.Counters)
	assertProgress(t, res)
	assert.Len(t, improvements, len(res.Progress)-1)

	assert.False(t, res.Initial.Better(res.BestMetrics))
	assert.GreaterOrEqual(t, res.BestMetrics.Diameter, 2)
	assert.GreaterOrEqual(t, res.BestMetrics.TotalDistance, res.Bounds.TotalDistance)
	assert.InDelta(t, 15.0/9.0, res.Bounds.ASPL, 1e-12)

	require.NoError(t, res.Best.Check())
	assert.True(t, res.Best.IsRegular())
	fresh, err := metric.Evaluate(res.Best)
	require.NoError(t, err)
	assert.Equal(t, res.BestMetrics, fresh)

	// the caller's start graph is never touched
	assert.Equal(t, res.Initial, score(t, start))
}

func TestControllerCycleStaysAtDiameterThree(t *testing.T) {
	start := randomStart(t, 6, 2, 1)
	cfg := quietConfig()
	cfg.Iterations = 300
	c, err := NewController(cfg, start)
	require.NoError(t, err)
	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.BestMetrics.Diameter)
	assert.Equal(t, int64(54), res.BestMetrics.TotalDistance)
	assert.Len(t, res.Progress, 1)
	assert.True(t, res.Ideal())
	assertCounting(t, res.Counters)
	// the only rewires of a 6-cycle are another 6-cycle or two triangles
	assert.Positive(t, res.Counters.Disconnected)
}

func TestControllerStopsAtLowerBound(t *testing.T) {
	cfg := quietConfig()
	cfg.StopAtLowerBound = true
	c, err := NewController(cfg, randomStart(t, 6, 2, 1))
	require.NoError(t, err)
	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopLowerBound, res.StopReason)
	assert.Equal(t, 0, res.Counters.Iterations)
}

func TestInfeasibleParametersRejected(t *testing.T) {
	_, err := graph.LowerBounds(5, 3)
	assert.ErrorIs(t, err, graph.ErrInfeasible)
	_, err = graph.RandomRegular(5, 3, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, graph.ErrInfeasible)
}

func TestControllerRejectsDisconnectedStart(t *testing.T) {
	g, err := graph.FromEdges(6, 2, []graph.Edge{{U: 0, V: 1}, {U: 1, V: 2}, {U: 0, V: 2}, {U: 3, V: 4}, {U: 4, V: 5}, {U: 3, V: 5}})
	require.NoError(t, err)
	_, err = NewController(quietConfig(), g)
	assert.ErrorIs(t, err, ErrInvariantBreach)
	assert.ErrorIs(t, err, metric.ErrDisconnected)
}

func TestControllerTimeBudget(t *testing.T) {
	cfg := quietConfig()
	cfg.TimeBudget = 50 * time.Millisecond
	c, err := NewController(cfg, randomStart(t, 40, 3, 3))
	require.NoError(t, err)
	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopTimeBudget, res.StopReason)
	assert.Positive(t, res.Counters.Iterations)
	assertCounting(t, res.Counters)
}

func TestControllerCancellation(t *testing.T) {
	start := randomStart(t, 20, 3, 5)
	c, err := NewController(quietConfig(), start)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StopCancelled, res.StopReason)
	assert.Equal(t, 0, res.Counters.Iterations)
	assert.True(t, res.Best.Equal(start))
}

func TestControllerResetsAfterStagnation(t *testing.T) {
	cfg := quietConfig()
	cfg.Iterations = 600
	cfg.RoundLength = 10
	cfg.StagnationRounds = 1
	cfg.EscapeProbability = 1
	cfg.EscapeRunLimit = 1000
	cfg.TabuSize = 0
	cfg.StrategyWeights = map[string]float64{"random_relink": 1}

	c, err := NewController(cfg, randomStart(t, 30, 3, 11))
	require.NoError(t, err)
	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Positive(t, res.Resets)
	assert.Positive(t, res.Counters.Escapes)
	assertProgress(t, res)
	assert.Equal(t, res.BestMetrics, score(t, res.Best))
}

func TestConfigValidate(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.EscapeProbability = 1.5 },
		func(c *Config) { c.EscapeRunLimit = -1 },
		func(c *Config) { c.Iterations = -1 },
		func(c *Config) { c.TimeBudget = -time.Second },
		func(c *Config) { c.TabuSize = -1 },
		func(c *Config) { c.BulkSchedule = "nope" },
		func(c *Config) { c.StrategyWeights = map[string]float64{"random_relink": -1} },
		func(c *Config) { c.StrategyWeights = map[string]float64{"random_relink": 0} },
	}
	for i, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), "case %d", i)
	}
	assert.NoError(t, DefaultConfig().Validate())

	cfg := quietConfig()
	cfg.StrategyWeights = map[string]float64{"missing": 1}
	_, err := NewController(cfg, randomStart(t, 10, 3, 1))
	assert.ErrorIs(t, err, enhance.ErrStrategyNotFound)
}

func TestPortfolioReturnsBestWorker(t *testing.T) {
	cfg := quietConfig()
	cfg.Seed = 100
	cfg.Iterations = 300

	var (
		mu    sync.Mutex
		seen  []Improvement
		seeds []int64
	)
	cfg.OnImprovement = func(imp Improvement) { seen = append(seen, imp) }

	p := Portfolio{
		Config:  cfg,
		Workers: 3,
		Start: func(worker int, seed int64) (*graph.Graph, error) {
			mu.Lock()
			seeds = append(seeds, seed)
			mu.Unlock()
			return graph.RandomRegular(16, 3, rand.New(rand.NewSource(seed)))
		},
	}
	res, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Workers, 3)
	assert.ElementsMatch(t, []int64{100, 101, 102}, seeds)

	for i, w := range res.Workers {
		assert.Equal(t, i, w.Worker)
		assert.Equal(t, int64(100+i), w.Seed)
		assert.Equal(t, StopIterations, w.StopReason)
		assertCounting(t, w.Counters)
		assert.False(t, w.BestMetrics.Better(res.Best.BestMetrics))
	}
	for i := 1; i < len(seen); i++ {
		assert.True(t, seen[i].Metrics.Better(seen[i-1].Metrics))
	}
	if len(seen) > 0 {
		assert.Zero(t, res.Best.BestMetrics.Compare(seen[len(seen)-1].Metrics))
	}
}

func TestPortfolioStopsAtLowerBound(t *testing.T) {
	cfg := quietConfig()
	cfg.StopAtLowerBound = true
	p := Portfolio{
		Config:  cfg,
		Workers: 2,
		Start: func(_ int, seed int64) (*graph.Graph, error) {
			return graph.RandomRegular(6, 2, rand.New(rand.NewSource(seed)))
		},
	}
	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Best.Ideal())
	assert.Equal(t, StopLowerBound, res.Best.StopReason)
}

func score(t *testing.T, g *graph.Graph) metric.Metrics {
	t.Helper()
	m, err := metric.Evaluate(g)
	require.NoError(t, err)
	return m
}
