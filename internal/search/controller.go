// Package search runs the enhancer loop in rounds over one graph, keeps the
// best graph seen, and coordinates independent seeded runs.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"graphgolf/internal/enhance"
	"graphgolf/internal/graph"
	"graphgolf/internal/metric"
	"graphgolf/internal/tuning"
)

var ErrInvariantBreach = errors.New("invariant breach")

type StopReason string

const (
	StopIterations StopReason = "iterations"
	StopTimeBudget StopReason = "time_budget"
	StopCancelled  StopReason = "cancelled"
	StopLowerBound StopReason = "lower_bound"
)

// Improvement is one step of the best-known score. A run reports them in
// strictly improving order.
type Improvement struct {
	Worker    int
	Iteration int
	Elapsed   time.Duration
	Metrics   metric.Metrics
	Strategy  string
}

type Result struct {
	Worker      int
	Seed        int64
	Best        *graph.Graph
	BestMetrics metric.Metrics
	Initial     metric.Metrics
	Bounds      graph.Bounds
	Counters    enhance.Counters
	StopReason  StopReason
	Progress    []Improvement
	Rounds      int
	Resets      int
	Elapsed     time.Duration
	EngineStats metric.Stats
}

// Ideal reports whether the best graph meets both lower bounds.
func (r Result) Ideal() bool {
	return r.Bounds.IsIdeal(r.BestMetrics.Diameter, r.BestMetrics.TotalDistance)
}

// Controller owns the current graph of one run through its loop, plus a
// deep copy of the best graph seen.
type Controller struct {
	cfg    Config
	worker int
	logger *slog.Logger

	engine   *metric.Engine
	loop     *enhance.Loop
	bounds   graph.Bounds
	best     *graph.Graph
	bestSnap metric.Metrics
	initial  metric.Metrics
}

func NewController(cfg Config, start *graph.Graph) (*Controller, error) {
	return newController(cfg, 0, start)
}

func newController(cfg Config, worker int, start *graph.Graph) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if start == nil {
		return nil, errors.New("start graph is required")
	}
	bounds, err := graph.LowerBounds(start.Order(), start.DegreeBound())
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	schedule, err := tuning.PercentScheduleFromConfig(cfg.BulkSchedule, 0)
	if err != nil {
		return nil, err
	}
	items, err := cfg.Registry.Build(cfg.StrategyWeights, rng, enhance.Options{
		MaxAttempts:  0,
		Reach:        cfg.Reach,
		BulkPercent:  cfg.BulkPercent,
		BulkSchedule: schedule,
	})
	if err != nil {
		return nil, err
	}
	selector, err := enhance.NewSelector(rand.New(rand.NewSource(rng.Int63())), items, cfg.AdaptiveWindow)
	if err != nil {
		return nil, err
	}
	acceptance, err := tuning.AcceptanceFromConfig(rand.New(rand.NewSource(rng.Int63())), cfg.EscapeProbability, cfg.EscapeRunLimit, cfg.TabuSize)
	if err != nil {
		return nil, err
	}

	engine := metric.NewEngine()
	loop, err := enhance.NewLoop(enhance.LoopConfig{
		Selector:   selector,
		Engine:     engine,
		Acceptance: acceptance,
		RetryLimit: cfg.RetryLimit,
		Horizon:    cfg.Iterations,
	}, start.Clone())
	if err != nil {
		if errors.Is(err, metric.ErrDisconnected) {
			return nil, fmt.Errorf("%w: %w", ErrInvariantBreach, err)
		}
		return nil, err
	}

	logger := cfg.Logger.With("worker", worker, "seed", cfg.Seed)
	return &Controller{
		cfg:      cfg,
		worker:   worker,
		logger:   logger,
		engine:   engine,
		loop:     loop,
		bounds:   bounds,
		best:     start.Clone(),
		bestSnap: loop.Snapshot(),
		initial:  loop.Snapshot(),
	}, nil
}

// Best returns a copy of the best graph and its score.
func (c *Controller) Best() (*graph.Graph, metric.Metrics) {
	return c.best.Clone(), c.bestSnap
}

func (c *Controller) Bounds() graph.Bounds { return c.bounds }

// Run searches until a stop condition holds. Budget exhaustion and
// cancellation end the run normally; the result carries the reason.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	started := time.Now()
	runCtx := ctx
	if c.cfg.TimeBudget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.cfg.TimeBudget)
		defer cancel()
	}

	res := Result{
		Worker:  c.worker,
		Seed:    c.cfg.Seed,
		Initial: c.initial,
		Bounds:  c.bounds,
		Progress: []Improvement{{
			Worker:  c.worker,
			Metrics: c.bestSnap,
		}},
	}
	c.logger.Info("search started",
		"order", c.best.Order(),
		"degree", c.best.DegreeBound(),
		"diameter", c.initial.Diameter,
		"aspl", c.initial.ASPL(),
		"bound_diameter", c.bounds.Diameter,
		"bound_aspl", c.bounds.ASPL,
	)

	stagnant := 0
	reason := StopReason("")
	for reason == "" {
		if c.cfg.StopAtLowerBound && c.bounds.IsIdeal(c.bestSnap.Diameter, c.bestSnap.TotalDistance) {
			reason = StopLowerBound
			break
		}
		improved := false
		for i := 0; i < c.cfg.RoundLength; i++ {
			if c.cfg.Iterations > 0 && c.loop.Counters().Iterations >= c.cfg.Iterations {
				reason = StopIterations
				break
			}
			step, err := c.loop.Step(runCtx)
			if err != nil {
				if r, ok := stopReasonFor(ctx, runCtx, err); ok {
					reason = r
					break
				}
				return Result{}, err
			}
			if step.Outcome != enhance.OutcomeAccepted || !c.loop.Snapshot().Better(c.bestSnap) {
				continue
			}
			improved = true
			c.best = c.loop.Current().Clone()
			c.bestSnap = c.loop.Snapshot()
			imp := Improvement{
				Worker:    c.worker,
				Iteration: step.Iteration,
				Elapsed:   time.Since(started),
				Metrics:   c.bestSnap,
				Strategy:  step.Strategy,
			}
			res.Progress = append(res.Progress, imp)
			c.logger.Info("improvement",
				"iteration", imp.Iteration,
				"diameter", imp.Metrics.Diameter,
				"aspl", imp.Metrics.ASPL(),
				"strategy", imp.Strategy,
			)
			if c.cfg.OnImprovement != nil {
				c.cfg.OnImprovement(imp)
			}
			if c.cfg.StopAtLowerBound && c.bounds.IsIdeal(c.bestSnap.Diameter, c.bestSnap.TotalDistance) {
				reason = StopLowerBound
				break
			}
		}
		res.Rounds++
		if reason != "" {
			break
		}
		if improved {
			stagnant = 0
			continue
		}
		stagnant++
		if c.cfg.StagnationRounds > 0 && stagnant >= c.cfg.StagnationRounds {
			stagnant = 0
			if !c.loop.Current().Equal(c.best) {
				if err := c.loop.Reset(c.best); err != nil {
					if errors.Is(err, metric.ErrDisconnected) {
						return Result{}, fmt.Errorf("%w: %w", ErrInvariantBreach, err)
					}
					return Result{}, err
				}
				res.Resets++
				c.logger.Debug("reset to best after stagnation", "round", res.Rounds, "diameter", c.bestSnap.Diameter, "aspl", c.bestSnap.ASPL())
			}
		}
		c.logger.Debug("round finished", "round", res.Rounds, "iterations", c.loop.Counters().Iterations, "current", c.loop.Snapshot().String())
	}
	c.loop.Stop()

	res.Best = c.best.Clone()
	res.BestMetrics = c.bestSnap
	res.Counters = c.loop.Counters()
	res.StopReason = reason
	res.Elapsed = time.Since(started)
	res.EngineStats = c.engine.Stats()
	c.logger.Info("search finished",
		"reason", string(reason),
		"iterations", res.Counters.Iterations,
		"accepted", res.Counters.Accepted,
		"diameter", res.BestMetrics.Diameter,
		"aspl", res.BestMetrics.ASPL(),
	)
	return res, nil
}

func stopReasonFor(parent, run context.Context, err error) (StopReason, bool) {
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return "", false
	}
	if parent.Err() != nil {
		return StopCancelled, true
	}
	if run.Err() != nil {
		return StopTimeBudget, true
	}
	return StopCancelled, true
}
