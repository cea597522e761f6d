package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"graphgolf/internal/graph"
	"graphgolf/internal/metric"
)

// StartFunc builds the initial graph for one worker.
type StartFunc func(worker int, seed int64) (*graph.Graph, error)

type Portfolio struct {
	Config  Config
	Workers int
	Start   StartFunc
}

type PortfolioResult struct {
	Best    Result
	Workers []Result
}

// Run starts Workers independent controllers with seeds Seed+i and returns
// the best result. OnImprovement only sees improvements of the global best,
// so it stays monotone across workers. With StopAtLowerBound, the first
// worker to reach the bounds cancels the others.
func (p Portfolio) Run(ctx context.Context) (PortfolioResult, error) {
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}
	if p.Start == nil {
		return PortfolioResult{}, errors.New("start func is required")
	}
	if err := p.Config.Validate(); err != nil {
		return PortfolioResult{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		global  metric.Metrics
		hasBest bool
	)
	forward := p.Config.OnImprovement

	controllers := make([]*Controller, workers)
	for i := 0; i < workers; i++ {
		cfg := p.Config
		cfg.Seed = p.Config.Seed + int64(i)
		cfg.OnImprovement = func(imp Improvement) {
			mu.Lock()
			defer mu.Unlock()
			if hasBest && !imp.Metrics.Better(global) {
				return
			}
			global, hasBest = imp.Metrics, true
			if forward != nil {
				forward(imp)
			}
		}
		start, err := p.Start(i, cfg.Seed)
		if err != nil {
			return PortfolioResult{}, fmt.Errorf("worker %d start graph: %w", i, err)
		}
		c, err := newController(cfg, i, start)
		if err != nil {
			return PortfolioResult{}, fmt.Errorf("worker %d: %w", i, err)
		}
		controllers[i] = c
	}

	// seed the global best with the best start so workers only report
	// real progress
	for _, c := range controllers {
		if !hasBest || c.bestSnap.Better(global) {
			global, hasBest = c.bestSnap, true
		}
	}

	results := make([]Result, workers)
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range controllers {
		i, c := i, c
		g.Go(func() error {
			res, err := c.Run(gctx)
			if err != nil {
				return fmt.Errorf("worker %d: %w", i, err)
			}
			results[i] = res
			if res.StopReason == StopLowerBound {
				cancel()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PortfolioResult{}, err
	}

	best := 0
	for i := 1; i < len(results); i++ {
		if results[i].BestMetrics.Better(results[best].BestMetrics) {
			best = i
		}
	}
	return PortfolioResult{Best: results[best], Workers: results}, nil
}
