package enhance

import (
	"context"
	"errors"
	"fmt"

	"graphgolf/internal/graph"
	"graphgolf/internal/metric"
	"graphgolf/internal/tuning"
)

const defaultRetryLimit = 3

type State int

const (
	StateIdle State = iota
	StateProposing
	StateScoring
	StateDeciding
	StateAccepted
	StateRejected
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProposing:
		return "proposing"
	case StateScoring:
		return "scoring"
	case StateDeciding:
		return "deciding"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome classifies one iteration. Every iteration has exactly one.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeRejected
	OutcomeInvalid
	OutcomeDisconnected
	OutcomeStructural
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeDisconnected:
		return "disconnected"
	case OutcomeStructural:
		return "structural"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Counters satisfy Iterations == Accepted + Rejected + Invalid +
// Disconnected + Structural. Escapes counts the accepted non-improving
// candidates and is a subset of Accepted.
type Counters struct {
	Iterations   int `json:"iterations"`
	Accepted     int `json:"accepted"`
	Rejected     int `json:"rejected"`
	Invalid      int `json:"invalid"`
	Disconnected int `json:"disconnected"`
	Structural   int `json:"structural"`
	Escapes      int `json:"escapes"`
}

type StepResult struct {
	Iteration int
	Outcome   Outcome
	Strategy  string
	Metrics   metric.Metrics
	Escape    bool
	// Improved is set when the accepted candidate beats the graph it replaced.
	Improved bool
	Err      error
}

type LoopConfig struct {
	Selector   *Selector
	Engine     *metric.Engine
	Acceptance tuning.AcceptancePolicy
	RetryLimit int
	// Horizon is the planned iteration count, 0 when only time bounds the run.
	Horizon int
}

// Loop owns the current graph of one search and runs one propose, score,
// decide cycle per Step. It is not safe for concurrent use.
type Loop struct {
	cfg      LoopConfig
	current  *graph.Graph
	snap     metric.Metrics
	state    State
	counters Counters
	skip     []bool
}

// NewLoop scores start and takes ownership of it.
func NewLoop(cfg LoopConfig, start *graph.Graph) (*Loop, error) {
	if cfg.Selector == nil {
		return nil, errors.New("selector is required")
	}
	if cfg.Engine == nil {
		cfg.Engine = metric.NewEngine()
	}
	if cfg.Acceptance == nil {
		cfg.Acceptance = tuning.Greedy{}
	}
	if cfg.RetryLimit < 0 {
		return nil, errors.New("retry limit must be >= 0")
	}
	if cfg.RetryLimit == 0 {
		cfg.RetryLimit = defaultRetryLimit
	}
	if start == nil {
		return nil, errors.New("start graph is required")
	}
	snap, err := cfg.Engine.Snapshot(start)
	if err != nil {
		return nil, fmt.Errorf("score start graph: %w", err)
	}
	if tabu, ok := cfg.Acceptance.(*tuning.Tabu); ok {
		tabu.Remember(start.Fingerprint())
	}
	return &Loop{
		cfg:     cfg,
		current: start,
		snap:    snap,
		state:   StateIdle,
		skip:    make([]bool, cfg.Selector.Len()),
	}, nil
}

// Current returns the committed graph. Callers must not mutate it.
func (l *Loop) Current() *graph.Graph { return l.current }

func (l *Loop) Snapshot() metric.Metrics { return l.snap }

func (l *Loop) State() State { return l.state }

func (l *Loop) Counters() Counters { return l.counters }

// Stop moves the loop to its terminal state.
func (l *Loop) Stop() { l.state = StateStopped }

// Step runs one iteration. Cancellation is only observed before proposing,
// so a started iteration always finishes scoring and deciding.
func (l *Loop) Step(ctx context.Context) (StepResult, error) {
	if l.state == StateStopped {
		return StepResult{}, errors.New("loop is stopped")
	}
	if err := ctx.Err(); err != nil {
		l.state = StateStopped
		return StepResult{}, err
	}

	l.counters.Iterations++
	result := StepResult{Iteration: l.counters.Iterations}
	for i := 0; i < l.cfg.Selector.Len(); i++ {
		if obs, ok := l.cfg.Selector.Strategy(i).(IterationObserver); ok {
			obs.ObserveIteration(l.counters.Iterations, l.cfg.Horizon)
		}
	}

	l.state = StateProposing
	candidate, index, err := l.propose(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidMutation):
		l.counters.Invalid++
		l.state = StateRejected
		result.Outcome, result.Err = OutcomeInvalid, err
		return result, nil
	case errors.Is(err, graph.ErrStructural):
		l.counters.Structural++
		l.cfg.Selector.Record(index, false)
		l.state = StateRejected
		result.Outcome, result.Err = OutcomeStructural, err
		return result, nil
	default:
		l.counters.Iterations--
		l.state = StateStopped
		return StepResult{}, err
	}
	result.Strategy = candidate.Strategy

	l.state = StateScoring
	snap, err := l.cfg.Engine.SnapshotIncremental(candidate.Graph, candidate.Changes)
	if err != nil {
		if errors.Is(err, metric.ErrDisconnected) {
			l.counters.Disconnected++
			l.cfg.Selector.Record(index, false)
			l.state = StateRejected
			result.Outcome, result.Err = OutcomeDisconnected, err
			return result, nil
		}
		l.counters.Iterations--
		l.state = StateStopped
		return StepResult{}, fmt.Errorf("score candidate: %w", err)
	}
	result.Metrics = snap

	l.state = StateDeciding
	decision := l.cfg.Acceptance.Decide(tuning.Decision{
		Current:     l.snap,
		Candidate:   snap,
		Fingerprint: candidate.Graph.Fingerprint(),
	})
	l.cfg.Selector.Record(index, decision.Accept)
	if !decision.Accept {
		l.cfg.Engine.Rollback()
		l.counters.Rejected++
		l.state = StateRejected
		result.Outcome = OutcomeRejected
		return result, nil
	}

	l.cfg.Engine.Commit()
	result.Improved = snap.Better(l.snap)
	result.Escape = decision.Escape
	l.current = candidate.Graph
	l.snap = snap
	l.counters.Accepted++
	if decision.Escape {
		l.counters.Escapes++
	}
	l.state = StateAccepted
	result.Outcome = OutcomeAccepted
	return result, nil
}

// propose asks strategies for a candidate, moving on to another strategy
// after ErrInvalidMutation. Once all were tried the same one may be asked
// again, up to RetryLimit retries.
func (l *Loop) propose(ctx context.Context) (Candidate, int, error) {
	for i := range l.skip {
		l.skip[i] = false
	}
	var lastErr error
	for attempt := 0; attempt <= l.cfg.RetryLimit; attempt++ {
		index := l.cfg.Selector.Pick(l.skip)
		if index < 0 {
			for i := range l.skip {
				l.skip[i] = false
			}
			index = l.cfg.Selector.Pick(l.skip)
		}
		candidate, err := l.cfg.Selector.Strategy(index).Propose(ctx, l.current, l.snap)
		if err == nil {
			return candidate, index, nil
		}
		if !errors.Is(err, ErrInvalidMutation) {
			return Candidate{}, index, err
		}
		lastErr = err
		l.skip[index] = true
		l.cfg.Selector.Record(index, false)
	}
	return Candidate{}, -1, lastErr
}

// Reset makes target the current graph, e.g. to return to the best graph
// after stagnation. target is cloned; the engine rescoring reuses cached
// vectors where the edge diff allows.
func (l *Loop) Reset(target *graph.Graph) error {
	if target.Order() != l.current.Order() || target.DegreeBound() != l.current.DegreeBound() {
		return fmt.Errorf("%w: reset to %s from %s", graph.ErrInfeasible, target, l.current)
	}
	next := target.Clone()
	changes := graph.Diff(l.current, next)
	snap, err := l.cfg.Engine.SnapshotIncremental(next, changes)
	if err != nil {
		return fmt.Errorf("score reset graph: %w", err)
	}
	l.cfg.Engine.Commit()
	l.current = next
	l.snap = snap
	l.cfg.Acceptance.Reset()
	l.state = StateIdle
	return nil
}
