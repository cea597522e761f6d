package tuning

import (
	"errors"
	"fmt"
	"math/rand"

	lru "github.com/hashicorp/golang-lru/v2"

	"graphgolf/internal/metric"
)

// Decision is what an acceptance policy sees of one candidate.
type Decision struct {
	Current     metric.Metrics
	Candidate   metric.Metrics
	Fingerprint uint64
}

func (d Decision) Improves() bool { return d.Candidate.Better(d.Current) }

type Outcome struct {
	Accept bool
	// Escape marks the acceptance of a non-improving candidate.
	Escape bool
}

type AcceptancePolicy interface {
	Name() string
	Decide(d Decision) Outcome
	// Reset forgets run state, e.g. after the search jumps back to its best graph.
	Reset()
}

// Greedy accepts strict lexicographic improvements only.
type Greedy struct{}

func (Greedy) Name() string { return "greedy" }

func (Greedy) Decide(d Decision) Outcome { return Outcome{Accept: d.Improves()} }

func (Greedy) Reset() {}

// Escape accepts improvements and, with Probability, a non-improving
// candidate as long as fewer than RunLimit non-improving candidates were
// accepted since the last improvement.
type Escape struct {
	Rand        *rand.Rand
	Probability float64
	RunLimit    int
	run         int
}

func NewEscape(rng *rand.Rand, probability float64, runLimit int) (*Escape, error) {
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if probability < 0 || probability > 1 {
		return nil, fmt.Errorf("escape probability must be in [0,1], got %v", probability)
	}
	if runLimit < 0 {
		return nil, fmt.Errorf("escape run limit must be >= 0, got %d", runLimit)
	}
	return &Escape{Rand: rng, Probability: probability, RunLimit: runLimit}, nil
}

func (e *Escape) Name() string { return "escape" }

func (e *Escape) Decide(d Decision) Outcome {
	if d.Improves() {
		e.run = 0
		return Outcome{Accept: true}
	}
	if e.run >= e.RunLimit || e.Probability <= 0 {
		return Outcome{}
	}
	if e.Rand.Float64() >= e.Probability {
		return Outcome{}
	}
	e.run++
	return Outcome{Accept: true, Escape: true}
}

func (e *Escape) Reset() { e.run = 0 }

// Run is the number of consecutive non-improving acceptances.
func (e *Escape) Run() int { return e.run }

// Tabu rejects non-improving candidates whose fingerprint was accepted
// recently, and otherwise defers to Inner.
type Tabu struct {
	Inner  AcceptancePolicy
	recent *lru.Cache[uint64, struct{}]
}

func NewTabu(inner AcceptancePolicy, size int) (*Tabu, error) {
	if inner == nil {
		return nil, errors.New("inner acceptance policy is required")
	}
	recent, err := lru.New[uint64, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("tabu memory: %w", err)
	}
	return &Tabu{Inner: inner, recent: recent}, nil
}

func (t *Tabu) Name() string { return "tabu+" + t.Inner.Name() }

func (t *Tabu) Decide(d Decision) Outcome {
	if !d.Improves() && t.recent.Contains(d.Fingerprint) {
		return Outcome{}
	}
	out := t.Inner.Decide(d)
	if out.Accept {
		t.recent.Add(d.Fingerprint, struct{}{})
	}
	return out
}

// Remember records a fingerprint without a decision, e.g. the start graph.
func (t *Tabu) Remember(fingerprint uint64) { t.recent.Add(fingerprint, struct{}{}) }

func (t *Tabu) Reset() {
	t.recent.Purge()
	t.Inner.Reset()
}

// AcceptanceFromConfig builds the policy for a run: greedy when escapes are
// disabled, wrapped in tabu memory when tabuSize > 0.
func AcceptanceFromConfig(rng *rand.Rand, probability float64, runLimit, tabuSize int) (AcceptancePolicy, error) {
	var policy AcceptancePolicy = Greedy{}
	if probability > 0 && runLimit > 0 {
		escape, err := NewEscape(rng, probability, runLimit)
		if err != nil {
			return nil, err
		}
		policy = escape
	} else if probability < 0 || probability > 1 {
		return nil, fmt.Errorf("escape probability must be in [0,1], got %v", probability)
	}
	if tabuSize > 0 {
		tabu, err := NewTabu(policy, tabuSize)
		if err != nil {
			return nil, err
		}
		policy = tabu
	}
	return policy, nil
}
