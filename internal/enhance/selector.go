package enhance

import (
	"errors"
	"fmt"
	"math/rand"
)

const (
	defaultAdaptiveWindow = 64
	adaptiveFloor         = 0.1
)

type WeightedStrategy struct {
	Strategy Strategy
	Weight   float64
}

// Selector picks strategies at random, proportionally to
// base weight * (floor + recent acceptance rate). The rate is taken over a
// sliding window of each strategy's latest outcomes.
type Selector struct {
	rng     *rand.Rand
	items   []WeightedStrategy
	windows []outcomeWindow
}

type outcomeWindow struct {
	ring     []bool
	next     int
	filled   int
	accepted int
}

func (w *outcomeWindow) push(accepted bool) {
	if w.filled == len(w.ring) {
		if w.ring[w.next] {
			w.accepted--
		}
	} else {
		w.filled++
	}
	w.ring[w.next] = accepted
	if accepted {
		w.accepted++
	}
	w.next = (w.next + 1) % len(w.ring)
}

// rate is smoothed so that untried strategies start at one half.
func (w *outcomeWindow) rate() float64 {
	return (float64(w.accepted) + 1) / (float64(w.filled) + 2)
}

func NewSelector(rng *rand.Rand, items []WeightedStrategy, window int) (*Selector, error) {
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if len(items) == 0 {
		return nil, errors.New("at least one strategy is required")
	}
	positive := false
	for i, item := range items {
		if item.Strategy == nil {
			return nil, fmt.Errorf("strategy is required at index %d", i)
		}
		if item.Weight < 0 {
			return nil, fmt.Errorf("strategy weight must be >= 0 at index %d", i)
		}
		if item.Weight > 0 {
			positive = true
		}
	}
	if !positive {
		return nil, errors.New("strategy selection requires at least one positive weight")
	}
	if window <= 0 {
		window = defaultAdaptiveWindow
	}
	windows := make([]outcomeWindow, len(items))
	for i := range windows {
		windows[i].ring = make([]bool, window)
	}
	return &Selector{rng: rng, items: items, windows: windows}, nil
}

func (s *Selector) Len() int { return len(s.items) }

func (s *Selector) Strategy(index int) Strategy { return s.items[index].Strategy }

// Weights returns the current effective weights.
func (s *Selector) Weights() []float64 {
	out := make([]float64, len(s.items))
	for i, item := range s.items {
		out[i] = item.Weight * (adaptiveFloor + s.windows[i].rate())
	}
	return out
}

// Pick chooses a strategy not marked in skip. It returns -1 when every
// strategy with a positive weight is skipped.
func (s *Selector) Pick(skip []bool) int {
	weights := s.Weights()
	total := 0.0
	for i, w := range weights {
		if skip != nil && skip[i] {
			continue
		}
		total += w
	}
	if total <= 0 {
		return -1
	}
	pick := s.rng.Float64() * total
	acc := 0.0
	last := -1
	for i, w := range weights {
		if (skip != nil && skip[i]) || w <= 0 {
			continue
		}
		acc += w
		last = i
		if pick < acc {
			return i
		}
	}
	return last
}

// Record feeds one outcome of strategy index into its window.
func (s *Selector) Record(index int, accepted bool) {
	s.windows[index].push(accepted)
}
