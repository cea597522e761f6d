package enhance

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"graphgolf/internal/tuning"
)

// Options carries strategy tuning shared by the built-in factories.
type Options struct {
	MaxAttempts  int
	Reach        int
	BulkPercent  float64
	BulkSchedule tuning.PercentSchedule
}

type Factory func(rng *rand.Rand, opts Options) Strategy

// Registry maps strategy names to factories. Every search builds its
// strategies from a registry so that each gets its own random source.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Factory)}
}

// DefaultRegistry holds random_relink, diameter_relink and bulk_replace.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for name, f := range map[string]Factory{
		"random_relink": func(rng *rand.Rand, opts Options) Strategy {
			return &RandomRelink{Rand: rng, MaxAttempts: opts.MaxAttempts}
		},
		"diameter_relink": func(rng *rand.Rand, opts Options) Strategy {
			return &DiameterRelink{Rand: rng, Reach: opts.Reach}
		},
		"bulk_replace": func(rng *rand.Rand, opts Options) Strategy {
			return &BulkReplace{Rand: rng, Schedule: opts.BulkSchedule, BasePercent: opts.BulkPercent, MaxAttempts: opts.MaxAttempts}
		},
	} {
		if err := r.Register(name, f); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return errors.New("strategy name is required")
	}
	if f == nil {
		return errors.New("strategy factory is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrStrategyExists, name)
	}
	r.m[name] = f
	return nil
}

// Resolve builds a new instance of the named strategy.
func (r *Registry) Resolve(name string, rng *rand.Rand, opts Options) (Strategy, error) {
	r.mu.RLock()
	f, ok := r.m[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	return f(rng, opts), nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.m))
	for name := range r.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build resolves every strategy with a positive weight, in name order. Each
// strategy draws from its own source seeded from rng.
func (r *Registry) Build(weights map[string]float64, rng *rand.Rand, opts Options) ([]WeightedStrategy, error) {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]WeightedStrategy, 0, len(names))
	for _, name := range names {
		w := weights[name]
		if w < 0 {
			return nil, fmt.Errorf("strategy weight must be >= 0: %s=%v", name, w)
		}
		s, err := r.Resolve(name, rand.New(rand.NewSource(rng.Int63())), opts)
		if err != nil {
			return nil, err
		}
		if w == 0 {
			continue
		}
		out = append(out, WeightedStrategy{Strategy: s, Weight: w})
	}
	if len(out) == 0 {
		return nil, errors.New("at least one strategy needs a positive weight")
	}
	return out, nil
}
