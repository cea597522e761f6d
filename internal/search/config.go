package search

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"graphgolf/internal/enhance"
	"graphgolf/internal/tuning"
)

const (
	defaultRoundLength      = 100
	defaultStagnationRounds = 20
	defaultRetryLimit       = 3
	defaultTabuSize         = 256
	defaultBulkPercent      = 10
	defaultAdaptiveWindow   = 64
	defaultEscapeRunLimit   = 8
	defaultEscapeProb       = 0.01
)

// Config is consumed once at controller construction.
type Config struct {
	StrategyWeights   map[string]float64
	EscapeProbability float64
	EscapeRunLimit    int
	StopAtLowerBound  bool

	// Iterations and TimeBudget bound the run; zero means unbounded, and
	// a run with neither stops only on cancellation or the lower bound.
	Iterations int
	TimeBudget time.Duration
	Seed       int64

	RoundLength      int
	StagnationRounds int
	RetryLimit       int
	TabuSize         int
	BulkSchedule     string
	BulkPercent      float64
	AdaptiveWindow   int
	Reach            int

	Registry      *enhance.Registry
	Logger        *slog.Logger
	OnImprovement func(Improvement)
}

func DefaultStrategyWeights() map[string]float64 {
	return map[string]float64{
		"random_relink":   4,
		"diameter_relink": 2,
		"bulk_replace":    1,
	}
}

func DefaultConfig() Config {
	return Config{
		StrategyWeights:   DefaultStrategyWeights(),
		EscapeProbability: defaultEscapeProb,
		EscapeRunLimit:    defaultEscapeRunLimit,
		RoundLength:       defaultRoundLength,
		StagnationRounds:  defaultStagnationRounds,
		RetryLimit:        defaultRetryLimit,
		TabuSize:          defaultTabuSize,
		BulkSchedule:      "cyclic",
		BulkPercent:       defaultBulkPercent,
		AdaptiveWindow:    defaultAdaptiveWindow,
	}
}

func (c Config) withDefaults() Config {
	if len(c.StrategyWeights) == 0 {
		c.StrategyWeights = DefaultStrategyWeights()
	}
	if c.RoundLength <= 0 {
		c.RoundLength = defaultRoundLength
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = defaultRetryLimit
	}
	if c.BulkPercent <= 0 {
		c.BulkPercent = defaultBulkPercent
	}
	if c.AdaptiveWindow <= 0 {
		c.AdaptiveWindow = defaultAdaptiveWindow
	}
	if c.Registry == nil {
		c.Registry = enhance.DefaultRegistry()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func (c Config) Validate() error {
	if c.EscapeProbability < 0 || c.EscapeProbability > 1 {
		return fmt.Errorf("escape probability must be in [0,1], got %v", c.EscapeProbability)
	}
	if c.EscapeRunLimit < 0 {
		return fmt.Errorf("escape run limit must be >= 0, got %d", c.EscapeRunLimit)
	}
	if c.Iterations < 0 {
		return fmt.Errorf("iterations must be >= 0, got %d", c.Iterations)
	}
	if c.TimeBudget < 0 {
		return fmt.Errorf("time budget must be >= 0, got %s", c.TimeBudget)
	}
	if c.StagnationRounds < 0 {
		return fmt.Errorf("stagnation rounds must be >= 0, got %d", c.StagnationRounds)
	}
	if c.TabuSize < 0 {
		return fmt.Errorf("tabu size must be >= 0, got %d", c.TabuSize)
	}
	if _, err := tuning.PercentScheduleFromConfig(c.BulkSchedule, 0); err != nil {
		return err
	}
	positive := false
	for name, w := range c.StrategyWeights {
		if w < 0 {
			return fmt.Errorf("strategy weight must be >= 0: %s=%v", name, w)
		}
		if w > 0 {
			positive = true
		}
	}
	if len(c.StrategyWeights) > 0 && !positive {
		return errors.New("at least one strategy needs a positive weight")
	}
	return nil
}
