package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	golfapi "graphgolf/pkg/graphgolf"
)

// runConfig is the YAML run configuration. Flags the user sets override it.
type runConfig struct {
	StrategyWeights   map[string]float64 `yaml:"strategy_weights"`
	EscapeProbability *float64           `yaml:"escape_probability"`
	EscapeRunLimit    *int               `yaml:"escape_run_limit"`
	StopAtLowerBound  bool               `yaml:"stop_at_lower_bound"`
	Iterations        int                `yaml:"iterations"`
	TimeBudget        string             `yaml:"time_budget"`
	Seed              int64              `yaml:"seed"`
	Workers           int                `yaml:"workers"`
	RoundLength       int                `yaml:"round_length"`
	StagnationRounds  *int               `yaml:"stagnation_rounds"`
	RetryLimit        int                `yaml:"retry_limit"`
	TabuSize          *int               `yaml:"tabu_size"`
	BulkSchedule      string             `yaml:"bulk_schedule"`
	BulkPercent       float64            `yaml:"bulk_percent"`
	AdaptiveWindow    int                `yaml:"adaptive_window"`
	Edges             string             `yaml:"edges"`
	OutDir            string             `yaml:"out_dir"`
}

func loadRunConfig(path string) (runConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return runConfig{}, err
	}
	var cfg runConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return runConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// strategyFlags maps weight flags to strategy names.
var strategyFlags = map[string]string{
	"w-random-relink":   "random_relink",
	"w-diameter-relink": "diameter_relink",
	"w-bulk-replace":    "bulk_replace",
}

// overrideFromFlags copies every flag the user set on the command line into
// cfg, leaving file values for the rest.
func overrideFromFlags(cfg *runConfig, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		if strategy, ok := strategyFlags[f.Name]; ok {
			var w float64
			if w, err = fs.GetFloat64(f.Name); err != nil {
				return
			}
			if cfg.StrategyWeights == nil {
				cfg.StrategyWeights = map[string]float64{}
			}
			cfg.StrategyWeights[strategy] = w
			return
		}
		switch f.Name {
		case "escape-probability":
			var p float64
			if p, err = fs.GetFloat64(f.Name); err == nil {
				cfg.EscapeProbability = &p
			}
		case "escape-run-limit":
			var n int
			if n, err = fs.GetInt(f.Name); err == nil {
				cfg.EscapeRunLimit = &n
			}
		case "stop-at-lower-bound":
			cfg.StopAtLowerBound, err = fs.GetBool(f.Name)
		case "iterations":
			cfg.Iterations, err = fs.GetInt(f.Name)
		case "time":
			var d time.Duration
			if d, err = fs.GetDuration(f.Name); err == nil {
				cfg.TimeBudget = d.String()
			}
		case "seed":
			cfg.Seed, err = fs.GetInt64(f.Name)
		case "workers":
			cfg.Workers, err = fs.GetInt(f.Name)
		case "round-length":
			cfg.RoundLength, err = fs.GetInt(f.Name)
		case "stagnation-rounds":
			var n int
			if n, err = fs.GetInt(f.Name); err == nil {
				cfg.StagnationRounds = &n
			}
		case "retry-limit":
			cfg.RetryLimit, err = fs.GetInt(f.Name)
		case "tabu-size":
			var n int
			if n, err = fs.GetInt(f.Name); err == nil {
				cfg.TabuSize = &n
			}
		case "bulk-schedule":
			cfg.BulkSchedule, err = fs.GetString(f.Name)
		case "bulk-percent":
			cfg.BulkPercent, err = fs.GetFloat64(f.Name)
		case "adaptive-window":
			cfg.AdaptiveWindow, err = fs.GetInt(f.Name)
		case "edges":
			cfg.Edges, err = fs.GetString(f.Name)
		case "out-dir":
			cfg.OutDir, err = fs.GetString(f.Name)
		}
	})
	return err
}

func (c runConfig) runRequest(order, degree int) (golfapi.RunRequest, error) {
	var budget time.Duration
	if c.TimeBudget != "" {
		d, err := time.ParseDuration(c.TimeBudget)
		if err != nil {
			return golfapi.RunRequest{}, fmt.Errorf("invalid time budget %q: %w", c.TimeBudget, err)
		}
		budget = d
	}
	if c.Iterations < 0 {
		return golfapi.RunRequest{}, fmt.Errorf("iterations must be >= 0")
	}
	if c.Workers < 0 {
		return golfapi.RunRequest{}, fmt.Errorf("workers must be >= 0")
	}
	return golfapi.RunRequest{
		Order:             order,
		Degree:            degree,
		Workers:           c.Workers,
		Seed:              c.Seed,
		EdgesPath:         c.Edges,
		OutDir:            c.OutDir,
		Iterations:        c.Iterations,
		TimeBudget:        budget,
		StrategyWeights:   c.StrategyWeights,
		EscapeProbability: c.EscapeProbability,
		EscapeRunLimit:    c.EscapeRunLimit,
		StopAtLowerBound:  c.StopAtLowerBound,
		RoundLength:       c.RoundLength,
		StagnationRounds:  c.StagnationRounds,
		RetryLimit:        c.RetryLimit,
		TabuSize:          c.TabuSize,
		BulkSchedule:      c.BulkSchedule,
		BulkPercent:       c.BulkPercent,
		AdaptiveWindow:    c.AdaptiveWindow,
	}, nil
}
