package tuning

import "fmt"

// PercentSchedule yields the share of edges a bulk replacement removes at a
// given iteration. horizon is the planned iteration count, 0 if unknown.
type PercentSchedule interface {
	Name() string
	Percent(basePercent float64, iteration, horizon int) float64
}

type FixedPercentSchedule struct{}

func (FixedPercentSchedule) Name() string { return "fixed" }

func (FixedPercentSchedule) Percent(basePercent float64, iteration, horizon int) float64 {
	return satFloat(basePercent, 0, 100)
}

// LinearDecayPercentSchedule shrinks the percentage from basePercent towards
// MinPercent over the horizon.
type LinearDecayPercentSchedule struct {
	MinPercent float64
}

func (LinearDecayPercentSchedule) Name() string { return "linear_decay" }

func (p LinearDecayPercentSchedule) Percent(basePercent float64, iteration, horizon int) float64 {
	if basePercent <= 0 {
		return 0
	}
	if horizon <= 0 {
		return satFloat(basePercent, 0, 100)
	}
	remaining := horizon - iteration
	if remaining < 0 {
		remaining = 0
	}
	percent := basePercent * float64(remaining) / float64(horizon)
	if percent < p.MinPercent {
		percent = p.MinPercent
	}
	return satFloat(percent, 0, 100)
}

// CyclicPercentSchedule is a sawtooth: it ramps from MinPercent up to
// basePercent every Period iterations and drops back.
type CyclicPercentSchedule struct {
	Period     int
	MinPercent float64
}

func (CyclicPercentSchedule) Name() string { return "cyclic" }

func (p CyclicPercentSchedule) Percent(basePercent float64, iteration, horizon int) float64 {
	if basePercent <= 0 {
		return 0
	}
	period := p.Period
	if period < 2 {
		period = 2
	}
	phase := iteration % period
	if phase < 0 {
		phase += period
	}
	low := p.MinPercent
	if low > basePercent {
		low = basePercent
	}
	percent := low + (basePercent-low)*float64(phase)/float64(period-1)
	return satFloat(percent, 0, 100)
}

func PercentScheduleFromConfig(name string, param float64) (PercentSchedule, error) {
	switch NormalizePercentScheduleName(name) {
	case "fixed":
		return FixedPercentSchedule{}, nil
	case "linear_decay":
		min := param
		if min <= 0 {
			min = 1
		}
		return LinearDecayPercentSchedule{MinPercent: min}, nil
	case "cyclic":
		period := int(param)
		if period < 2 {
			period = 64
		}
		return CyclicPercentSchedule{Period: period, MinPercent: 1}, nil
	default:
		return nil, fmt.Errorf("unsupported bulk schedule: %s", name)
	}
}

func NormalizePercentScheduleName(name string) string {
	switch name {
	case "", "fixed", "const":
		return "fixed"
	case "linear_decay", "decay":
		return "linear_decay"
	case "cyclic", "sawtooth":
		return "cyclic"
	default:
		return name
	}
}

func satFloat(v, minV, maxV float64) float64 {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}
