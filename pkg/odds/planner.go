package odds

import "math"

// PlannerConfig holds the run-count reduction thresholds.
type PlannerConfig struct {
	// SkewThreshold is the strength ratio above which fewer runs are used.
	// Runs scale by SkewThreshold/ratio beyond it.
	SkewThreshold float64 `yaml:"skew_threshold" json:"skew_threshold"`
	// LowLuckFactor multiplies the run count under low-luck dice.
	LowLuckFactor float64 `yaml:"low_luck_factor" json:"low_luck_factor"`
	// MinRuns is the floor. Values below 1 are treated as 1.
	MinRuns int `yaml:"min_runs" json:"min_runs"`
}

// DefaultPlannerConfig returns the built-in thresholds.
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{SkewThreshold: 2, LowLuckFactor: 0.5, MinRuns: 1}
}

// Planner scales a requested run count down for lopsided or low-variance
// battles. It never raises the count.
type Planner struct {
	cfg PlannerConfig
}

func NewPlanner(cfg PlannerConfig) Planner {
	if cfg.SkewThreshold < 1 {
		cfg.SkewThreshold = DefaultPlannerConfig().SkewThreshold
	}
	if cfg.LowLuckFactor <= 0 || cfg.LowLuckFactor > 1 {
		cfg.LowLuckFactor = 1
	}
	if cfg.MinRuns < 1 {
		cfg.MinRuns = 1
	}
	return Planner{cfg: cfg}
}

// Plan returns the number of runs to execute.
func (p Planner) Plan(requested int, lowLuck bool, attack, defense float64) int {
	if requested < 1 {
		return 0
	}
	n := float64(requested)
	if r := strengthRatio(attack, defense); r > p.cfg.SkewThreshold {
		n *= p.cfg.SkewThreshold / r
	}
	if lowLuck {
		n *= p.cfg.LowLuckFactor
	}
	runs := int(math.Floor(n))
	if runs < p.cfg.MinRuns {
		runs = p.cfg.MinRuns
	}
	return min(runs, requested)
}

// strengthRatio is stronger over weaker. A side with no strength against one
// with some is infinitely outmatched; two empty sides are even.
func strengthRatio(a, b float64) float64 {
	a, b = max(a, 0), max(b, 0)
	hi, lo := max(a, b), min(a, b)
	switch {
	case hi == 0:
		return 1
	case lo == 0:
		return math.Inf(1)
	}
	return hi / lo
}
