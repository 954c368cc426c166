package odds

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestPlanner_Plan(t *testing.T) {
	p := NewPlanner(DefaultPlannerConfig())
	tests := []struct {
		name      string
		requested int
		lowLuck   bool
		attack    float64
		defense   float64
		want      int
	}{
		{"even", 1000, false, 10, 10, 1000},
		{"exactly two to one", 1000, false, 20, 10, 1000},
		{"four to one", 1000, false, 40, 10, 500},
		{"one to four", 1000, false, 10, 40, 500},
		{"low luck even", 1000, true, 10, 10, 500},
		{"low luck four to one", 1000, true, 40, 10, 250},
		{"defender empty", 1000, false, 10, 0, 1},
		{"both empty", 1000, false, 0, 0, 1000},
		{"floor of one", 3, true, 100, 1, 1},
		{"single run", 1, false, 10, 10, 1},
		{"invalid", 0, false, 10, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Plan(tt.requested, tt.lowLuck, tt.attack, tt.defense); got != tt.want {
				t.Errorf("Plan(%d, %v, %v, %v) = %d, want %d",
					tt.requested, tt.lowLuck, tt.attack, tt.defense, got, tt.want)
			}
		})
	}
}

func TestPlanner_ConfiguredThresholds(t *testing.T) {
	p := NewPlanner(PlannerConfig{SkewThreshold: 3, LowLuckFactor: 0.25, MinRuns: 10})
	if got := p.Plan(1000, false, 25, 10); got != 1000 {
		t.Errorf("2.5:1 under a 3:1 threshold should not scale, got %d", got)
	}
	if got := p.Plan(1000, false, 60, 10); got != 500 {
		t.Errorf("6:1 under a 3:1 threshold should halve, got %d", got)
	}
	if got := p.Plan(1000, true, 10, 10); got != 250 {
		t.Errorf("low luck factor 0.25 should quarter, got %d", got)
	}
	if got := p.Plan(1000, false, 1, 0); got != 10 {
		t.Errorf("expected MinRuns floor of 10, got %d", got)
	}
	if got := p.Plan(5, false, 1, 0); got != 5 {
		t.Errorf("MinRuns must not exceed the request, got %d", got)
	}
}

func TestPlanner_NeverIncreases(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := NewPlanner(DefaultPlannerConfig())
		requested := rapid.IntRange(1, 100000).Draw(rt, "requested")
		attack := rapid.Float64Range(0, 1000).Draw(rt, "attack")
		defense := rapid.Float64Range(0, 1000).Draw(rt, "defense")
		lowLuck := rapid.Bool().Draw(rt, "lowLuck")

		got := p.Plan(requested, lowLuck, attack, defense)
		if got > requested {
			rt.Fatalf("planned %d > requested %d", got, requested)
		}
		if got < 1 {
			rt.Fatalf("planned %d < 1", got)
		}
	})
}

func TestPlanner_ShrinksLopsidedBattles(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := NewPlanner(DefaultPlannerConfig())
		requested := rapid.IntRange(2, 100000).Draw(rt, "requested")
		weak := rapid.Float64Range(0.1, 100).Draw(rt, "weak")
		ratio := rapid.Float64Range(2.01, 50).Draw(rt, "ratio")
		attackerStronger := rapid.Bool().Draw(rt, "attackerStronger")

		attack, defense := weak*ratio, weak
		if !attackerStronger {
			attack, defense = defense, attack
		}
		if got := p.Plan(requested, false, attack, defense); got >= requested {
			rt.Fatalf("ratio %.2f: planned %d, want fewer than %d", ratio, got, requested)
		}
	})
}

func TestStrengthRatio(t *testing.T) {
	if r := strengthRatio(0, 5); !math.IsInf(r, 1) {
		t.Errorf("expected +Inf, got %v", r)
	}
	if r := strengthRatio(-3, -1); r != 1 {
		t.Errorf("negative strengths should count as empty, got %v", r)
	}
	if r := strengthRatio(3, 12); r != 4 {
		t.Errorf("expected 4, got %v", r)
	}
}
