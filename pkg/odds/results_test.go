package odds

import (
	"math"
	"testing"

	"github.com/freeeve/warroom/pkg/battle"
)

func outcome(w battle.Winner, attLeft, defLeft, rounds, attLost, defLost int) battle.Outcome {
	return battle.Outcome{
		Winner:          w,
		Attacking:       make([]battle.Unit, attLeft),
		Defending:       make([]battle.Unit, defLeft),
		Rounds:          rounds,
		AttackerTUVLost: attLost,
		DefenderTUVLost: defLost,
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAggregateResults_Accessors(t *testing.T) {
	var r AggregateResults
	r.Add(outcome(battle.Attacker, 3, 0, 2, 3, 6))
	r.Add(outcome(battle.Attacker, 1, 0, 4, 9, 6))
	r.Add(outcome(battle.Defender, 0, 2, 3, 12, 0))
	r.Add(outcome(battle.Draw, 0, 0, 5, 12, 6))

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"attacker win", r.AttackerWinFraction(), 0.5},
		{"defender win", r.DefenderWinFraction(), 0.25},
		{"draw", r.DrawFraction(), 0.25},
		{"attacking left", r.AvgAttackingUnitsLeft(), 1},
		{"defending left", r.AvgDefendingUnitsLeft(), 0.5},
		{"attacking left on win", r.AvgAttackingUnitsLeftWhenAttackerWins(), 2},
		{"defending left on defender win", r.AvgDefendingUnitsLeftWhenDefenderWins(), 2},
		{"rounds", r.AvgRounds(), 3.5},
		{"attacker tuv lost", r.AvgAttackerTUVLost(), 9},
		{"defender tuv lost", r.AvgDefenderTUVLost(), 4.5},
		{"tuv swing", r.AvgTUVSwing(), -4.5},
	}
	for _, c := range checks {
		if !near(c.got, c.want) {
			t.Errorf("%s: got %v, want %v", c.name, c.got, c.want)
		}
	}
	if r.RunCount() != 4 {
		t.Errorf("expected 4 runs, got %d", r.RunCount())
	}
}

func TestAggregateResults_Empty(t *testing.T) {
	var r AggregateResults
	if r.AttackerWinFraction() != 0 || r.AvgAttackingUnitsLeft() != 0 || r.AvgAttackingUnitsLeftWhenAttackerWins() != 0 {
		t.Error("empty results should report zeros")
	}
	s := r.Summary()
	if s.Runs != 0 {
		t.Errorf("expected 0 runs in summary, got %d", s.Runs)
	}
}

func TestAggregateResults_MergeOrderIndependent(t *testing.T) {
	a, b := &AggregateResults{}, &AggregateResults{}
	a.Add(outcome(battle.Attacker, 2, 0, 1, 0, 3))
	a.Add(outcome(battle.Defender, 0, 1, 2, 6, 3))
	b.Add(outcome(battle.Draw, 0, 0, 3, 3, 3))

	ab, ba := &AggregateResults{}, &AggregateResults{}
	ab.Merge(a)
	ab.Merge(b)
	ba.Merge(b)
	ba.Merge(a)
	ab.Merge(nil)

	if ab.Summary() != ba.Summary() {
		t.Errorf("merge order changed summary:\n%+v\n%+v", ab.Summary(), ba.Summary())
	}
	if ab.RunCount() != 3 {
		t.Errorf("expected 3 merged runs, got %d", ab.RunCount())
	}
}

func TestAggregateResults_OutcomesIsCopy(t *testing.T) {
	var r AggregateResults
	r.Add(outcome(battle.Attacker, 1, 0, 1, 0, 3))
	got := r.Outcomes()
	got[0].Winner = battle.Defender
	if r.AttackerWinFraction() != 1 {
		t.Error("mutating Outcomes() result changed the aggregate")
	}
}
