package odds

import (
	"context"
	"errors"
	"testing"

	"github.com/freeeve/warroom/pkg/battle"
)

// infantryBattle has a attacking red infantry at home and d defending blue
// infantry on the plains.
func infantryBattle(a, d int) (*battle.Store, Request) {
	gd := testWorld()
	att := place(gd, "home", "infantry", red, a)
	def := place(gd, "plains", "infantry", blue, d)
	return battle.NewStore(gd), Request{
		Territory: "plains",
		Attacker:  red,
		Defender:  blue,
		Attacking: battle.Values(att),
		Defending: battle.Values(def),
	}
}

func seeded(seed int64, workers int) Config {
	cfg := DefaultConfig()
	cfg.Seed = seed
	cfg.Workers = workers
	cfg.ExactRuns = true
	return cfg
}

func TestCalculate_InvalidRunCount(t *testing.T) {
	store, req := infantryBattle(1, 1)
	calc := NewCalculator(store, DefaultConfig())
	for _, n := range []int{0, -1, -1000} {
		req.Runs = n
		if _, err := calc.Calculate(context.Background(), req); !errors.Is(err, ErrInvalidRunCount) {
			t.Errorf("runs=%d: expected ErrInvalidRunCount, got %v", n, err)
		}
	}
}

func TestCalculate_ThreeInfantryVsTwo(t *testing.T) {
	store, req := infantryBattle(3, 2)
	req.Runs = 1000
	res, err := NewCalculator(store, seeded(20240601, 4)).Calculate(context.Background(), req)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.RunCount() != 1000 {
		t.Fatalf("expected 1000 runs, got %d", res.RunCount())
	}
	// Exact attacker win probability is about 0.517.
	if w := res.AttackerWinFraction(); w < 0.44 || w > 0.59 {
		t.Errorf("attacker win fraction %.3f outside [0.44, 0.59]", w)
	}
	sum := res.AttackerWinFraction() + res.DefenderWinFraction() + res.DrawFraction()
	if !near(sum, 1) {
		t.Errorf("fractions sum to %v", sum)
	}
	if res.Cancelled {
		t.Error("completed calculation marked cancelled")
	}
	if res.AvgAttackingUnitsLeftWhenAttackerWins() < 1 {
		t.Errorf("attacker wins must leave at least one unit, avg %v", res.AvgAttackingUnitsLeftWhenAttackerWins())
	}
}

func TestCalculate_Reproducible(t *testing.T) {
	run := func() Summary {
		store, req := infantryBattle(4, 3)
		req.Runs = 300
		res, err := NewCalculator(store, seeded(99, 3)).Calculate(context.Background(), req)
		if err != nil {
			t.Fatalf("Calculate: %v", err)
		}
		s := res.Summary()
		s.ElapsedMs = 0
		return s
	}
	a, b := run(), run()
	if a != b {
		t.Errorf("same seed gave different results:\n%+v\n%+v", a, b)
	}
}

func TestCalculate_Monotonic(t *testing.T) {
	prev := 2.0
	for _, d := range []int{1, 2, 3, 4} {
		store, req := infantryBattle(3, d)
		req.Runs = 600
		res, err := NewCalculator(store, seeded(7, 2)).Calculate(context.Background(), req)
		if err != nil {
			t.Fatalf("Calculate: %v", err)
		}
		w := res.AttackerWinFraction()
		if w > prev {
			t.Errorf("adding a defender raised attacker win fraction: %d defenders %.3f > %.3f", d, w, prev)
		}
		prev = w
	}
}

func TestCalculate_CancelAfterK(t *testing.T) {
	const k = 37
	store, req := infantryBattle(3, 2)
	req.Runs = 500

	var calc *Calculator
	cfg := seeded(5, 1)
	cfg.OnProgress = func(done, total int) {
		if done == k {
			calc.Cancel()
		}
	}
	calc = NewCalculator(store, cfg)
	res, err := calc.Calculate(context.Background(), req)
	if err != nil {
		t.Fatalf("cancellation is not an error, got %v", err)
	}
	if res.RunCount() != k {
		t.Fatalf("expected exactly %d outcomes, got %d", k, res.RunCount())
	}
	if !res.Cancelled {
		t.Error("partial result not marked cancelled")
	}
	if res.Planned != 500 || res.Requested != 500 {
		t.Errorf("unexpected planned/requested %d/%d", res.Planned, res.Requested)
	}
}

func TestCalculate_ContextCancelled(t *testing.T) {
	store, req := infantryBattle(3, 2)
	req.Runs = 100
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := NewCalculator(store, seeded(5, 2)).Calculate(ctx, req)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.RunCount() != 0 || !res.Cancelled {
		t.Errorf("expected empty cancelled result, got %d runs cancelled=%v", res.RunCount(), res.Cancelled)
	}
}

func TestCalculate_LeavesAuthoritativeStateAlone(t *testing.T) {
	store, req := infantryBattle(5, 3)
	req.Runs = 200
	req.RequireCapture = true
	before := stateKey(store.Snapshot())

	if _, err := NewCalculator(store, seeded(3, 4)).Calculate(context.Background(), req); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if after := stateKey(store.Snapshot()); after != before {
		t.Errorf("authoritative state changed:\nbefore:\n%s\nafter:\n%s", before, after)
	}
}

func TestCalculate_Degenerate(t *testing.T) {
	tests := []struct {
		name    string
		a, d    int
		capture bool
		want    battle.Winner
	}{
		{"no attackers", 0, 2, false, battle.Defender},
		{"no defenders", 2, 0, false, battle.Attacker},
		{"nobody", 0, 0, false, battle.Draw},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, req := infantryBattle(tt.a, tt.d)
			req.Runs = 20
			req.RequireCapture = tt.capture
			res, err := NewCalculator(store, seeded(1, 1)).Calculate(context.Background(), req)
			if err != nil {
				t.Fatalf("Calculate: %v", err)
			}
			for _, o := range res.Outcomes() {
				if o.Winner != tt.want {
					t.Fatalf("expected %v, got %v", tt.want, o.Winner)
				}
				if o.Rounds != 0 {
					t.Fatalf("expected no rounds, got %d", o.Rounds)
				}
			}
		})
	}
}

func TestCalculate_AirOnlyCannotCapture(t *testing.T) {
	gd := testWorld()
	fighters := place(gd, "home", "fighter", red, 2)
	req := Request{
		Territory:      "plains",
		Attacker:       red,
		Defender:       blue,
		Attacking:      battle.Values(fighters),
		RequireCapture: true,
		Runs:           10,
	}
	res, err := NewCalculator(battle.NewStore(gd), seeded(1, 1)).Calculate(context.Background(), req)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.DefenderWinFraction() != 1 {
		t.Errorf("air-only attack on an empty territory should fail to capture, defender win %.2f", res.DefenderWinFraction())
	}
}

func TestCalculate_PlannerReducesLopsided(t *testing.T) {
	store, req := infantryBattle(12, 1)
	req.Runs = 1000
	cfg := seeded(11, 2)
	cfg.ExactRuns = false
	res, err := NewCalculator(store, cfg).Calculate(context.Background(), req)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.Planned >= 1000 || res.RunCount() != res.Planned {
		t.Errorf("expected fewer planned runs all completed, planned %d ran %d", res.Planned, res.RunCount())
	}
	if res.Cancelled {
		t.Error("planned reduction is not cancellation")
	}
}

func TestCalculate_ProgressReachesTotal(t *testing.T) {
	store, req := infantryBattle(2, 2)
	req.Runs = 150
	cfg := seeded(8, 3)
	cfg.MinRunsPerWorker = 10
	seen := make(chan int, 150)
	cfg.OnProgress = func(done, total int) {
		if total != 150 {
			t.Errorf("expected total 150, got %d", total)
		}
		seen <- done
	}
	if _, err := NewCalculator(store, cfg).Calculate(context.Background(), req); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	close(seen)
	maxDone := 0
	for d := range seen {
		maxDone = max(maxDone, d)
	}
	if maxDone != 150 {
		t.Errorf("expected final progress 150, got %d", maxDone)
	}
}
