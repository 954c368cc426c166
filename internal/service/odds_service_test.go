package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/freeeve/warroom/internal/repository"
	"github.com/freeeve/warroom/pkg/battle"
	"github.com/freeeve/warroom/pkg/odds"
)

const gameID = "game-1"

// sampleState has three red infantry at home and two blue infantry on the
// plains next door.
func sampleState() battle.StateRecord {
	rules, _ := battle.DefaultRuleset()
	return battle.StateRecord{
		Rules: rules,
		Territories: []battle.TerritoryRecord{
			{Name: "home", Owner: "red", Units: []battle.UnitRecord{
				{ID: "r1", Type: "infantry", Owner: "red"},
				{ID: "r2", Type: "infantry", Owner: "red"},
				{ID: "r3", Type: "infantry", Owner: "red"},
			}},
			{Name: "plains", Owner: "blue", Units: []battle.UnitRecord{
				{ID: "b1", Type: "infantry", Owner: "blue"},
				{ID: "b2", Type: "infantry", Owner: "blue"},
			}},
		},
	}
}

func sampleRequest() BattleRequest {
	return BattleRequest{
		Territory:      "plains",
		Attacker:       "red",
		Defender:       "blue",
		Attacking:      []UnitRef{{ID: "r1"}, {ID: "r2"}, {ID: "r3"}},
		Defending:      []UnitRef{{ID: "b1"}, {ID: "b2"}},
		RequireCapture: true,
		Runs:           400,
	}
}

type fixture struct {
	repo  *mockStateRepo
	cache *mockStateCache
	hub   *recordingBroadcaster
	svc   *OddsService
}

func newFixture() *fixture {
	_, catalog := battle.DefaultRuleset()
	f := &fixture{repo: newMockStateRepo(), cache: newMockStateCache(), hub: &recordingBroadcaster{}}
	f.repo.states[gameID] = sampleState()
	f.svc = NewOddsService(f.repo, f.cache, catalog, f.hub, OddsOptions{
		Workers:     2,
		DefaultRuns: 100,
		MaxRuns:     1000,
		Seed:        42,
		Planner:     odds.DefaultPlannerConfig(),
	})
	return f
}

func TestCalculateLoadsStateAndFillsCache(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Calculate(context.Background(), gameID, "user-1", sampleRequest())
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.Runs != 400 || res.Cancelled {
		t.Fatalf("expected 400 completed runs, got %+v", res.Summary)
	}
	if sum := res.AttackerWin + res.DefenderWin + res.Draw; sum < 0.999 || sum > 1.001 {
		t.Errorf("fractions sum to %v", sum)
	}
	if res.CalcID == "" || res.GameID != gameID {
		t.Errorf("unexpected ids %q %q", res.CalcID, res.GameID)
	}
	if f.cache.states[gameID] == nil {
		t.Error("expected state to be cached after a database read")
	}
	if f.repo.saves != 0 {
		t.Error("odds must not write state")
	}

	// A second request is served from the cache.
	if _, err := f.svc.Calculate(context.Background(), gameID, "user-1", sampleRequest()); err != nil {
		t.Fatalf("second Calculate: %v", err)
	}
	if f.repo.loads != 1 {
		t.Errorf("expected 1 database load, got %d", f.repo.loads)
	}
}

func TestCalculateDefaultAndMaxRuns(t *testing.T) {
	tests := []struct {
		runs int
		want int
	}{
		{0, 100},
		{50, 50},
		{5000, 1000},
	}
	for _, tt := range tests {
		f := newFixture()
		req := sampleRequest()
		req.Runs = tt.runs
		res, err := f.svc.Calculate(context.Background(), gameID, "u", req)
		if err != nil {
			t.Fatalf("runs=%d: %v", tt.runs, err)
		}
		if res.Requested != tt.want {
			t.Errorf("runs=%d: expected %d requested, got %d", tt.runs, tt.want, res.Requested)
		}
	}
}

func TestCalculateHypotheticalUnits(t *testing.T) {
	f := newFixture()
	req := sampleRequest()
	req.Attacking = []UnitRef{{Type: "armour"}, {Type: "armour"}, {Type: "armour"}, {Type: "fighter"}}
	req.Defending = append(req.Defending, UnitRef{Type: "artillery"})
	req.Runs = 50

	res, err := f.svc.Calculate(context.Background(), gameID, "u", req)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.Runs == 0 {
		t.Fatal("expected completed runs")
	}
	if _, ok := f.repo.states[gameID]; !ok || f.repo.saves != 0 {
		t.Error("hypothetical units must not reach stored state")
	}
}

func TestCalculateErrors(t *testing.T) {
	bad := 5
	tests := []struct {
		name   string
		mutate func(*BattleRequest)
		game   string
		want   error
	}{
		{"missing territory", func(r *BattleRequest) { r.Territory = "" }, gameID, ErrInvalidRequest},
		{"same sides", func(r *BattleRequest) { r.Defender = "red" }, gameID, ErrInvalidRequest},
		{"unknown id", func(r *BattleRequest) { r.Attacking[0] = UnitRef{ID: "ghost"} }, gameID, ErrUnknownUnit},
		{"unknown type", func(r *BattleRequest) { r.Attacking[0] = UnitRef{Type: "zeppelin"} }, gameID, battle.ErrUnknownUnitType},
		{"damage out of range", func(r *BattleRequest) { r.Attacking[0].Damage = &bad }, gameID, ErrInvalidRequest},
		{"negative runs", func(r *BattleRequest) { r.Runs = -3 }, gameID, odds.ErrInvalidRunCount},
		{"unknown territory", func(r *BattleRequest) { r.Territory = "atlantis" }, gameID, battle.ErrUnknownTerritory},
		{"duplicate unit", func(r *BattleRequest) { r.Defending[1] = UnitRef{ID: "b1"} }, gameID, odds.ErrDuplicateUnit},
		{"missing game", func(*BattleRequest) {}, "nope", repository.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := sampleRequest()
			tt.mutate(&req)
			_, err := f.svc.Calculate(context.Background(), tt.game, "u", req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCalculateBroadcastsProgress(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Calculate(context.Background(), gameID, "u", sampleRequest())
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	progress := f.hub.ofKind(EventOddsProgress)
	if len(progress) < 2 {
		t.Fatalf("expected several progress events, got %d", len(progress))
	}
	first := progress[0].data.(ProgressEvent)
	if first.Done != 0 || first.CalcID != res.CalcID {
		t.Errorf("unexpected first progress %+v", first)
	}
	sawTotal := false
	for _, e := range progress {
		p := e.data.(ProgressEvent)
		if p.Done > p.Total {
			t.Errorf("progress beyond total: %+v", p)
		}
		if p.Done == res.Runs {
			sawTotal = true
		}
	}
	if !sawTotal {
		t.Error("expected a progress event for the last run")
	}
	finished := f.hub.ofKind(EventOddsFinished)
	if len(finished) != 1 || finished[0].data.(*OddsResult).CalcID != res.CalcID {
		t.Fatalf("expected one finished event for %s, got %+v", res.CalcID, finished)
	}
	if f.svc.Running() != 0 {
		t.Errorf("expected no running calculations, got %d", f.svc.Running())
	}
}

func TestCancel(t *testing.T) {
	f := newFixture()
	var wrongUser error
	f.hub.onEvent = func(e event) {
		p, ok := e.data.(ProgressEvent)
		if !ok || p.Done != 0 {
			return
		}
		wrongUser = f.svc.Cancel(p.CalcID, "someone-else")
		if err := f.svc.Cancel(p.CalcID, "owner"); err != nil {
			t.Errorf("Cancel: %v", err)
		}
	}

	res, err := f.svc.Calculate(context.Background(), gameID, "owner", sampleRequest())
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !errors.Is(wrongUser, ErrCalcNotFound) {
		t.Errorf("expected ErrCalcNotFound for another user, got %v", wrongUser)
	}
	if !res.Cancelled || res.Runs != 0 {
		t.Errorf("expected a cancelled empty result, got %+v", res.Summary)
	}
	if err := f.svc.Cancel(res.CalcID, "owner"); !errors.Is(err, ErrCalcNotFound) {
		t.Errorf("finished calculation should be gone, got %v", err)
	}
}

func TestAdjudicateCommitsAndSaves(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Adjudicate(context.Background(), gameID, sampleRequest())
	if err != nil {
		t.Fatalf("Adjudicate: %v", err)
	}
	out := res.Outcome
	if out.Rounds < 1 {
		t.Fatalf("expected at least one round, got %+v", out)
	}
	if len(out.Log) != out.Rounds {
		t.Errorf("expected %d logged rounds, got %d", out.Rounds, len(out.Log))
	}
	if len(res.Attacking) != out.AttackingLeft() || len(res.Defending) != out.DefendingLeft() {
		t.Errorf("survivor records do not match outcome")
	}
	if f.repo.saves != 1 || f.cache.states[gameID] == nil {
		t.Fatalf("expected state saved to both stores, saves=%d", f.repo.saves)
	}

	_, catalog := battle.DefaultRuleset()
	gd, err := f.repo.states[gameID].GameData(catalog)
	if err != nil {
		t.Fatalf("saved state: %v", err)
	}
	if n := len(gd.Territories["home"].Units); n != 0 {
		t.Errorf("attackers should have left home, %d remain", n)
	}
	plains := gd.Territories["plains"]
	if len(plains.Units) != out.AttackingLeft()+out.DefendingLeft() {
		t.Errorf("expected %d units on the plains, got %d", out.AttackingLeft()+out.DefendingLeft(), len(plains.Units))
	}
	if out.Captured != (plains.Owner == "red") {
		t.Errorf("captured=%v but owner is %s", out.Captured, plains.Owner)
	}
	if got := f.hub.ofKind(EventBattleResolved); len(got) != 1 {
		t.Errorf("expected one battle_resolved event, got %d", len(got))
	}
}

func TestAdjudicateRejectsUnknownUnits(t *testing.T) {
	f := newFixture()
	req := sampleRequest()
	req.Attacking = append(req.Attacking, UnitRef{Type: "armour"})

	if _, err := f.svc.Adjudicate(context.Background(), gameID, req); !errors.Is(err, ErrUnknownUnit) {
		t.Fatalf("expected ErrUnknownUnit, got %v", err)
	}
	if f.repo.saves != 0 {
		t.Error("failed adjudication must not save")
	}
}

func TestAdjudicateRejectsDuplicateUnits(t *testing.T) {
	tests := []struct {
		name string
		edit func(*BattleRequest)
	}{
		{"listed twice", func(r *BattleRequest) { r.Attacking = append(r.Attacking, UnitRef{ID: "r1"}) }},
		{"on both sides", func(r *BattleRequest) { r.Defending = append(r.Defending, UnitRef{ID: "r2"}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := sampleRequest()
			tt.edit(&req)
			if _, err := f.svc.Adjudicate(context.Background(), gameID, req); !errors.Is(err, odds.ErrDuplicateUnit) {
				t.Fatalf("expected ErrDuplicateUnit, got %v", err)
			}
			if f.repo.saves != 0 {
				t.Error("failed adjudication must not save")
			}
		})
	}
}

func TestAdjudicateDiceIgnoreOddsSeed(t *testing.T) {
	var first []battle.RoundResult
	for i := range 5 {
		f := newFixture()
		res, err := f.svc.Adjudicate(context.Background(), gameID, sampleRequest())
		if err != nil {
			t.Fatalf("Adjudicate: %v", err)
		}
		if i == 0 {
			first = res.Outcome.Log
			continue
		}
		if !reflect.DeepEqual(res.Outcome.Log, first) {
			return
		}
	}
	t.Fatalf("five live battles under the same odds seed rolled identical dice: %+v", first)
}

func TestStateLoaderSurvivesCacheOutage(t *testing.T) {
	f := newFixture()
	f.cache.getErr = errCacheDown
	f.cache.setErr = errCacheDown

	if _, err := f.svc.Calculate(context.Background(), gameID, "u", sampleRequest()); err != nil {
		t.Fatalf("Calculate with cache down: %v", err)
	}
	if _, err := f.svc.Adjudicate(context.Background(), gameID, sampleRequest()); err != nil {
		t.Fatalf("Adjudicate with cache down: %v", err)
	}
	if len(f.cache.deleted) != 1 || f.cache.deleted[0] != gameID {
		t.Errorf("expected stale cache entry to be dropped, got %v", f.cache.deleted)
	}
}

func TestStateLoaderDiscardsCorruptCache(t *testing.T) {
	f := newFixture()
	f.cache.states[gameID] = []byte(`{"territories":[{"name":"x","units":[{"type":"unicorn","id":"u"}]}]}`)
	if _, err := f.svc.Calculate(context.Background(), gameID, "u", sampleRequest()); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if f.repo.loads != 1 {
		t.Errorf("expected fallback to database, loads=%d", f.repo.loads)
	}
}
