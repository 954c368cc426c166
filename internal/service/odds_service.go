package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/warroom/internal/logger"
	"github.com/freeeve/warroom/internal/repository"
	"github.com/freeeve/warroom/pkg/battle"
	"github.com/freeeve/warroom/pkg/odds"
)

var (
	ErrInvalidRequest = errors.New("invalid battle request")
	ErrNoAccess       = errors.New("no access to this game")
	ErrCalcNotFound   = errors.New("calculation not found")
	ErrUnknownUnit    = errors.New("unit not in game")
)

// OddsOptions configures an OddsService.
type OddsOptions struct {
	Workers     int
	DefaultRuns int
	MaxRuns     int
	// Seed makes calculations reproducible. Adjudication ignores it.
	Seed        int64
	Planner     odds.PlannerConfig
}

// UnitRef names a unit in a request. A ref with an ID present in the game
// is that unit; otherwise Type builds a hypothetical one. Damage and
// Amphibious, when set, override the stored values for the calculation.
type UnitRef struct {
	ID         string        `json:"id,omitempty"`
	Type       string        `json:"type,omitempty"`
	Owner      battle.Player `json:"owner,omitempty"`
	Damage     *int          `json:"damage,omitempty"`
	Amphibious *bool         `json:"amphibious,omitempty"`
}

// DecisionOptions are the headless answers both sides give during a battle.
type DecisionOptions struct {
	KeepOneLandUnit        bool `json:"keep_one_land_unit"`
	RetreatAfterRound      int  `json:"retreat_after_round"`
	RetreatWhenUnitsLeft   int  `json:"retreat_when_units_left"`
	RetreatWhenOnlyAirLeft bool `json:"retreat_when_only_air_left"`
	SubmergeSubs           bool `json:"submerge_subs"`
}

func (o DecisionOptions) deciders() (attacker, defender battle.HeadlessDecider) {
	attacker = battle.HeadlessDecider{
		KeepOneLandUnit:        o.KeepOneLandUnit,
		RetreatAfterRound:      o.RetreatAfterRound,
		RetreatWhenUnitsLeft:   o.RetreatWhenUnitsLeft,
		RetreatWhenOnlyAirLeft: o.RetreatWhenOnlyAirLeft,
	}
	defender = battle.HeadlessDecider{SubmergeSubs: o.SubmergeSubs}
	return attacker, defender
}

// BattleRequest describes a battle in a game, for odds or adjudication.
type BattleRequest struct {
	Territory      string          `json:"territory"`
	Attacker       battle.Player   `json:"attacker"`
	Defender       battle.Player   `json:"defender"`
	Attacking      []UnitRef       `json:"attacking"`
	Defending      []UnitRef       `json:"defending"`
	Bombarding     []UnitRef       `json:"bombarding,omitempty"`
	RequireCapture bool            `json:"require_capture"`
	RetreatTo      []string        `json:"retreat_to,omitempty"`
	Runs           int             `json:"runs,omitempty"`
	Options        DecisionOptions `json:"options"`
}

func (r BattleRequest) validate() error {
	switch {
	case r.Territory == "":
		return fmt.Errorf("%w: territory is required", ErrInvalidRequest)
	case r.Attacker == "" || r.Defender == "":
		return fmt.Errorf("%w: attacker and defender are required", ErrInvalidRequest)
	case r.Attacker == r.Defender:
		return fmt.Errorf("%w: attacker and defender must differ", ErrInvalidRequest)
	}
	return nil
}

// OddsResult is the response to an odds request.
type OddsResult struct {
	CalcID string `json:"calc_id"`
	GameID string `json:"game_id"`
	odds.Summary
}

// ProgressEvent is broadcast while a calculation runs.
type ProgressEvent struct {
	CalcID string `json:"calc_id"`
	Done   int    `json:"done"`
	Total  int    `json:"total"`
}

type running struct {
	calc   *odds.Calculator
	gameID string
	userID string
}

// OddsService answers odds questions about live games and adjudicates
// battles against their state.
type OddsService struct {
	loader      stateLoader
	broadcaster Broadcaster
	opts        OddsOptions

	mu      sync.Mutex
	running map[string]*running
	// locks serializes adjudication per game.
	locks sync.Map
}

// NewOddsService creates an OddsService. Units in stored states are
// resolved against catalog.
func NewOddsService(states repository.StateRepository, cache repository.StateCache, catalog *battle.Catalog, broadcaster Broadcaster, opts OddsOptions) *OddsService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	if opts.DefaultRuns < 1 {
		opts.DefaultRuns = 1000
	}
	if opts.MaxRuns < opts.DefaultRuns {
		opts.MaxRuns = opts.DefaultRuns
	}
	return &OddsService{
		loader:      stateLoader{states: states, cache: cache, catalog: catalog},
		broadcaster: broadcaster,
		opts:        opts,
		running:     make(map[string]*running),
	}
}

// Calculate estimates the odds of a battle in gameID. The game's state is
// read once; nothing is written back. Progress is broadcast to the game's
// subscribers under the returned calc ID, which Cancel accepts.
func (s *OddsService) Calculate(ctx context.Context, gameID, userID string, req BattleRequest) (*OddsResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	runs := req.Runs
	if runs == 0 {
		runs = s.opts.DefaultRuns
	}
	if runs < 0 {
		return nil, fmt.Errorf("%w: got %d", odds.ErrInvalidRunCount, runs)
	}
	runs = min(runs, s.opts.MaxRuns)

	gd, err := s.loader.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	oreq, err := toOddsRequest(gd, req, runs)
	if err != nil {
		return nil, err
	}

	calcID := uuid.NewString()
	l := logger.ForRequest(ctx).With().Str("gameId", gameID).Str("calcId", calcID).Logger()
	cfg := odds.Config{
		Workers:          s.opts.Workers,
		MinRunsPerWorker: odds.DefaultConfig().MinRunsPerWorker,
		Seed:             s.opts.Seed,
		Planner:          s.opts.Planner,
		Log:              l,
	}
	cfg.Attacker, cfg.Defender = req.Options.deciders()
	step := max(1, runs/20)
	cfg.OnProgress = func(done, total int) {
		if done%step == 0 || done == total {
			s.broadcaster.BroadcastGameEvent(gameID, EventOddsProgress, ProgressEvent{CalcID: calcID, Done: done, Total: total})
		}
	}
	calc := odds.NewCalculator(battle.NewStore(gd), cfg)

	s.mu.Lock()
	s.running[calcID] = &running{calc: calc, gameID: gameID, userID: userID}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, calcID)
		s.mu.Unlock()
	}()
	s.broadcaster.BroadcastGameEvent(gameID, EventOddsProgress, ProgressEvent{CalcID: calcID, Total: runs})

	res, err := calc.Calculate(ctx, oreq)
	if err != nil {
		return nil, err
	}
	out := &OddsResult{CalcID: calcID, GameID: gameID, Summary: res.Summary()}
	s.broadcaster.BroadcastGameEvent(gameID, EventOddsFinished, out)
	l.Info().
		Int("runs", out.Runs).
		Bool("cancelled", out.Cancelled).
		Float64("attackerWin", out.AttackerWin).
		Msg("Odds calculated")
	return out, nil
}

// Cancel stops a running calculation started by userID. The caller of
// Calculate receives the runs completed so far.
func (s *OddsService) Cancel(calcID, userID string) error {
	s.mu.Lock()
	r, ok := s.running[calcID]
	s.mu.Unlock()
	if !ok || r.userID != userID {
		return ErrCalcNotFound
	}
	r.calc.Cancel()
	log.Info().Str("calcId", calcID).Str("gameId", r.gameID).Msg("Odds calculation cancelled")
	return nil
}

// Running returns the number of calculations in flight.
func (s *OddsService) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// BattleResult is the outcome of an adjudicated battle.
type BattleResult struct {
	GameID    string              `json:"game_id"`
	Outcome   battle.Outcome      `json:"outcome"`
	Attacking []battle.UnitRecord `json:"attacking_left"`
	Defending []battle.UnitRecord `json:"defending_left"`
}

// Adjudicate fights a battle on the live state of gameID and stores the
// result. Only units present in the game may take part; attacking units
// standing elsewhere move into the territory first.
func (s *OddsService) Adjudicate(ctx context.Context, gameID string, req BattleRequest) (*BattleResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	mu, _ := s.locks.LoadOrStore(gameID, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	gd, err := s.loader.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	t, err := gd.Territory(req.Territory)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	index := gd.UnitIndex()
	seen := make(map[string]bool)
	resolve := func(refs []UnitRef) ([]*battle.Unit, error) {
		out := make([]*battle.Unit, 0, len(refs))
		for _, ref := range refs {
			loc, ok := index[ref.ID]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, ref.ID)
			}
			if seen[ref.ID] {
				return nil, fmt.Errorf("%w: %q", odds.ErrDuplicateUnit, ref.ID)
			}
			seen[ref.ID] = true
			out = append(out, loc.Unit)
		}
		return out, nil
	}
	p := battle.Participants{
		Territory:      t.Name,
		Attacker:       req.Attacker,
		Defender:       req.Defender,
		RequireCapture: req.RequireCapture,
		RetreatTo:      req.RetreatTo,
	}
	if p.Attacking, err = resolve(req.Attacking); err != nil {
		return nil, err
	}
	if p.Defending, err = resolve(req.Defending); err != nil {
		return nil, err
	}
	if p.Bombarding, err = resolve(req.Bombarding); err != nil {
		return nil, err
	}

	changes := battle.NewChangeLog(gd)
	if moves := moveIn(index, t.Name, append(append([]*battle.Unit(nil), p.Attacking...), p.Defending...)); len(moves) > 0 {
		if err := changes.Perform(moves); err != nil {
			return nil, fmt.Errorf("move units into %s: %w", t.Name, err)
		}
	}

	// Live dice never follow the odds seed.
	eng := battle.NewEngine(gd.Rules, battle.NewRandomSource(rand.Int64()))
	atk, dfd := req.Options.deciders()
	eng.Attacker, eng.Defender = atk, dfd
	eng.KeepLog = true
	eng.Log = logger.ForRequest(ctx).With().Str("gameId", gameID).Logger()
	out, err := eng.Fight(changes, p)
	if err != nil {
		if rerr := changes.Rollback(); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		return nil, fmt.Errorf("fight: %w", err)
	}
	changes.Commit()

	if err := s.loader.save(ctx, gameID, gd); err != nil {
		return nil, err
	}

	res := &BattleResult{GameID: gameID, Outcome: out}
	for i := range out.Attacking {
		res.Attacking = append(res.Attacking, out.Attacking[i].Record())
	}
	for i := range out.Defending {
		res.Defending = append(res.Defending, out.Defending[i].Record())
	}
	s.broadcaster.BroadcastGameEvent(gameID, EventBattleResolved, res)
	log.Info().
		Str("gameId", gameID).
		Str("territory", t.Name).
		Stringer("winner", out.Winner).
		Int("rounds", out.Rounds).
		Msg("Battle adjudicated")
	return res, nil
}

// moveIn returns the changes moving units standing outside territory into
// it, grouped by origin in name order.
func moveIn(index map[string]battle.UnitLocation, territory string, units []*battle.Unit) battle.Composite {
	origins := make(map[string][]*battle.Unit)
	for _, u := range units {
		if loc := index[u.ID]; loc.Territory != territory {
			origins[loc.Territory] = append(origins[loc.Territory], u)
		}
	}
	names := make([]string, 0, len(origins))
	for n := range origins {
		names = append(names, n)
	}
	sort.Strings(names)
	var moves battle.Composite
	for _, n := range names {
		moves = append(moves, battle.MoveUnits(n, territory, origins[n]))
	}
	return moves
}

// toOddsRequest resolves refs against gd. Known IDs become copies of the
// stored units; the rest must name a unit type.
func toOddsRequest(gd *battle.GameData, req BattleRequest, runs int) (odds.Request, error) {
	index := gd.UnitIndex()
	convert := func(refs []UnitRef, side battle.Player) ([]battle.Unit, error) {
		out := make([]battle.Unit, 0, len(refs))
		for _, ref := range refs {
			var u battle.Unit
			if loc, ok := index[ref.ID]; ok && ref.ID != "" {
				u = *loc.Unit
			} else {
				if ref.Type == "" {
					return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, ref.ID)
				}
				owner := ref.Owner
				if owner == "" {
					owner = side
				}
				rec := battle.UnitRecord{ID: ref.ID, Type: ref.Type, Owner: owner}
				var err error
				if u, err = rec.Unit(gd.Catalog); err != nil {
					return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
				}
			}
			if ref.Damage != nil {
				if *ref.Damage < 0 || *ref.Damage >= u.Type.MaxHits() {
					return nil, fmt.Errorf("%w: damage %d out of range for %s", ErrInvalidRequest, *ref.Damage, u.Type.Name)
				}
				u.Damage = *ref.Damage
			}
			if ref.Amphibious != nil {
				u.Amphibious = *ref.Amphibious
			}
			out = append(out, u)
		}
		return out, nil
	}

	oreq := odds.Request{
		Territory:      req.Territory,
		Attacker:       req.Attacker,
		Defender:       req.Defender,
		RequireCapture: req.RequireCapture,
		RetreatTo:      req.RetreatTo,
		Runs:           runs,
	}
	var err error
	if oreq.Attacking, err = convert(req.Attacking, req.Attacker); err != nil {
		return oreq, err
	}
	if oreq.Defending, err = convert(req.Defending, req.Defender); err != nil {
		return oreq, err
	}
	if oreq.Bombarding, err = convert(req.Bombarding, req.Attacker); err != nil {
		return oreq, err
	}
	return oreq, nil
}
