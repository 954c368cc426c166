package battle

import (
	"time"

	"github.com/rs/zerolog"
)

// Phase is a state of the combat state machine.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseAAFire
	PhaseBombard
	PhaseSneakAttack
	PhaseMainFire
	PhaseCasualties
	PhaseRoundCheck
	PhaseRetreat
	PhaseTerminal
)

var phaseNames = [...]string{
	"not_started", "aa_fire", "bombard", "sneak_attack", "main_fire",
	"casualties", "round_check", "retreat", "terminal",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// roundSafetyCap ends battles configured to run until decided that somehow
// never are.
const roundSafetyCap = 10000

const (
	att = 0
	def = 1
)

// Board is the state a battle is fought on. ChangeLog implements it.
type Board interface {
	Mutator
	Data() *GameData
}

// Engine fights battles. One Engine may fight many battles in sequence but
// is not safe for concurrent use because it owns its RandomSource.
type Engine struct {
	Rules    Rules
	Random   RandomSource
	Attacker Decider
	Defender Decider
	Log      zerolog.Logger
	// KeepLog records every round in Outcome.Log.
	KeepLog bool
	// Pace sleeps between rounds of displayed battles. Simulations leave it zero.
	Pace time.Duration
	// OnPhase, if set, observes every state transition.
	OnPhase func(Phase)
}

// NewEngine returns an engine with headless deciders on both sides.
func NewEngine(rules Rules, rng RandomSource) *Engine {
	return &Engine{
		Rules:    rules,
		Random:   rng,
		Attacker: HeadlessDecider{},
		Defender: HeadlessDecider{},
		Log:      zerolog.Nop(),
	}
}

// Fight runs one battle to completion. Casualties, retreats and captures
// are written through board, so a ChangeLog can undo them afterwards.
func (e *Engine) Fight(board Board, p Participants) (Outcome, error) {
	t, err := board.Data().Territory(p.Territory)
	if err != nil {
		return Outcome{}, err
	}
	f := &fight{
		e:          e,
		board:      board,
		p:          p,
		territory:  t,
		bombarding: p.Bombarding,
		startTUV:   [2]int{TUV(p.Attacking), TUV(p.Defending)},
	}
	f.sides[att] = append([]*Unit(nil), p.Attacking...)
	f.sides[def] = append([]*Unit(nil), p.Defending...)

	for f.phase != PhaseTerminal {
		if err := f.step(); err != nil {
			return Outcome{}, err
		}
	}
	return f.outcome(), nil
}

// volley is a batch of hits restricted to the targets a rule admits.
type volley struct {
	hits int
	rule targetRule
}

type targetRule uint8

const (
	ruleNoAir targetRule = 1 << iota
	ruleNoSubs
	ruleAirOnly
	ruleCount = 1 << iota
)

func (r targetRule) admits(u *Unit) bool {
	switch {
	case r&ruleAirOnly != 0 && !u.Type.IsAir:
		return false
	case r&ruleNoAir != 0 && u.Type.IsAir:
		return false
	case r&ruleNoSubs != 0 && u.Type.IsSub:
		return false
	}
	return true
}

type fight struct {
	e          *Engine
	board      Board
	p          Participants
	territory  *Territory
	sides      [2][]*Unit
	withdrawn  [2][]*Unit
	bombarding []*Unit
	phase      Phase
	round      int
	fired      map[*Unit]bool
	// pending[s] holds hits scored by side s not yet taken by the other side.
	pending   [2][]volley
	cur       RoundResult
	log       []RoundResult
	winner    Winner
	retreated bool
	captured  bool
	startTUV  [2]int
}

func (f *fight) enter(p Phase) {
	f.phase = p
	if f.e.OnPhase != nil {
		f.e.OnPhase(p)
	}
}

func (f *fight) step() error {
	switch f.phase {
	case PhaseNotStarted:
		return f.start()
	case PhaseAAFire:
		return f.aaFire()
	case PhaseBombard:
		f.bombard()
	case PhaseSneakAttack:
		return f.sneakAttack()
	case PhaseMainFire:
		f.mainFire()
	case PhaseCasualties:
		return f.resolveCasualties()
	case PhaseRoundCheck:
		return f.roundCheck()
	case PhaseRetreat:
		return f.retreat()
	}
	return nil
}

// start short-circuits battles where a side brought nothing.
func (f *fight) start() error {
	a, d := f.sides[att], f.sides[def]
	switch {
	case len(a) == 0 && len(d) == 0:
		f.finish(Draw)
	case len(a) == 0:
		f.finish(Defender)
	case len(d) == 0:
		if f.p.RequireCapture && !hasLand(a) {
			f.finish(Defender)
			return nil
		}
		return f.attackerWins()
	default:
		f.beginRound()
	}
	return nil
}

func (f *fight) beginRound() {
	f.round++
	f.cur = RoundResult{Round: f.round}
	f.fired = make(map[*Unit]bool)
	f.enter(PhaseAAFire)
}

// aaFire resolves anti-aircraft fire. Both sides roll before either removes
// losses; shot-down units never fire.
func (f *fight) aaFire() error {
	if f.round == 1 || !f.e.Rules.AAFirstRoundOnly {
		var volleys [2][]volley
		volleys[def] = f.aaVolleys(def)
		if f.e.Rules.AttackerAAFires {
			volleys[att] = f.aaVolleys(att)
		}
		for s := range 2 {
			for _, v := range volleys[s] {
				if err := f.takeHits(1-s, v); err != nil {
					return err
				}
			}
		}
	}
	f.enter(PhaseBombard)
	return nil
}

func (f *fight) aaVolleys(s int) []volley {
	var out []volley
	for _, airOnly := range []bool{true, false} {
		var rule targetRule
		if airOnly {
			rule = ruleAirOnly
		}
		targets := len(filterUnits(f.sides[1-s], rule.admits))
		var dice []die
		for _, u := range f.sides[s] {
			t := u.Type
			if !t.IsAA || t.AAStrength <= 0 || t.AATargetsAir != airOnly {
				continue
			}
			n := targets - len(dice)
			if n <= 0 {
				break
			}
			if t.AAMaxTargets > 0 && n > t.AAMaxTargets {
				n = t.AAMaxTargets
			}
			for range n {
				dice = append(dice, die{strength: t.AAStrength})
			}
		}
		if len(dice) == 0 {
			continue
		}
		hits, rolls := rollDice(f.e.Random, dice, f.e.Rules.Sides(), f.e.Rules.LowLuck)
		f.record(s, hits, rolls)
		out = append(out, volley{hits: hits, rule: rule})
	}
	return out
}

// bombard adds first-round fire from ships supporting an amphibious
// assault, one ship per landing unit. Its hits land with main fire.
func (f *fight) bombard() {
	if f.round == 1 && len(f.bombarding) > 0 {
		landing := len(filterUnits(f.sides[att], func(u *Unit) bool { return u.Amphibious }))
		if landing == 0 {
			landing = len(filterUnits(f.sides[att], func(u *Unit) bool { return u.Type.IsLand() }))
		}
		var dice []die
		ships := 0
		for _, u := range f.bombarding {
			if ships >= landing {
				break
			}
			if !u.Type.CanBombard {
				continue
			}
			s := u.Type.BombardStrength
			if s == 0 {
				s = u.Type.Attack
			}
			for range u.Type.Rolls(true) {
				dice = append(dice, die{strength: s})
			}
			ships++
		}
		if len(dice) > 0 {
			hits, rolls := rollDice(f.e.Random, dice, f.e.Rules.Sides(), f.e.Rules.LowLuck)
			f.record(att, hits, rolls)
			f.pending[att] = append(f.pending[att], volley{hits: hits})
		}
	}
	f.enter(PhaseSneakAttack)
}

// sneakAttack lets one side's submarines fire first and removes their
// victims before return fire. When both sides qualify the advantage cancels
// and all submarines fire with main fire.
func (f *fight) sneakAttack() error {
	sneak := [2]bool{f.canSneak(att), f.canSneak(def)}
	if sneak[att] != sneak[def] {
		s := att
		if sneak[def] {
			s = def
		}
		subs := filterUnits(f.sides[s], func(u *Unit) bool { return u.Type.IsSub })
		for _, u := range subs {
			f.fired[u] = true
		}
		for _, v := range f.fire(s, subs) {
			if err := f.takeHits(1-s, v); err != nil {
				return err
			}
		}
	}
	f.enter(PhaseMainFire)
	return nil
}

func (f *fight) canSneak(s int) bool {
	r := f.e.Rules
	if !r.SubsSneakAttack {
		return false
	}
	if r.DestroyerCancelsSneak && hasDestroyer(f.sides[1-s]) {
		return false
	}
	strengths := firingStrengths(f.sides[s], s == att, f.territory)
	for _, u := range f.sides[s] {
		if u.Type.IsSub && strengths[u] > 0 {
			return true
		}
	}
	return false
}

// mainFire rolls for both sides against the current unit lists; losses are
// taken afterwards so fire is simultaneous.
func (f *fight) mainFire() {
	for s := range 2 {
		shooters := filterUnits(f.sides[s], func(u *Unit) bool { return !f.fired[u] })
		f.pending[s] = append(f.pending[s], f.fire(s, shooters)...)
	}
	f.enter(PhaseCasualties)
}

func (f *fight) resolveCasualties() error {
	for s := range 2 {
		for _, v := range f.pending[s] {
			if err := f.takeHits(1-s, v); err != nil {
				return err
			}
		}
		f.pending[s] = f.pending[s][:0]
	}
	f.enter(PhaseRoundCheck)
	return nil
}

func (f *fight) roundCheck() error {
	if f.e.Rules.DefenselessUnitsLost {
		if err := f.removeDefenseless(); err != nil {
			return err
		}
	}
	if f.e.KeepLog {
		f.log = append(f.log, f.cur)
	}
	f.e.Log.Trace().
		Int("round", f.round).
		Int("attackerHits", f.cur.AttackerHits).
		Int("defenderHits", f.cur.DefenderHits).
		Int("attackersLeft", len(f.sides[att])).
		Int("defendersLeft", len(f.sides[def])).
		Msg("Round resolved")

	a, d := f.sides[att], f.sides[def]
	maxRounds := f.e.Rules.MaxRounds
	switch {
	case len(a) == 0 && len(d) == 0:
		f.finish(Draw)
	case len(a) == 0:
		f.finish(Defender)
	case len(d) == 0:
		if f.p.RequireCapture && !hasLand(a) {
			f.finish(Defender)
			return nil
		}
		return f.attackerWins()
	case f.p.RequireCapture && !hasLand(a):
		f.finish(Defender)
	case !f.canHurt(att) && !f.canHurt(def):
		f.finish(Draw)
	case (maxRounds > 0 && f.round >= maxRounds) || f.round >= roundSafetyCap:
		f.finish(Draw)
	default:
		f.enter(PhaseRetreat)
	}
	return nil
}

func (f *fight) retreat() error {
	q := RetreatQuery{
		Round:     f.round,
		Player:    f.p.Attacker,
		Territory: f.p.Territory,
		Attacking: true,
		Own:       f.sides[att],
		Enemy:     f.sides[def],
		Options:   f.p.RetreatTo,
	}
	// An empty territory means fight on.
	if to, ok := f.decider(att).Retreat(q); ok && to != "" {
		if err := f.board.Perform(MoveUnits(f.p.Territory, to, f.sides[att])); err != nil {
			return err
		}
		f.withdrawn[att] = append(f.withdrawn[att], f.sides[att]...)
		f.sides[att] = nil
		f.retreated = true
		f.finish(Defender)
		return nil
	}

	if f.e.Rules.SubsCanSubmerge {
		subs := filterUnits(f.sides[def], func(u *Unit) bool { return u.Type.IsSub })
		dq := q
		dq.Player, dq.Attacking = f.p.Defender, false
		dq.Own, dq.Enemy, dq.Options = f.sides[def], f.sides[att], nil
		if len(subs) > 0 && f.decider(def).Submerge(dq) {
			f.withdrawn[def] = append(f.withdrawn[def], subs...)
			f.sides[def] = without(f.sides[def], subs)
			if len(f.sides[def]) == 0 {
				return f.attackerWins()
			}
		}
	}

	if f.e.Pace > 0 {
		time.Sleep(f.e.Pace)
	}
	f.beginRound()
	return nil
}

// fire rolls the shooters' dice grouped by what each may hit.
func (f *fight) fire(s int, shooters []*Unit) []volley {
	attacking := s == att
	strengths := firingStrengths(f.sides[s], attacking, f.territory)
	var groups [ruleCount][]die
	for _, u := range shooters {
		st := strengths[u]
		if st <= 0 {
			continue
		}
		rule := f.ruleFor(u, s)
		for range u.Type.Rolls(attacking) {
			groups[rule] = append(groups[rule], die{strength: st})
		}
	}
	var out []volley
	for rule, dice := range groups {
		if len(dice) == 0 {
			continue
		}
		hits, rolls := rollDice(f.e.Random, dice, f.e.Rules.Sides(), f.e.Rules.LowLuck)
		f.record(s, hits, rolls)
		out = append(out, volley{hits: hits, rule: targetRule(rule)})
	}
	return out
}

func (f *fight) ruleFor(u *Unit, s int) targetRule {
	var r targetRule
	if u.Type.IsSub && f.e.Rules.SubsCannotHitAir {
		r |= ruleNoAir
	}
	if u.Type.IsAir && f.e.Rules.AirNeedsDestroyerVsSubs && !hasDestroyer(f.sides[s]) {
		r |= ruleNoSubs
	}
	return r
}

// canHurt reports whether side s has a unit able to score a hit on a unit
// still standing on the other side.
func (f *fight) canHurt(s int) bool {
	strengths := firingStrengths(f.sides[s], s == att, f.territory)
	for _, u := range f.sides[s] {
		if strengths[u] <= 0 {
			continue
		}
		rule := f.ruleFor(u, s)
		for _, e := range f.sides[1-s] {
			if rule.admits(e) {
				return true
			}
		}
	}
	return false
}

// removeDefenseless destroys a side that can no longer fire while the
// other side still can.
func (f *fight) removeDefenseless() error {
	for s := range 2 {
		if len(f.sides[s]) == 0 || len(f.sides[1-s]) == 0 {
			continue
		}
		if canFire(f.sides[s], s == att, f.territory) || !f.canHurt(1-s) {
			continue
		}
		lost := f.sides[s]
		if err := f.board.Perform(RemoveUnits{Territory: f.p.Territory, Units: lost}); err != nil {
			return err
		}
		f.sides[s] = nil
		f.cur.Defenseless = append(f.cur.Defenseless, unitIDs(lost)...)
	}
	return nil
}

func canFire(units []*Unit, attacking bool, t *Territory) bool {
	for _, st := range firingStrengths(units, attacking, t) {
		if st > 0 {
			return true
		}
	}
	return false
}

// takeHits has side s absorb a volley, asking its decider which units to
// lose. A selection that does not fit the request is replaced by the
// default selection and counted as a warning.
func (f *fight) takeHits(s int, v volley) error {
	if v.hits <= 0 {
		return nil
	}
	candidates := filterUnits(f.sides[s], v.rule.admits)
	if len(candidates) == 0 {
		return nil
	}
	req := CasualtyRequest{
		Player:     f.player(s),
		Candidates: candidates,
		Hits:       v.hits,
		Attacking:  s == att,
		Territory:  f.territory,
	}
	fallback, _ := CasualtySelector{}.Select(req)
	req.Default = &fallback
	chosen := f.decider(s).SelectCasualties(req)
	if !validCasualties(chosen, req) {
		f.cur.Warnings++
		f.e.Log.Warn().
			Err(ErrCasualtyMismatch).
			Str("player", string(req.Player)).
			Int("required", req.Required()).
			Int("selected", chosen.Size()).
			Msg("Casualty selection rejected, using default")
		chosen = fallback
	}
	return f.apply(s, chosen)
}

func (f *fight) apply(s int, list CasualtyList) error {
	var changes Composite
	for _, u := range list.Damaged {
		if containsUnit(list.Killed, u) {
			continue
		}
		changes = append(changes, SetDamage{Unit: u, Damage: u.Damage + 1})
	}
	if len(list.Killed) > 0 {
		changes = append(changes, RemoveUnits{Territory: f.p.Territory, Units: list.Killed})
	}
	if len(changes) == 0 {
		return nil
	}
	if err := f.board.Perform(changes); err != nil {
		return err
	}
	f.sides[s] = without(f.sides[s], list.Killed)

	killed, damaged := unitIDs(list.Killed), unitIDs(list.Damaged)
	if s == att {
		f.cur.AttackerKilled = append(f.cur.AttackerKilled, killed...)
		f.cur.AttackerDamaged = append(f.cur.AttackerDamaged, damaged...)
	} else {
		f.cur.DefenderKilled = append(f.cur.DefenderKilled, killed...)
		f.cur.DefenderDamaged = append(f.cur.DefenderDamaged, damaged...)
	}
	return nil
}

func (f *fight) record(s, hits int, rolls []int) {
	if s == att {
		f.cur.AttackerHits += hits
		f.cur.AttackerRolls = append(f.cur.AttackerRolls, rolls...)
		return
	}
	f.cur.DefenderHits += hits
	f.cur.DefenderRolls = append(f.cur.DefenderRolls, rolls...)
}

func (f *fight) attackerWins() error {
	if f.p.RequireCapture && !f.territory.IsWater && f.territory.Owner != f.p.Attacker {
		if err := f.board.Perform(SetOwner{Territory: f.p.Territory, Owner: f.p.Attacker}); err != nil {
			return err
		}
		f.captured = true
	}
	f.finish(Attacker)
	return nil
}

func (f *fight) finish(w Winner) {
	f.winner = w
	f.enter(PhaseTerminal)
}

func (f *fight) decider(s int) Decider {
	d := f.e.Attacker
	if s == def {
		d = f.e.Defender
	}
	if d == nil {
		return HeadlessDecider{}
	}
	return d
}

func (f *fight) player(s int) Player {
	if s == att {
		return f.p.Attacker
	}
	return f.p.Defender
}

func (f *fight) outcome() Outcome {
	attLeft := append(append([]*Unit(nil), f.sides[att]...), f.withdrawn[att]...)
	defLeft := append(append([]*Unit(nil), f.sides[def]...), f.withdrawn[def]...)
	return Outcome{
		Winner:          f.winner,
		Attacking:       Values(attLeft),
		Defending:       Values(defLeft),
		Rounds:          f.round,
		AttackerTUVLost: f.startTUV[att] - TUV(attLeft),
		DefenderTUVLost: f.startTUV[def] - TUV(defLeft),
		Retreated:       f.retreated,
		Captured:        f.captured,
		Log:             f.log,
	}
}

func hasLand(units []*Unit) bool {
	for _, u := range units {
		if u.Type.IsLand() {
			return true
		}
	}
	return false
}

func hasDestroyer(units []*Unit) bool {
	for _, u := range units {
		if u.Type.IsDestroyer {
			return true
		}
	}
	return false
}

func unitIDs(units []*Unit) []string {
	if len(units) == 0 {
		return nil
	}
	ids := make([]string, len(units))
	for i, u := range units {
		ids[i] = u.ID
	}
	return ids
}
