// Package odds estimates battle outcomes by fighting the same battle many
// times in a private copy of the game state.
package odds

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/freeeve/warroom/pkg/battle"
)

var (
	ErrSessionBusy     = errors.New("sandbox session already in use")
	ErrForeignBattle   = errors.New("prepared battle belongs to another session")
	ErrDuplicateUnit   = errors.New("unit listed twice in battle")
	ErrInvalidRunCount = errors.New("run count must be at least 1")
)

// Snapshotter hands out isolated copies of authoritative state.
// *battle.Store implements it.
type Snapshotter interface {
	Snapshot() *battle.GameData
}

// Request describes a battle to evaluate. Units are values from the
// authoritative graph; they are matched into the sandbox by ID, and units
// with an unknown ID are created there from their type name.
type Request struct {
	Territory      string
	Attacker       battle.Player
	Defender       battle.Player
	Attacking      []battle.Unit
	Defending      []battle.Unit
	Bombarding     []battle.Unit
	RequireCapture bool
	RetreatTo      []string
	Runs           int
}

// Session owns one cloned state graph. Each run applies the battle's setup,
// fights, and rolls every change back so the next run starts from the same
// baseline. A session serves one battle at a time.
type Session struct {
	data  *battle.GameData
	log   *battle.ChangeLog
	index map[string]battle.UnitLocation
	busy  atomic.Bool
}

// NewSession clones the state once.
func NewSession(src Snapshotter) *Session {
	return newSession(src.Snapshot())
}

// newSession takes ownership of gd, which must not be shared.
func newSession(gd *battle.GameData) *Session {
	return &Session{
		data:  gd,
		log:   battle.NewChangeLog(gd),
		index: gd.UnitIndex(),
	}
}

// Data exposes the sandbox graph for inspection between runs.
func (s *Session) Data() *battle.GameData {
	return s.data
}

// Prepared is a Request translated into one session's graph, with the
// setup changes computed against the baseline.
type Prepared struct {
	session    *Session
	territory  string
	attacker   battle.Player
	defender   battle.Player
	attacking  []*battle.Unit
	defending  []*battle.Unit
	bombarding []*battle.Unit
	capture    bool
	retreatTo  []string
	setup      battle.Composite
}

// Strengths estimates both sides' fighting value on the battle territory.
func (p *Prepared) Strengths() (attack, defense float64) {
	t, err := p.session.data.Territory(p.territory)
	if err != nil {
		return 0, 0
	}
	return battle.EstimateStrength(p.attacking, true, t), battle.EstimateStrength(p.defending, false, t)
}

// Prepare translates req into the sandbox. The result stays valid for as
// many runs as needed because every run reverts to the baseline.
func (s *Session) Prepare(req Request) (*Prepared, error) {
	t, err := s.data.Territory(req.Territory)
	if err != nil {
		return nil, err
	}
	p := &Prepared{
		session:   s,
		territory: t.Name,
		attacker:  req.Attacker,
		defender:  req.Defender,
		capture:   req.RequireCapture,
		retreatTo: req.RetreatTo,
	}
	seen := make(map[string]bool)
	var fresh []*battle.Unit
	translate := func(vals []battle.Unit, owner battle.Player) ([]*battle.Unit, error) {
		out := make([]*battle.Unit, 0, len(vals))
		for _, v := range vals {
			u, isNew, err := s.translate(v, owner)
			if err != nil {
				return nil, err
			}
			if seen[u.ID] {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateUnit, u.ID)
			}
			seen[u.ID] = true
			if isNew {
				fresh = append(fresh, u)
			}
			out = append(out, u)
		}
		return out, nil
	}
	if p.attacking, err = translate(req.Attacking, req.Attacker); err != nil {
		return nil, err
	}
	if p.defending, err = translate(req.Defending, req.Defender); err != nil {
		return nil, err
	}
	if p.bombarding, err = translate(req.Bombarding, req.Attacker); err != nil {
		return nil, err
	}

	// Units already in the territory but not fighting leave the field.
	fighting := make(map[*battle.Unit]bool)
	for _, u := range append(append([]*battle.Unit(nil), p.attacking...), p.defending...) {
		fighting[u] = true
	}
	var bystanders []*battle.Unit
	for _, u := range t.Units {
		if !fighting[u] {
			bystanders = append(bystanders, u)
		}
	}
	if len(bystanders) > 0 {
		p.setup = append(p.setup, battle.RemoveUnits{Territory: t.Name, Units: bystanders})
	}

	// Fighters standing elsewhere move in.
	origins := make(map[string][]*battle.Unit)
	var arriving []*battle.Unit
	for _, u := range append(append([]*battle.Unit(nil), p.attacking...), p.defending...) {
		loc, ok := s.index[u.ID]
		switch {
		case !ok || loc.Unit != u:
			arriving = append(arriving, u)
		case loc.Territory != t.Name:
			origins[loc.Territory] = append(origins[loc.Territory], u)
			arriving = append(arriving, u)
		}
	}
	names := make([]string, 0, len(origins))
	for n := range origins {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		p.setup = append(p.setup, battle.RemoveUnits{Territory: n, Units: origins[n]})
	}
	if len(arriving) > 0 {
		p.setup = append(p.setup, battle.AddUnits{Territory: t.Name, Units: arriving})
	}

	// Requested damage and landing state override the baseline for the run.
	wanted := make(map[string]battle.Unit)
	for _, vals := range [][]battle.Unit{req.Attacking, req.Defending} {
		for _, v := range vals {
			wanted[v.ID] = v
		}
	}
	for _, u := range append(append([]*battle.Unit(nil), p.attacking...), p.defending...) {
		v, ok := wanted[u.ID]
		if !ok || containsPtr(fresh, u) {
			continue
		}
		if v.Damage != u.Damage {
			p.setup = append(p.setup, battle.SetDamage{Unit: u, Damage: v.Damage})
		}
		if v.Amphibious != u.Amphibious {
			p.setup = append(p.setup, battle.SetAmphibious{Unit: u, Amphibious: v.Amphibious})
		}
	}

	if !t.IsWater && t.Owner != req.Defender {
		p.setup = append(p.setup, battle.SetOwner{Territory: t.Name, Owner: req.Defender})
	}
	return p, nil
}

// translate finds v in the sandbox by ID or builds a new unit of the same
// type name. New units keep the requested ID when one is given.
func (s *Session) translate(v battle.Unit, owner battle.Player) (*battle.Unit, bool, error) {
	if v.ID != "" {
		if loc, ok := s.index[v.ID]; ok {
			return loc.Unit, false, nil
		}
	}
	if v.Type == nil {
		return nil, false, fmt.Errorf("%w: unit %q has no type", battle.ErrUnknownUnitType, v.ID)
	}
	t, err := s.data.Catalog.Type(v.Type.Name)
	if err != nil {
		return nil, false, err
	}
	if v.Owner != "" {
		owner = v.Owner
	}
	u := battle.NewUnit(t, owner)
	if v.ID != "" {
		u.ID = v.ID
	}
	u.Damage = v.Damage
	u.Amphibious = v.Amphibious
	u.TransportedBy = v.TransportedBy
	return u, true, nil
}

// Setup applies the battle's starting placement and returns the
// participants to fight. Revert must follow before the next Setup.
func (s *Session) Setup(p *Prepared) (battle.Participants, error) {
	if p.session != s {
		return battle.Participants{}, ErrForeignBattle
	}
	if !s.busy.CompareAndSwap(false, true) {
		return battle.Participants{}, ErrSessionBusy
	}
	if err := s.log.Perform(p.setup); err != nil {
		s.busy.Store(false)
		return battle.Participants{}, fmt.Errorf("setup battle: %w", err)
	}
	return battle.Participants{
		Territory:      p.territory,
		Attacker:       p.attacker,
		Defender:       p.defender,
		Attacking:      p.attacking,
		Defending:      p.defending,
		Bombarding:     p.bombarding,
		RequireCapture: p.capture,
		RetreatTo:      p.retreatTo,
	}, nil
}

// Board is where the engine writes during a run.
func (s *Session) Board() battle.Board {
	return s.log
}

// Revert undoes everything since Setup and frees the session.
func (s *Session) Revert() error {
	defer s.busy.Store(false)
	if err := s.log.Rollback(); err != nil {
		return fmt.Errorf("revert sandbox: %w", err)
	}
	return nil
}

// Run fights one battle from the baseline and restores it afterwards.
func (s *Session) Run(eng *battle.Engine, p *Prepared) (battle.Outcome, error) {
	parts, err := s.Setup(p)
	if err != nil {
		return battle.Outcome{}, err
	}
	out, ferr := eng.Fight(s.log, parts)
	if err := s.Revert(); err != nil {
		return battle.Outcome{}, err
	}
	if ferr != nil {
		return battle.Outcome{}, fmt.Errorf("fight: %w", ferr)
	}
	return out, nil
}

func containsPtr(units []*battle.Unit, u *battle.Unit) bool {
	for _, x := range units {
		if x == u {
			return true
		}
	}
	return false
}
