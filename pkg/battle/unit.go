package battle

import "github.com/google/uuid"

// Player identifies a side in the game (e.g. "germans").
type Player string

// Neutral owns territories nobody has taken.
const Neutral Player = ""

// UnitType describes the combat profile of a kind of unit. Types are shared
// by pointer from a Catalog and never mutated during a battle.
type UnitType struct {
	Name         string `yaml:"name" json:"name"`
	Cost         int    `yaml:"cost" json:"cost"`
	Attack       int    `yaml:"attack" json:"attack"`
	Defense      int    `yaml:"defense" json:"defense"`
	AttackRolls  int    `yaml:"attack_rolls" json:"attack_rolls"`
	DefenseRolls int    `yaml:"defense_rolls" json:"defense_rolls"`
	HitPoints    int    `yaml:"hit_points" json:"hit_points"`
	Movement     int    `yaml:"movement" json:"movement"`

	IsAir       bool `yaml:"air" json:"air"`
	IsSea       bool `yaml:"sea" json:"sea"`
	IsSub       bool `yaml:"sub" json:"sub"`
	IsDestroyer bool `yaml:"destroyer" json:"destroyer"`
	IsTransport bool `yaml:"transport" json:"transport"`

	IsAA       bool `yaml:"aa" json:"aa"`
	AAStrength int  `yaml:"aa_strength" json:"aa_strength"`
	// AAMaxTargets caps the dice an AA unit rolls. Zero or less means one
	// die per eligible target.
	AAMaxTargets int `yaml:"aa_max_targets" json:"aa_max_targets"`
	// AATargetsAir restricts AA fire to air units. It is the only target
	// filter the default catalog uses.
	AATargetsAir bool `yaml:"aa_targets_air" json:"aa_targets_air"`

	IsCarrier       bool `yaml:"carrier" json:"carrier"`
	CarrierCapacity int  `yaml:"carrier_capacity" json:"carrier_capacity"`

	IsArtillery          bool `yaml:"artillery" json:"artillery"`
	ArtillerySupportable bool `yaml:"artillery_supportable" json:"artillery_supportable"`
	CanBlitz             bool `yaml:"blitz" json:"blitz"`
	CanBombard           bool `yaml:"bombard" json:"bombard"`
	BombardStrength      int  `yaml:"bombard_strength" json:"bombard_strength"`
}

// IsLand reports whether the type can capture a land territory.
func (t *UnitType) IsLand() bool {
	return !t.IsAir && !t.IsSea
}

// Rolls returns the number of dice the type rolls on the given side.
func (t *UnitType) Rolls(attacking bool) int {
	n := t.DefenseRolls
	if attacking {
		n = t.AttackRolls
	}
	if n <= 0 {
		return 1
	}
	return n
}

// Strength returns the unmodified strength on the given side.
func (t *UnitType) Strength(attacking bool) int {
	if attacking {
		return t.Attack
	}
	return t.Defense
}

// MaxHits returns the number of hits needed to destroy a unit of this type.
func (t *UnitType) MaxHits() int {
	if t.HitPoints < 1 {
		return 1
	}
	return t.HitPoints
}

// Unit is a single piece on the board. TransportedBy references the carrying
// transport by ID only; the transport does not own the unit.
type Unit struct {
	ID            string
	Type          *UnitType
	Owner         Player
	Damage        int
	TransportedBy string
	// Amphibious marks a land unit that assaults from a transport this turn.
	// Bombardment is limited to the number of such units.
	Amphibious bool
}

// NewUnit creates a unit with a fresh ID.
func NewUnit(t *UnitType, owner Player) *Unit {
	return &Unit{ID: uuid.NewString(), Type: t, Owner: owner}
}

// NewUnits creates n units of the same type.
func NewUnits(t *UnitType, owner Player, n int) []*Unit {
	units := make([]*Unit, n)
	for i := range units {
		units[i] = NewUnit(t, owner)
	}
	return units
}

// HitsLeft returns how many more hits the unit can absorb.
func (u *Unit) HitsLeft() int {
	return u.Type.MaxHits() - u.Damage
}

// IsDamaged reports whether a multi-hit unit has taken a hit.
func (u *Unit) IsDamaged() bool {
	return u.Damage > 0
}

// Clone returns a copy sharing the same UnitType.
func (u *Unit) Clone() *Unit {
	c := *u
	return &c
}

// Values copies a unit slice into values, detaching it from later mutation.
func Values(units []*Unit) []Unit {
	out := make([]Unit, len(units))
	for i, u := range units {
		out[i] = *u
	}
	return out
}

// TUV returns the total unit value of the given units.
func TUV(units []*Unit) int {
	total := 0
	for _, u := range units {
		total += u.Type.Cost
	}
	return total
}

func containsUnit(units []*Unit, u *Unit) bool {
	for _, x := range units {
		if x == u {
			return true
		}
	}
	return false
}

// without returns units minus any in remove, preserving order.
func without(units []*Unit, remove []*Unit) []*Unit {
	if len(remove) == 0 {
		return units
	}
	drop := make(map[*Unit]bool, len(remove))
	for _, u := range remove {
		drop[u] = true
	}
	out := make([]*Unit, 0, len(units))
	for _, u := range units {
		if !drop[u] {
			out = append(out, u)
		}
	}
	return out
}

func filterUnits(units []*Unit, keep func(*Unit) bool) []*Unit {
	var out []*Unit
	for _, u := range units {
		if keep(u) {
			out = append(out, u)
		}
	}
	return out
}
