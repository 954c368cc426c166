package battle

import (
	"fmt"
	"sort"
	"sync"
)

// Effect modifies the strength of matching units fighting in a territory,
// e.g. a fortification granting defenders +1.
type Effect struct {
	Name       string `yaml:"name" json:"name"`
	AttackMod  int    `yaml:"attack_mod" json:"attack_mod"`
	DefenseMod int    `yaml:"defense_mod" json:"defense_mod"`
	LandOnly   bool   `yaml:"land_only" json:"land_only"`
}

func (e Effect) applies(t *UnitType) bool {
	return !e.LandOnly || t.IsLand()
}

// Territory is a node of the map with the units currently in it.
type Territory struct {
	Name    string
	Owner   Player
	IsWater bool
	Units   []*Unit
	Effects []Effect
}

// UnitsOf returns the units in the territory owned by player.
func (t *Territory) UnitsOf(p Player) []*Unit {
	return filterUnits(t.Units, func(u *Unit) bool { return u.Owner == p })
}

// GameData is a full state graph: rules, unit catalog and territories.
type GameData struct {
	Rules       Rules
	Catalog     *Catalog
	Territories map[string]*Territory
}

// NewGameData returns an empty graph with the given rules and catalog.
func NewGameData(rules Rules, catalog *Catalog) *GameData {
	return &GameData{
		Rules:       rules,
		Catalog:     catalog,
		Territories: make(map[string]*Territory),
	}
}

// AddTerritory inserts or replaces a territory.
func (gd *GameData) AddTerritory(t *Territory) {
	gd.Territories[t.Name] = t
}

// Territory returns the named territory.
func (gd *GameData) Territory(name string) (*Territory, error) {
	t, ok := gd.Territories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTerritory, name)
	}
	return t, nil
}

// TerritoryNames returns all territory names sorted.
func (gd *GameData) TerritoryNames() []string {
	names := make([]string, 0, len(gd.Territories))
	for n := range gd.Territories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// UnitIndex maps every unit ID to the unit and the territory holding it.
func (gd *GameData) UnitIndex() map[string]UnitLocation {
	idx := make(map[string]UnitLocation)
	for _, t := range gd.Territories {
		for _, u := range t.Units {
			idx[u.ID] = UnitLocation{Unit: u, Territory: t.Name}
		}
	}
	return idx
}

// UnitLocation pairs a unit with where it stands.
type UnitLocation struct {
	Unit      *Unit
	Territory string
}

// UnitCounts returns the number of units per territory.
func (gd *GameData) UnitCounts() map[string]int {
	counts := make(map[string]int, len(gd.Territories))
	for name, t := range gd.Territories {
		counts[name] = len(t.Units)
	}
	return counts
}

// Clone returns a deep copy. Units are copied; unit types and the catalog
// are shared since they are immutable.
func (gd *GameData) Clone() *GameData {
	c := &GameData{
		Rules:       gd.Rules,
		Catalog:     gd.Catalog,
		Territories: make(map[string]*Territory, len(gd.Territories)),
	}
	for name, t := range gd.Territories {
		ct := &Territory{
			Name:    t.Name,
			Owner:   t.Owner,
			IsWater: t.IsWater,
		}
		if t.Units != nil {
			ct.Units = make([]*Unit, len(t.Units))
			for i, u := range t.Units {
				ct.Units[i] = u.Clone()
			}
		}
		if t.Effects != nil {
			ct.Effects = make([]Effect, len(t.Effects))
			copy(ct.Effects, t.Effects)
		}
		c.Territories[name] = ct
	}
	return c
}

// Store guards the authoritative GameData. Simulations never touch it
// directly: they take a Snapshot, which holds the read lock only while
// copying.
type Store struct {
	mu   sync.RWMutex
	data *GameData
}

// NewStore wraps gd. The caller must not keep mutating gd afterwards.
func NewStore(gd *GameData) *Store {
	return &Store{data: gd}
}

// Snapshot returns an isolated copy of the current state.
func (s *Store) Snapshot() *GameData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// Update runs fn with exclusive access to the authoritative state.
func (s *Store) Update(fn func(gd *GameData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// View runs fn with shared access. fn must not mutate gd.
func (s *Store) View(fn func(gd *GameData) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}
