package battle

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownUnitType  = errors.New("unknown unit type")
	ErrUnknownTerritory = errors.New("unknown territory")
)

// Rules holds the ruleset switches the combat engine honors.
type Rules struct {
	Name      string `yaml:"name" json:"name"`
	DiceSides int    `yaml:"dice_sides" json:"dice_sides"`
	LowLuck   bool   `yaml:"low_luck" json:"low_luck"`
	// MaxRounds ends the battle as a draw after that many rounds; 0 means
	// fight until decided.
	MaxRounds int `yaml:"max_rounds" json:"max_rounds"`

	AttackerAAFires         bool `yaml:"attacker_aa_fires" json:"attacker_aa_fires"`
	AAFirstRoundOnly        bool `yaml:"aa_first_round_only" json:"aa_first_round_only"`
	SubsSneakAttack         bool `yaml:"subs_sneak_attack" json:"subs_sneak_attack"`
	DestroyerCancelsSneak   bool `yaml:"destroyer_cancels_sneak" json:"destroyer_cancels_sneak"`
	AirNeedsDestroyerVsSubs bool `yaml:"air_needs_destroyer_vs_subs" json:"air_needs_destroyer_vs_subs"`
	SubsCannotHitAir        bool `yaml:"subs_cannot_hit_air" json:"subs_cannot_hit_air"`
	SubsCanSubmerge         bool `yaml:"subs_can_submerge" json:"subs_can_submerge"`
	DefenselessUnitsLost    bool `yaml:"defenseless_units_lost" json:"defenseless_units_lost"`
}

// Sides returns the configured die size, defaulting to six.
func (r Rules) Sides() int {
	if r.DiceSides <= 0 {
		return 6
	}
	return r.DiceSides
}

// Catalog is the set of unit types a game knows about.
type Catalog struct {
	types map[string]*UnitType
}

// NewCatalog indexes the given types by name.
func NewCatalog(types ...*UnitType) *Catalog {
	c := &Catalog{types: make(map[string]*UnitType, len(types))}
	for _, t := range types {
		c.types[t.Name] = t
	}
	return c
}

// Type looks up a unit type by name.
func (c *Catalog) Type(name string) (*UnitType, error) {
	t, ok := c.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnitType, name)
	}
	return t, nil
}

// MustType is Type for callers working from the built-in catalog.
func (c *Catalog) MustType(name string) *UnitType {
	t, err := c.Type(name)
	if err != nil {
		panic(err)
	}
	return t
}

// Names returns the type names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.types))
	for n := range c.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Ruleset is the on-disk form of rules plus the unit catalog.
type Ruleset struct {
	Rules Rules       `yaml:"rules"`
	Units []*UnitType `yaml:"units"`
}

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// DefaultRuleset returns the built-in ruleset.
func DefaultRuleset() (Rules, *Catalog) {
	rules, catalog, err := ParseRuleset(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("battle: built-in ruleset: %v", err))
	}
	return rules, catalog
}

// LoadRuleset reads a ruleset YAML file. An empty path yields the built-in one.
func LoadRuleset(path string) (Rules, *Catalog, error) {
	if path == "" {
		r, c := DefaultRuleset()
		return r, c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, nil, fmt.Errorf("read ruleset: %w", err)
	}
	return ParseRuleset(data)
}

// ParseRuleset decodes ruleset YAML and validates the unit types.
func ParseRuleset(data []byte) (Rules, *Catalog, error) {
	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return Rules{}, nil, fmt.Errorf("parse ruleset: %w", err)
	}
	for _, t := range rs.Units {
		if t.Name == "" {
			return Rules{}, nil, errors.New("parse ruleset: unit type without name")
		}
		if t.HitPoints == 0 {
			t.HitPoints = 1
		}
		if t.HitPoints > 2 {
			return Rules{}, nil, fmt.Errorf("parse ruleset: %s: hit points %d out of range", t.Name, t.HitPoints)
		}
		if t.IsAA && t.AAMaxTargets == 0 {
			t.AAMaxTargets = -1
		}
	}
	return rs.Rules, NewCatalog(rs.Units...), nil
}
