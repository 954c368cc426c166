package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/freeeve/warroom/pkg/battle"
	"github.com/freeeve/warroom/pkg/odds"
)

// scenario is the YAML description of one battle and the board around it.
type scenario struct {
	Territory      string                   `yaml:"territory"`
	Water          bool                     `yaml:"water"`
	Attacker       battle.Player            `yaml:"attacker"`
	Defender       battle.Player            `yaml:"defender"`
	RequireCapture bool                     `yaml:"require_capture"`
	RetreatTo      []string                 `yaml:"retreat_to"`
	Runs           int                      `yaml:"runs"`
	LowLuck        *bool                    `yaml:"low_luck"`
	MaxRounds      *int                     `yaml:"max_rounds"`
	Territories    []battle.TerritoryRecord `yaml:"territories"`
	Attacking      []unitGroup              `yaml:"attacking"`
	Defending      []unitGroup              `yaml:"defending"`
	Bombarding     []unitGroup              `yaml:"bombarding"`
	Options        options                  `yaml:"options"`
}

// unitGroup is either a reference to a unit placed in territories (ID) or
// Count hypothetical units of Type.
type unitGroup struct {
	ID         string `yaml:"id"`
	Type       string `yaml:"type"`
	Count      int    `yaml:"count"`
	Damage     int    `yaml:"damage"`
	Amphibious bool   `yaml:"amphibious"`
}

type options struct {
	KeepOneLandUnit        bool `yaml:"keep_one_land_unit"`
	RetreatAfterRound      int  `yaml:"retreat_after_round"`
	RetreatWhenUnitsLeft   int  `yaml:"retreat_when_units_left"`
	RetreatWhenOnlyAirLeft bool `yaml:"retreat_when_only_air_left"`
	SubmergeSubs           bool `yaml:"submerge_subs"`
}

func loadScenario(path string) (*scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return parseScenario(data)
}

func parseScenario(data []byte) (*scenario, error) {
	var sc scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	switch {
	case sc.Territory == "":
		return nil, fmt.Errorf("scenario: territory is required")
	case sc.Attacker == "" || sc.Defender == "" || sc.Attacker == sc.Defender:
		return nil, fmt.Errorf("scenario: attacker and defender must be set and differ")
	}
	return &sc, nil
}

// build creates the board and the request. Units placed without an ID get
// a fresh one.
func (sc *scenario) build(rules battle.Rules, catalog *battle.Catalog) (*battle.GameData, odds.Request, error) {
	if sc.LowLuck != nil {
		rules.LowLuck = *sc.LowLuck
	}
	if sc.MaxRounds != nil {
		rules.MaxRounds = *sc.MaxRounds
	}

	rec := battle.StateRecord{Rules: rules}
	found := false
	for _, t := range sc.Territories {
		t.Units = append([]battle.UnitRecord(nil), t.Units...)
		for i := range t.Units {
			if t.Units[i].ID == "" {
				t.Units[i].ID = uuid.NewString()
			}
		}
		found = found || t.Name == sc.Territory
		rec.Territories = append(rec.Territories, t)
	}
	if !found {
		rec.Territories = append(rec.Territories, battle.TerritoryRecord{Name: sc.Territory, Owner: sc.Defender, IsWater: sc.Water})
	}
	gd, err := rec.GameData(catalog)
	if err != nil {
		return nil, odds.Request{}, err
	}

	req := odds.Request{
		Territory:      sc.Territory,
		Attacker:       sc.Attacker,
		Defender:       sc.Defender,
		RequireCapture: sc.RequireCapture,
		RetreatTo:      sc.RetreatTo,
		Runs:           sc.Runs,
	}
	index := gd.UnitIndex()
	expand := func(groups []unitGroup, owner battle.Player) ([]battle.Unit, error) {
		var out []battle.Unit
		for _, g := range groups {
			if g.ID != "" {
				loc, ok := index[g.ID]
				if !ok {
					return nil, fmt.Errorf("unit %q is not placed on the board", g.ID)
				}
				out = append(out, *loc.Unit)
				continue
			}
			u, err := battle.UnitRecord{Type: g.Type, Owner: owner, Damage: g.Damage, Amphibious: g.Amphibious}.Unit(catalog)
			if err != nil {
				return nil, err
			}
			for range max(g.Count, 1) {
				out = append(out, u)
			}
		}
		return out, nil
	}
	if req.Attacking, err = expand(sc.Attacking, sc.Attacker); err != nil {
		return nil, req, fmt.Errorf("attacking: %w", err)
	}
	if req.Defending, err = expand(sc.Defending, sc.Defender); err != nil {
		return nil, req, fmt.Errorf("defending: %w", err)
	}
	if req.Bombarding, err = expand(sc.Bombarding, sc.Attacker); err != nil {
		return nil, req, fmt.Errorf("bombarding: %w", err)
	}
	return gd, req, nil
}

func (o options) deciders() (attacker, defender battle.HeadlessDecider) {
	attacker = battle.HeadlessDecider{
		KeepOneLandUnit:        o.KeepOneLandUnit,
		RetreatAfterRound:      o.RetreatAfterRound,
		RetreatWhenUnitsLeft:   o.RetreatWhenUnitsLeft,
		RetreatWhenOnlyAirLeft: o.RetreatWhenOnlyAirLeft,
	}
	defender = battle.HeadlessDecider{SubmergeSubs: o.SubmergeSubs}
	return attacker, defender
}
