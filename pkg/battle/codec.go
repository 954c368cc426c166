package battle

import (
	"encoding/json"
	"fmt"
)

// UnitRecord is the serialized form of a Unit. Types are referenced by name
// and resolved against a Catalog when decoded.
type UnitRecord struct {
	ID            string `json:"id,omitempty" yaml:"id"`
	Type          string `json:"type" yaml:"type"`
	Owner         Player `json:"owner,omitempty" yaml:"owner"`
	Damage        int    `json:"damage,omitempty" yaml:"damage"`
	TransportedBy string `json:"transported_by,omitempty" yaml:"transported_by"`
	Amphibious    bool   `json:"amphibious,omitempty" yaml:"amphibious"`
}

// Record converts u for storage.
func (u *Unit) Record() UnitRecord {
	return UnitRecord{
		ID:            u.ID,
		Type:          u.Type.Name,
		Owner:         u.Owner,
		Damage:        u.Damage,
		TransportedBy: u.TransportedBy,
		Amphibious:    u.Amphibious,
	}
}

// Unit resolves the record against c. The result is detached from any
// board; an empty ID stays empty so callers can tell hypothetical units.
func (r UnitRecord) Unit(c *Catalog) (Unit, error) {
	t, err := c.Type(r.Type)
	if err != nil {
		return Unit{}, err
	}
	if r.Damage < 0 || r.Damage >= t.MaxHits() {
		return Unit{}, fmt.Errorf("unit %s: damage %d out of range for %s", r.ID, r.Damage, t.Name)
	}
	return Unit{
		ID:            r.ID,
		Type:          t,
		Owner:         r.Owner,
		Damage:        r.Damage,
		TransportedBy: r.TransportedBy,
		Amphibious:    r.Amphibious,
	}, nil
}

// TerritoryRecord is the serialized form of a Territory.
type TerritoryRecord struct {
	Name    string       `json:"name" yaml:"name"`
	Owner   Player       `json:"owner,omitempty" yaml:"owner"`
	IsWater bool         `json:"water,omitempty" yaml:"water"`
	Units   []UnitRecord `json:"units,omitempty" yaml:"units"`
	Effects []Effect     `json:"effects,omitempty" yaml:"effects"`
}

// StateRecord is the serialized form of a GameData.
type StateRecord struct {
	Rules       Rules             `json:"rules" yaml:"rules"`
	Territories []TerritoryRecord `json:"territories" yaml:"territories"`
}

// Record converts gd for storage. Territories are sorted by name.
func (gd *GameData) Record() StateRecord {
	rec := StateRecord{Rules: gd.Rules}
	for _, name := range gd.TerritoryNames() {
		t := gd.Territories[name]
		tr := TerritoryRecord{Name: t.Name, Owner: t.Owner, IsWater: t.IsWater, Effects: t.Effects}
		for _, u := range t.Units {
			tr.Units = append(tr.Units, u.Record())
		}
		rec.Territories = append(rec.Territories, tr)
	}
	return rec
}

// GameData rebuilds a state graph from the record. Every unit must carry a
// unique ID.
func (rec StateRecord) GameData(c *Catalog) (*GameData, error) {
	gd := NewGameData(rec.Rules, c)
	seen := make(map[string]bool)
	for _, tr := range rec.Territories {
		t := &Territory{Name: tr.Name, Owner: tr.Owner, IsWater: tr.IsWater}
		if len(tr.Effects) > 0 {
			t.Effects = append([]Effect(nil), tr.Effects...)
		}
		for _, ur := range tr.Units {
			if ur.ID == "" || seen[ur.ID] {
				return nil, fmt.Errorf("territory %s: missing or duplicate unit id %q", tr.Name, ur.ID)
			}
			seen[ur.ID] = true
			u, err := ur.Unit(c)
			if err != nil {
				return nil, fmt.Errorf("territory %s: %w", tr.Name, err)
			}
			t.Units = append(t.Units, &u)
		}
		gd.AddTerritory(t)
	}
	return gd, nil
}

// EncodeState serializes gd as JSON.
func EncodeState(gd *GameData) ([]byte, error) {
	return json.Marshal(gd.Record())
}

// DecodeState parses JSON written by EncodeState.
func DecodeState(data []byte, c *Catalog) (*GameData, error) {
	var rec StateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return rec.GameData(c)
}
