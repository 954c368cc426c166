package battle

import (
	"errors"
	"testing"
)

func TestStateCodec_RoundTrip(t *testing.T) {
	gd := testData()
	add(gd, "plains", "infantry", "blue", 2)
	bs := add(gd, "sea", "battleship", "red", 1)
	bs[0].Damage = 1
	tr := add(gd, "sea", "transport", "red", 1)
	cargo := add(gd, "sea", "armour", "red", 1)
	cargo[0].TransportedBy = tr[0].ID
	gd.Territories["plains"].Effects = []Effect{{Name: "fortress", DefenseMod: 1, LandOnly: true}}
	gd.Rules.LowLuck = true

	data, err := EncodeState(gd)
	if err != nil {
		t.Fatalf("EncodeState: %v", err)
	}
	back, err := DecodeState(data, gd.Catalog)
	if err != nil {
		t.Fatalf("DecodeState: %v", err)
	}
	if render(back) != render(gd) {
		t.Errorf("round trip mismatch:\n%s\n%s", render(gd), render(back))
	}
	if !back.Rules.LowLuck || back.Territories["plains"].Effects[0].Name != "fortress" {
		t.Error("rules or effects lost")
	}
	if got := back.UnitIndex()[cargo[0].ID].Unit.TransportedBy; got != tr[0].ID {
		t.Errorf("transport reference lost, got %q", got)
	}
}

func TestStateCodec_Rejects(t *testing.T) {
	_, cat := DefaultRuleset()
	tests := []struct {
		name string
		json string
		want error
	}{
		{"unknown type", `{"territories":[{"name":"x","units":[{"id":"1","type":"zeppelin"}]}]}`, ErrUnknownUnitType},
		{"duplicate id", `{"territories":[{"name":"x","units":[{"id":"1","type":"infantry"},{"id":"1","type":"infantry"}]}]}`, nil},
		{"missing id", `{"territories":[{"name":"x","units":[{"type":"infantry"}]}]}`, nil},
		{"overdamaged", `{"territories":[{"name":"x","units":[{"id":"1","type":"infantry","damage":1}]}]}`, nil},
		{"malformed", `{"territories":`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeState([]byte(tt.json), cat)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
