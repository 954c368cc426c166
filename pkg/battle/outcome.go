package battle

import "fmt"

// Winner is the terminal verdict of a battle.
type Winner int

const (
	Draw Winner = iota
	Attacker
	Defender
)

func (w Winner) String() string {
	switch w {
	case Attacker:
		return "attacker"
	case Defender:
		return "defender"
	default:
		return "draw"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (w Winner) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *Winner) UnmarshalText(b []byte) error {
	switch string(b) {
	case "attacker":
		*w = Attacker
	case "defender":
		*w = Defender
	case "draw":
		*w = Draw
	default:
		return fmt.Errorf("unknown winner %q", b)
	}
	return nil
}

// Participants defines one battle. The three unit lists are disjoint;
// attacking and defending units must stand in Territory, bombarding units
// fire from outside it.
type Participants struct {
	Territory      string
	Attacker       Player
	Defender       Player
	Attacking      []*Unit
	Defending      []*Unit
	Bombarding     []*Unit
	RequireCapture bool
	// RetreatTo lists territories the attacker may withdraw to.
	RetreatTo []string
}

// RoundResult records one round. Hits count every hit a side scored that
// round (AA, bombardment, sneak attack and main fire).
type RoundResult struct {
	Round           int      `json:"round"`
	AttackerRolls   []int    `json:"attacker_rolls"`
	DefenderRolls   []int    `json:"defender_rolls"`
	AttackerHits    int      `json:"attacker_hits"`
	DefenderHits    int      `json:"defender_hits"`
	AttackerKilled  []string `json:"attacker_killed,omitempty"`
	AttackerDamaged []string `json:"attacker_damaged,omitempty"`
	DefenderKilled  []string `json:"defender_killed,omitempty"`
	DefenderDamaged []string `json:"defender_damaged,omitempty"`
	// Defenseless lists units destroyed because they could not fire back.
	Defenseless []string `json:"defenseless,omitempty"`
	Warnings    int      `json:"warnings,omitempty"`
}

// AttackerCasualties returns the hits the attacker absorbed this round.
func (r RoundResult) AttackerCasualties() int {
	return len(r.AttackerKilled) + len(r.AttackerDamaged)
}

// DefenderCasualties returns the hits the defender absorbed this round.
func (r RoundResult) DefenderCasualties() int {
	return len(r.DefenderKilled) + len(r.DefenderDamaged)
}

// Outcome is the terminal record of one battle. Unit slices hold copies,
// so an Outcome stays valid after the board it was fought on is reverted.
type Outcome struct {
	Winner          Winner        `json:"winner"`
	Attacking       []Unit        `json:"-"`
	Defending       []Unit        `json:"-"`
	Rounds          int           `json:"rounds"`
	AttackerTUVLost int           `json:"attacker_tuv_lost"`
	DefenderTUVLost int           `json:"defender_tuv_lost"`
	Retreated       bool          `json:"retreated"`
	Captured        bool          `json:"captured"`
	Log             []RoundResult `json:"log,omitempty"`
}

// AttackingLeft returns the number of attacking units that survived.
func (o Outcome) AttackingLeft() int {
	return len(o.Attacking)
}

// DefendingLeft returns the number of defending units that survived.
func (o Outcome) DefendingLeft() int {
	return len(o.Defending)
}
