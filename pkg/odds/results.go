package odds

import (
	"time"

	"github.com/freeeve/warroom/pkg/battle"
)

// AggregateResults accumulates outcomes of repeated runs of one battle.
// Accumulation is order-independent, so per-worker results can be merged in
// any order.
type AggregateResults struct {
	outcomes  []battle.Outcome
	Requested int
	Planned   int
	Elapsed   time.Duration
	// Cancelled is set when fewer runs completed than were planned.
	Cancelled bool
}

// Add records one outcome.
func (r *AggregateResults) Add(o battle.Outcome) {
	r.outcomes = append(r.outcomes, o)
}

// Merge folds other's outcomes into r.
func (r *AggregateResults) Merge(other *AggregateResults) {
	if other == nil {
		return
	}
	r.outcomes = append(r.outcomes, other.outcomes...)
}

// RunCount returns the number of completed runs.
func (r *AggregateResults) RunCount() int {
	return len(r.outcomes)
}

// Outcomes returns a copy of the recorded outcomes.
func (r *AggregateResults) Outcomes() []battle.Outcome {
	return append([]battle.Outcome(nil), r.outcomes...)
}

func (r *AggregateResults) fraction(w battle.Winner) float64 {
	if len(r.outcomes) == 0 {
		return 0
	}
	n := 0
	for _, o := range r.outcomes {
		if o.Winner == w {
			n++
		}
	}
	return float64(n) / float64(len(r.outcomes))
}

func (r *AggregateResults) mean(f func(battle.Outcome) float64, keep func(battle.Outcome) bool) float64 {
	var sum float64
	n := 0
	for _, o := range r.outcomes {
		if keep != nil && !keep(o) {
			continue
		}
		sum += f(o)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (r *AggregateResults) AttackerWinFraction() float64 { return r.fraction(battle.Attacker) }
func (r *AggregateResults) DefenderWinFraction() float64 { return r.fraction(battle.Defender) }
func (r *AggregateResults) DrawFraction() float64        { return r.fraction(battle.Draw) }

func attackingLeft(o battle.Outcome) float64 { return float64(o.AttackingLeft()) }
func defendingLeft(o battle.Outcome) float64 { return float64(o.DefendingLeft()) }
func attackerWon(o battle.Outcome) bool      { return o.Winner == battle.Attacker }
func defenderWon(o battle.Outcome) bool      { return o.Winner == battle.Defender }

// AvgAttackingUnitsLeft averages surviving attackers over all runs.
func (r *AggregateResults) AvgAttackingUnitsLeft() float64 {
	return r.mean(attackingLeft, nil)
}

// AvgDefendingUnitsLeft averages surviving defenders over all runs.
func (r *AggregateResults) AvgDefendingUnitsLeft() float64 {
	return r.mean(defendingLeft, nil)
}

// AvgAttackingUnitsLeftWhenAttackerWins averages surviving attackers over
// the runs the attacker won.
func (r *AggregateResults) AvgAttackingUnitsLeftWhenAttackerWins() float64 {
	return r.mean(attackingLeft, attackerWon)
}

// AvgDefendingUnitsLeftWhenDefenderWins averages surviving defenders over
// the runs the defender won.
func (r *AggregateResults) AvgDefendingUnitsLeftWhenDefenderWins() float64 {
	return r.mean(defendingLeft, defenderWon)
}

func (r *AggregateResults) AvgRounds() float64 {
	return r.mean(func(o battle.Outcome) float64 { return float64(o.Rounds) }, nil)
}

func (r *AggregateResults) AvgAttackerTUVLost() float64 {
	return r.mean(func(o battle.Outcome) float64 { return float64(o.AttackerTUVLost) }, nil)
}

func (r *AggregateResults) AvgDefenderTUVLost() float64 {
	return r.mean(func(o battle.Outcome) float64 { return float64(o.DefenderTUVLost) }, nil)
}

// AvgTUVSwing is the defender's average loss minus the attacker's; positive
// favours the attacker.
func (r *AggregateResults) AvgTUVSwing() float64 {
	return r.AvgDefenderTUVLost() - r.AvgAttackerTUVLost()
}

// Summary is the wire form of AggregateResults.
type Summary struct {
	Runs                   int     `json:"runs"`
	Requested              int     `json:"requested"`
	Planned                int     `json:"planned"`
	AttackerWin            float64 `json:"attacker_win"`
	DefenderWin            float64 `json:"defender_win"`
	Draw                   float64 `json:"draw"`
	AvgAttackingLeft       float64 `json:"avg_attacking_left"`
	AvgDefendingLeft       float64 `json:"avg_defending_left"`
	AvgAttackingLeftOnWin  float64 `json:"avg_attacking_left_on_win"`
	AvgDefendingLeftOnLoss float64 `json:"avg_defending_left_on_loss"`
	AvgRounds              float64 `json:"avg_rounds"`
	AttackerTUVLost        float64 `json:"attacker_tuv_lost"`
	DefenderTUVLost        float64 `json:"defender_tuv_lost"`
	TUVSwing               float64 `json:"tuv_swing"`
	ElapsedMs              int64   `json:"elapsed_ms"`
	Cancelled              bool    `json:"cancelled"`
}

// Summary reduces the results to their reported figures.
func (r *AggregateResults) Summary() Summary {
	return Summary{
		Runs:                   r.RunCount(),
		Requested:              r.Requested,
		Planned:                r.Planned,
		AttackerWin:            r.AttackerWinFraction(),
		DefenderWin:            r.DefenderWinFraction(),
		Draw:                   r.DrawFraction(),
		AvgAttackingLeft:       r.AvgAttackingUnitsLeft(),
		AvgDefendingLeft:       r.AvgDefendingUnitsLeft(),
		AvgAttackingLeftOnWin:  r.AvgAttackingUnitsLeftWhenAttackerWins(),
		AvgDefendingLeftOnLoss: r.AvgDefendingUnitsLeftWhenDefenderWins(),
		AvgRounds:              r.AvgRounds(),
		AttackerTUVLost:        r.AvgAttackerTUVLost(),
		DefenderTUVLost:        r.AvgDefenderTUVLost(),
		TUVSwing:               r.AvgTUVSwing(),
		ElapsedMs:              r.Elapsed.Milliseconds(),
		Cancelled:              r.Cancelled,
	}
}
