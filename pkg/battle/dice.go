package battle

import (
	"math/rand"
	"time"
)

// RandomSource yields uniformly distributed integers in [0, n).
// *rand.Rand satisfies it.
type RandomSource interface {
	Intn(n int) int
}

// NewRandomSource returns a math/rand source. Seed 0 seeds from the clock.
func NewRandomSource(seed int64) RandomSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// ScriptedSource replays fixed values, cycling when exhausted. Each value is
// reduced modulo n so one script works for any die size.
type ScriptedSource struct {
	Values []int
	pos    int
}

// NewScriptedSource returns a source replaying values.
func NewScriptedSource(values ...int) *ScriptedSource {
	return &ScriptedSource{Values: values}
}

func (s *ScriptedSource) Intn(n int) int {
	if len(s.Values) == 0 {
		return 0
	}
	v := s.Values[s.pos%len(s.Values)]
	s.pos++
	if v < 0 {
		v = -v
	}
	return v % n
}

// Consumed returns how many values have been drawn.
func (s *ScriptedSource) Consumed() int {
	return s.pos
}

// die is one die a firing unit rolls at a given strength.
type die struct {
	strength int
}

// rollDice rolls each die and counts hits. In low luck the dice are pooled:
// total power buys guaranteed hits and one die decides the remainder.
func rollDice(src RandomSource, dice []die, sides int, lowLuck bool) (hits int, rolls []int) {
	if len(dice) == 0 {
		return 0, nil
	}
	if lowLuck {
		power := 0
		for _, d := range dice {
			power += clampStrength(d.strength, sides)
		}
		hits = power / sides
		if rem := power % sides; rem > 0 {
			r := src.Intn(sides)
			rolls = append(rolls, r)
			if r < rem {
				hits++
			}
		}
		return hits, rolls
	}
	rolls = make([]int, 0, len(dice))
	for _, d := range dice {
		r := src.Intn(sides)
		rolls = append(rolls, r)
		if r < clampStrength(d.strength, sides) {
			hits++
		}
	}
	return hits, rolls
}

func clampStrength(s, sides int) int {
	if s < 0 {
		return 0
	}
	if s > sides {
		return sides
	}
	return s
}
