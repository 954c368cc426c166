package battle

// firingStrengths returns each unit's strength for this round on the given
// side, including territory effects and artillery support. Each artillery
// piece supports one supportable unit, in list order.
func firingStrengths(units []*Unit, attacking bool, territory *Territory) map[*Unit]int {
	support := 0
	if attacking {
		for _, u := range units {
			if u.Type.IsArtillery {
				support++
			}
		}
	}
	out := make(map[*Unit]int, len(units))
	for _, u := range units {
		s := u.Type.Strength(attacking)
		if territory != nil {
			for _, e := range territory.Effects {
				if !e.applies(u.Type) {
					continue
				}
				if attacking {
					s += e.AttackMod
				} else {
					s += e.DefenseMod
				}
			}
		}
		if attacking && support > 0 && u.Type.ArtillerySupportable && u.Type.Strength(attacking) > 0 {
			s++
			support--
		}
		if s < 0 {
			s = 0
		}
		out[u] = s
	}
	return out
}

// EstimateStrength is a cheap score of a side's fighting value: total dice
// power weighted by the hits each unit can still absorb, so two-hit units
// count double, plus one point per remaining hit. It runs no dice.
func EstimateStrength(units []*Unit, attacking bool, territory *Territory) float64 {
	strengths := firingStrengths(units, attacking, territory)
	score := 0.0
	for _, u := range units {
		power := strengths[u] * u.Type.Rolls(attacking)
		hits := u.HitsLeft()
		score += float64(power*hits + hits)
	}
	return score
}
