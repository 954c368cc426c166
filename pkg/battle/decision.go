package battle

// CasualtySelection chooses which units absorb hits.
type CasualtySelection interface {
	SelectCasualties(req CasualtyRequest) CasualtyList
}

// RetreatQuery is what a side knows when offered to withdraw.
type RetreatQuery struct {
	Round     int
	Player    Player
	Territory string
	Attacking bool
	Own       []*Unit
	Enemy     []*Unit
	Options   []string
}

// RetreatDecision answers withdrawal questions. Retreat returns the chosen
// territory and true to withdraw; an empty territory continues the battle.
type RetreatDecision interface {
	Retreat(q RetreatQuery) (string, bool)
	Submerge(q RetreatQuery) bool
}

// Decider is the full set of questions the engine asks a side.
type Decider interface {
	CasualtySelection
	RetreatDecision
}

// HeadlessDecider answers every question immediately. It is used for
// simulated battles where no player can be asked.
type HeadlessDecider struct {
	Selector CasualtySelector
	// KeepOneLandUnit keeps an attacking land unit alive for the capture
	// when a non-land unit can be lost instead.
	KeepOneLandUnit bool
	// RetreatAfterRound retreats once that round is fought; 0 never.
	RetreatAfterRound int
	// RetreatWhenUnitsLeft retreats once this many units or fewer remain; 0 never.
	RetreatWhenUnitsLeft int
	// RetreatWhenOnlyAirLeft retreats when no attacking land or sea unit survives.
	RetreatWhenOnlyAirLeft bool
	// SubmergeSubs has defending submarines submerge whenever allowed.
	SubmergeSubs bool
}

// SelectCasualties ignores any default in req and applies its own selector.
func (d HeadlessDecider) SelectCasualties(req CasualtyRequest) CasualtyList {
	req.Default = nil
	if req.Attacking && d.KeepOneLandUnit {
		req.KeepLandUnit = true
	}
	list, _ := d.Selector.Select(req)
	return list
}

func (d HeadlessDecider) Retreat(q RetreatQuery) (string, bool) {
	if !q.Attacking || len(q.Own) == 0 {
		return "", false
	}
	retreat := false
	switch {
	case d.RetreatAfterRound > 0 && q.Round >= d.RetreatAfterRound:
		retreat = true
	case d.RetreatWhenUnitsLeft > 0 && len(q.Own) <= d.RetreatWhenUnitsLeft:
		retreat = true
	case d.RetreatWhenOnlyAirLeft && onlyAir(q.Own):
		retreat = true
	}
	if !retreat || len(q.Options) == 0 {
		return "", false
	}
	return q.Options[0], true
}

func (d HeadlessDecider) Submerge(q RetreatQuery) bool {
	return d.SubmergeSubs && !q.Attacking
}

func onlyAir(units []*Unit) bool {
	for _, u := range units {
		if !u.Type.IsAir {
			return false
		}
	}
	return len(units) > 0
}
