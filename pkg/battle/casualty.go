package battle

import (
	"errors"
	"sort"
)

// ErrCasualtyMismatch is a soft error: a supplied casualty list did not
// absorb the required number of hits and a fallback list was used instead.
var ErrCasualtyMismatch = errors.New("casualty count mismatch")

// CasualtyList is the result of a casualty selection. A unit appears in
// Damaged for each first hit it takes and in Killed when destroyed, so a
// fresh two-hit unit destroyed outright appears in both. Size therefore
// equals the number of hits absorbed.
type CasualtyList struct {
	Killed  []*Unit
	Damaged []*Unit
}

// Size returns the number of hits the list absorbs.
func (c CasualtyList) Size() int {
	return len(c.Killed) + len(c.Damaged)
}

// IsEmpty reports whether nothing was selected.
func (c CasualtyList) IsEmpty() bool {
	return len(c.Killed) == 0 && len(c.Damaged) == 0
}

// CasualtyRequest describes one side's hits to allocate.
type CasualtyRequest struct {
	Player     Player
	Candidates []*Unit
	Hits       int
	Attacking  bool
	Territory  *Territory
	// KeepLandUnit asks the selector to leave at least one land unit alive
	// when a non-land unit can be lost instead.
	KeepLandUnit bool
	// Default, when set, is used verbatim.
	Default *CasualtyList
}

// Required returns how many hits must be absorbed: the hits scored, capped
// by what the candidates can take.
func (r CasualtyRequest) Required() int {
	capacity := 0
	for _, u := range r.Candidates {
		capacity += u.HitsLeft()
	}
	return min(r.Hits, capacity)
}

// CasualtySelector picks casualties: free hits on undamaged multi-hit units
// first, then the least valuable units.
type CasualtySelector struct {
	// OrderOfLosses lists unit type names to lose first, in order. Types
	// not listed follow, cheapest first.
	OrderOfLosses []string
}

// Select returns the casualties for req. When req.Default is set it is
// returned as is, with ErrCasualtyMismatch if its size is wrong.
func (s CasualtySelector) Select(req CasualtyRequest) (CasualtyList, error) {
	required := req.Required()
	if req.Default != nil {
		if req.Default.Size() != required {
			return *req.Default, ErrCasualtyMismatch
		}
		return *req.Default, nil
	}
	if required <= 0 {
		return CasualtyList{}, nil
	}

	var out CasualtyList
	remaining := required
	for _, u := range s.ordered(req, true) {
		if remaining == 0 {
			break
		}
		if u.HitsLeft() > 1 {
			out.Damaged = append(out.Damaged, u)
			remaining--
		}
	}
	for _, u := range s.ordered(req, false) {
		if remaining == 0 {
			break
		}
		cost := killCost(u, out.Damaged)
		if cost <= remaining {
			out.Killed = append(out.Killed, u)
			remaining -= cost
		}
	}

	if req.KeepLandUnit {
		keepOneLand(req.Candidates, &out)
	}
	return out, nil
}

// killCost is the hits still needed to destroy u after the damage pass.
func killCost(u *Unit, damaged []*Unit) int {
	c := u.HitsLeft()
	if containsUnit(damaged, u) {
		c--
	}
	return c
}

// ordered sorts candidates by loss priority. For the damage pass the most
// valuable units soak first; for the kill pass the cheapest die first.
func (s CasualtySelector) ordered(req CasualtyRequest, damagePass bool) []*Unit {
	rank := make(map[string]int, len(s.OrderOfLosses))
	for i, name := range s.OrderOfLosses {
		rank[name] = i
	}
	strengths := firingStrengths(req.Candidates, req.Attacking, req.Territory)
	units := make([]*Unit, len(req.Candidates))
	copy(units, req.Candidates)
	less := func(a, b *Unit) bool {
		ra, oka := rank[a.Type.Name]
		rb, okb := rank[b.Type.Name]
		if oka != okb {
			return oka
		}
		if oka && ra != rb {
			return ra < rb
		}
		if a.Type.Cost != b.Type.Cost {
			return a.Type.Cost < b.Type.Cost
		}
		pa := strengths[a] * a.Type.Rolls(req.Attacking)
		pb := strengths[b] * b.Type.Rolls(req.Attacking)
		if pa != pb {
			return pa < pb
		}
		return a.ID < b.ID
	}
	sort.SliceStable(units, func(i, j int) bool {
		if damagePass {
			return less(units[j], units[i])
		}
		return less(units[i], units[j])
	})
	return units
}

// keepOneLand swaps the most expensive doomed land unit for the cheapest
// surviving non-land unit costing the same number of hits, if every land
// unit would otherwise die.
func keepOneLand(candidates []*Unit, out *CasualtyList) {
	var doomed *Unit
	for _, u := range candidates {
		if !u.Type.IsLand() {
			continue
		}
		if !containsUnit(out.Killed, u) {
			return
		}
		if doomed == nil || u.Type.Cost > doomed.Type.Cost ||
			(u.Type.Cost == doomed.Type.Cost && u.ID > doomed.ID) {
			doomed = u
		}
	}
	if doomed == nil {
		return
	}
	need := killCost(doomed, out.Damaged)
	var spare *Unit
	for _, u := range candidates {
		if u.Type.IsLand() || containsUnit(out.Killed, u) || killCost(u, out.Damaged) != need {
			continue
		}
		if spare == nil || u.Type.Cost < spare.Type.Cost ||
			(u.Type.Cost == spare.Type.Cost && u.ID < spare.ID) {
			spare = u
		}
	}
	if spare == nil {
		return
	}
	for i, u := range out.Killed {
		if u == doomed {
			out.Killed[i] = spare
			return
		}
	}
}

// validCasualties checks a list chosen by a decision callback against the
// request: known units, consistent damage, and exactly the required size.
func validCasualties(list CasualtyList, req CasualtyRequest) bool {
	if list.Size() != req.Required() {
		return false
	}
	seen := make(map[*Unit]bool)
	for _, u := range list.Damaged {
		if seen[u] || !containsUnit(req.Candidates, u) || u.HitsLeft() < 2 {
			return false
		}
		seen[u] = true
	}
	killed := make(map[*Unit]bool)
	for _, u := range list.Killed {
		if killed[u] || !containsUnit(req.Candidates, u) {
			return false
		}
		killed[u] = true
		if killCost(u, list.Damaged) != 1 {
			return false
		}
	}
	return true
}
