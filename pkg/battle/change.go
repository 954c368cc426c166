package battle

import "fmt"

// Change is a reversible mutation of a GameData. Applying a change returns
// the change that exactly undoes it, so a log of returned inverses can
// restore the prior state mechanically.
type Change interface {
	apply(gd *GameData) (Change, error)
}

// Mutator is how the combat engine writes to the board.
type Mutator interface {
	Perform(c Change) error
}

// AddUnits appends units to a territory.
type AddUnits struct {
	Territory string
	Units     []*Unit
}

func (c AddUnits) apply(gd *GameData) (Change, error) {
	t, err := gd.Territory(c.Territory)
	if err != nil {
		return nil, err
	}
	t.Units = append(t.Units, c.Units...)
	return RemoveUnits{Territory: c.Territory, Units: c.Units}, nil
}

// RemoveUnits takes units out of a territory. Units not present are an error.
type RemoveUnits struct {
	Territory string
	Units     []*Unit
}

func (c RemoveUnits) apply(gd *GameData) (Change, error) {
	t, err := gd.Territory(c.Territory)
	if err != nil {
		return nil, err
	}
	if len(c.Units) == 0 {
		return insertUnits{Territory: c.Territory}, nil
	}
	drop := make(map[*Unit]bool, len(c.Units))
	for _, u := range c.Units {
		drop[u] = true
	}
	inv := insertUnits{Territory: c.Territory}
	kept := make([]*Unit, 0, len(t.Units))
	for i, u := range t.Units {
		if drop[u] {
			inv.Positions = append(inv.Positions, i)
			inv.Units = append(inv.Units, u)
			delete(drop, u)
			continue
		}
		kept = append(kept, u)
	}
	if len(drop) > 0 {
		return nil, fmt.Errorf("remove units from %s: %d not present", c.Territory, len(drop))
	}
	t.Units = kept
	return inv, nil
}

// insertUnits puts units back at the positions they were removed from.
// Positions are ascending indices into the restored slice.
type insertUnits struct {
	Territory string
	Positions []int
	Units     []*Unit
}

func (c insertUnits) apply(gd *GameData) (Change, error) {
	t, err := gd.Territory(c.Territory)
	if err != nil {
		return nil, err
	}
	restored := make([]*Unit, 0, len(t.Units)+len(c.Units))
	src, next := 0, 0
	for i := 0; i < len(t.Units)+len(c.Units); i++ {
		if next < len(c.Positions) && c.Positions[next] == i {
			restored = append(restored, c.Units[next])
			next++
			continue
		}
		if src >= len(t.Units) {
			return nil, fmt.Errorf("insert units into %s: position out of range", c.Territory)
		}
		restored = append(restored, t.Units[src])
		src++
	}
	t.Units = restored
	return RemoveUnits{Territory: c.Territory, Units: c.Units}, nil
}

// MoveUnits relocates units between territories.
func MoveUnits(from, to string, units []*Unit) Change {
	return Composite{
		RemoveUnits{Territory: from, Units: units},
		AddUnits{Territory: to, Units: units},
	}
}

// SetDamage sets the damage carried by one unit.
type SetDamage struct {
	Unit   *Unit
	Damage int
}

func (c SetDamage) apply(*GameData) (Change, error) {
	old := c.Unit.Damage
	c.Unit.Damage = c.Damage
	return SetDamage{Unit: c.Unit, Damage: old}, nil
}

// SetAmphibious marks whether a unit assaults from the sea this turn.
type SetAmphibious struct {
	Unit       *Unit
	Amphibious bool
}

func (c SetAmphibious) apply(*GameData) (Change, error) {
	old := c.Unit.Amphibious
	c.Unit.Amphibious = c.Amphibious
	return SetAmphibious{Unit: c.Unit, Amphibious: old}, nil
}

// SetOwner changes who owns a territory.
type SetOwner struct {
	Territory string
	Owner     Player
}

func (c SetOwner) apply(gd *GameData) (Change, error) {
	t, err := gd.Territory(c.Territory)
	if err != nil {
		return nil, err
	}
	old := t.Owner
	t.Owner = c.Owner
	return SetOwner{Territory: c.Territory, Owner: old}, nil
}

// Composite applies its changes in order. A failure part-way undoes the
// changes already applied.
type Composite []Change

func (c Composite) apply(gd *GameData) (Change, error) {
	inv := make(Composite, 0, len(c))
	for _, ch := range c {
		undo, err := ch.apply(gd)
		if err != nil {
			for i := len(inv) - 1; i >= 0; i-- {
				inv[i].apply(gd)
			}
			return nil, err
		}
		inv = append(inv, undo)
	}
	// Undo runs newest-first.
	for i, j := 0, len(inv)-1; i < j; i, j = i+1, j-1 {
		inv[i], inv[j] = inv[j], inv[i]
	}
	return inv, nil
}

// ChangeLog applies changes to one GameData and records their inverses.
type ChangeLog struct {
	data    *GameData
	inverse []Change
}

// NewChangeLog binds a log to gd.
func NewChangeLog(gd *GameData) *ChangeLog {
	return &ChangeLog{data: gd}
}

// Data returns the GameData the log writes to.
func (l *ChangeLog) Data() *GameData {
	return l.data
}

// Perform applies c and records its inverse.
func (l *ChangeLog) Perform(c Change) error {
	undo, err := c.apply(l.data)
	if err != nil {
		return err
	}
	l.inverse = append(l.inverse, undo)
	return nil
}

// Len returns the number of recorded changes.
func (l *ChangeLog) Len() int {
	return len(l.inverse)
}

// Rollback undoes every recorded change, newest first, and clears the log.
func (l *ChangeLog) Rollback() error {
	for i := len(l.inverse) - 1; i >= 0; i-- {
		if _, err := l.inverse[i].apply(l.data); err != nil {
			l.inverse = l.inverse[:i]
			return fmt.Errorf("rollback change %d: %w", i, err)
		}
	}
	l.inverse = l.inverse[:0]
	return nil
}

// Commit forgets the recorded changes, keeping their effects.
func (l *ChangeLog) Commit() {
	l.inverse = l.inverse[:0]
}
