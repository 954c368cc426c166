package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/freeeve/warroom/internal/repository"
	"github.com/freeeve/warroom/pkg/battle"
)

// StateRepo stores the authoritative state of games: one row per game for
// the ruleset, one per territory and one per unit.
type StateRepo struct {
	db *sql.DB
}

// NewStateRepo creates a StateRepo.
func NewStateRepo(db *sql.DB) *StateRepo {
	return &StateRepo{db: db}
}

// LoadState reads a game's territories and units. Units keep the order
// they were saved in.
func (r *StateRepo) LoadState(ctx context.Context, gameID string) (battle.StateRecord, error) {
	var rec battle.StateRecord
	var rules []byte
	err := r.db.QueryRowContext(ctx, `SELECT rules FROM games WHERE id = $1`, gameID).Scan(&rules)
	if err == sql.ErrNoRows {
		return rec, fmt.Errorf("game %s: %w", gameID, repository.ErrNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("load game: %w", err)
	}
	if err := json.Unmarshal(rules, &rec.Rules); err != nil {
		return rec, fmt.Errorf("decode rules: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT name, owner, water, effects FROM territories WHERE game_id = $1 ORDER BY name`, gameID)
	if err != nil {
		return rec, fmt.Errorf("load territories: %w", err)
	}
	defer rows.Close()

	byName := make(map[string]int)
	for rows.Next() {
		var t battle.TerritoryRecord
		var effects []byte
		if err := rows.Scan(&t.Name, &t.Owner, &t.IsWater, &effects); err != nil {
			return rec, fmt.Errorf("scan territory: %w", err)
		}
		if err := json.Unmarshal(effects, &t.Effects); err != nil {
			return rec, fmt.Errorf("territory %s effects: %w", t.Name, err)
		}
		byName[t.Name] = len(rec.Territories)
		rec.Territories = append(rec.Territories, t)
	}
	if err := rows.Err(); err != nil {
		return rec, err
	}

	units, err := r.db.QueryContext(ctx,
		`SELECT id, territory, type, owner, damage, transported_by, amphibious
		 FROM units WHERE game_id = $1 ORDER BY territory, position`, gameID)
	if err != nil {
		return rec, fmt.Errorf("load units: %w", err)
	}
	defer units.Close()

	for units.Next() {
		var u battle.UnitRecord
		var territory string
		if err := units.Scan(&u.ID, &territory, &u.Type, &u.Owner, &u.Damage, &u.TransportedBy, &u.Amphibious); err != nil {
			return rec, fmt.Errorf("scan unit: %w", err)
		}
		i, ok := byName[territory]
		if !ok {
			return rec, fmt.Errorf("unit %s in unknown territory %s", u.ID, territory)
		}
		rec.Territories[i].Units = append(rec.Territories[i].Units, u)
	}
	return rec, units.Err()
}

// SaveState replaces a game's stored state in one transaction.
func (r *StateRepo) SaveState(ctx context.Context, gameID string, rec battle.StateRecord) error {
	rules, err := json.Marshal(rec.Rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO games (id, rules) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET rules = EXCLUDED.rules, updated_at = now()`,
		gameID, rules)
	if err != nil {
		return fmt.Errorf("upsert game: %w", err)
	}
	// Units go with their territories.
	if _, err := tx.ExecContext(ctx, `DELETE FROM territories WHERE game_id = $1`, gameID); err != nil {
		return fmt.Errorf("clear territories: %w", err)
	}

	tstmt, err := tx.PrepareContext(ctx,
		`INSERT INTO territories (game_id, name, owner, water, effects) VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("prepare insert territory: %w", err)
	}
	defer tstmt.Close()
	for _, t := range rec.Territories {
		effects := t.Effects
		if effects == nil {
			effects = []battle.Effect{}
		}
		eff, err := json.Marshal(effects)
		if err != nil {
			return fmt.Errorf("encode effects: %w", err)
		}
		if _, err := tstmt.ExecContext(ctx, gameID, t.Name, t.Owner, t.IsWater, eff); err != nil {
			return fmt.Errorf("insert territory %s: %w", t.Name, err)
		}
	}

	ustmt, err := tx.PrepareContext(ctx, pq.CopyIn("units",
		"game_id", "id", "territory", "position", "type", "owner", "damage", "transported_by", "amphibious"))
	if err != nil {
		return fmt.Errorf("prepare copy units: %w", err)
	}
	for _, t := range rec.Territories {
		for i, u := range t.Units {
			_, err := ustmt.ExecContext(ctx, gameID, u.ID, t.Name, i, u.Type, string(u.Owner), u.Damage, u.TransportedBy, u.Amphibious)
			if err != nil {
				ustmt.Close()
				return fmt.Errorf("copy unit %s: %w", u.ID, err)
			}
		}
	}
	if _, err := ustmt.ExecContext(ctx); err != nil {
		ustmt.Close()
		return fmt.Errorf("flush units: %w", err)
	}
	if err := ustmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}
	return tx.Commit()
}
