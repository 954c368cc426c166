package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/warroom/internal/repository"
	"github.com/freeeve/warroom/pkg/battle"
)

// stateLoader reads a game's state from the Redis cache, falling back to
// Postgres and refilling the cache on a miss.
type stateLoader struct {
	states  repository.StateRepository
	cache   repository.StateCache
	catalog *battle.Catalog
}

func (l *stateLoader) load(ctx context.Context, gameID string) (*battle.GameData, error) {
	raw, err := l.cache.GetState(ctx, gameID)
	if err != nil {
		// A cache outage only costs a database read.
		log.Warn().Err(err).Str("gameId", gameID).Msg("State cache read failed")
	}
	if raw != nil {
		gd, err := battle.DecodeState(raw, l.catalog)
		if err == nil {
			return gd, nil
		}
		log.Warn().Err(err).Str("gameId", gameID).Msg("Discarding undecodable cached state")
	}

	rec, err := l.states.LoadState(ctx, gameID)
	if err != nil {
		return nil, err
	}
	gd, err := rec.GameData(l.catalog)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", gameID, err)
	}
	if data, err := battle.EncodeState(gd); err == nil {
		if err := l.cache.SetState(ctx, gameID, data); err != nil {
			log.Warn().Err(err).Str("gameId", gameID).Msg("Failed to refill state cache")
		}
	}
	return gd, nil
}

// save writes Postgres first; the cache entry is replaced afterwards, or
// dropped if that fails so readers fall back to the database.
func (l *stateLoader) save(ctx context.Context, gameID string, gd *battle.GameData) error {
	if err := l.states.SaveState(ctx, gameID, gd.Record()); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	data, err := battle.EncodeState(gd)
	if err == nil {
		err = l.cache.SetState(ctx, gameID, data)
	}
	if err != nil {
		log.Warn().Err(err).Str("gameId", gameID).Msg("Failed to update state cache")
		if derr := l.cache.DeleteState(ctx, gameID); derr != nil {
			log.Error().Err(derr).Str("gameId", gameID).Msg("Failed to drop stale cached state")
		}
	}
	return nil
}
