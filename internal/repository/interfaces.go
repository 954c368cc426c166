package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/freeeve/warroom/pkg/battle"
)

// ErrNotFound is returned when a game has no stored state.
var ErrNotFound = errors.New("not found")

// StateRepository persists the authoritative state of a game (Postgres).
type StateRepository interface {
	LoadState(ctx context.Context, gameID string) (battle.StateRecord, error)
	SaveState(ctx context.Context, gameID string, rec battle.StateRecord) error
}

// StateCache holds the live state of running games (Redis). GetState
// returns nil, nil on a miss.
type StateCache interface {
	GetState(ctx context.Context, gameID string) (json.RawMessage, error)
	SetState(ctx context.Context, gameID string, state json.RawMessage) error
	DeleteState(ctx context.Context, gameID string) error
}
