package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// stateTTL bounds how long an idle game's state stays cached. Every write
// refreshes it.
const stateTTL = 24 * time.Hour

// SetState stores the live state JSON of a game.
func (c *Client) SetState(ctx context.Context, gameID string, state json.RawMessage) error {
	return c.rdb.Set(ctx, c.stateKey(gameID), []byte(state), stateTTL).Err()
}

// GetState retrieves the live state JSON, or nil when the game is not cached.
func (c *Client) GetState(ctx context.Context, gameID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, c.stateKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game state: %w", err)
	}
	return json.RawMessage(data), nil
}

// DeleteState drops the cached state so the next read goes to Postgres.
func (c *Client) DeleteState(ctx context.Context, gameID string) error {
	return c.rdb.Del(ctx, c.stateKey(gameID)).Err()
}
