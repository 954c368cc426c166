package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/freeeve/warroom/internal/repository"
	"github.com/freeeve/warroom/pkg/battle"
)

type mockStateRepo struct {
	states map[string]battle.StateRecord
	loads  int
	saves  int
}

func newMockStateRepo() *mockStateRepo {
	return &mockStateRepo{states: make(map[string]battle.StateRecord)}
}

func (m *mockStateRepo) LoadState(_ context.Context, gameID string) (battle.StateRecord, error) {
	m.loads++
	rec, ok := m.states[gameID]
	if !ok {
		return rec, fmt.Errorf("game %s: %w", gameID, repository.ErrNotFound)
	}
	return rec, nil
}

func (m *mockStateRepo) SaveState(_ context.Context, gameID string, rec battle.StateRecord) error {
	m.saves++
	m.states[gameID] = rec
	return nil
}

type mockStateCache struct {
	states  map[string]json.RawMessage
	getErr  error
	setErr  error
	deleted []string
}

func newMockStateCache() *mockStateCache {
	return &mockStateCache{states: make(map[string]json.RawMessage)}
}

func (m *mockStateCache) GetState(_ context.Context, gameID string) (json.RawMessage, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.states[gameID], nil
}

func (m *mockStateCache) SetState(_ context.Context, gameID string, state json.RawMessage) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.states[gameID] = state
	return nil
}

func (m *mockStateCache) DeleteState(_ context.Context, gameID string) error {
	m.deleted = append(m.deleted, gameID)
	delete(m.states, gameID)
	return nil
}

var errCacheDown = errors.New("cache down")

type event struct {
	gameID string
	kind   string
	data   any
}

// recordingBroadcaster keeps every event. onEvent, if set, runs after the
// event is recorded and outside the lock.
type recordingBroadcaster struct {
	mu      sync.Mutex
	events  []event
	onEvent func(event)
}

func (b *recordingBroadcaster) BroadcastGameEvent(gameID, kind string, data any) {
	e := event{gameID: gameID, kind: kind, data: data}
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
	if b.onEvent != nil {
		b.onEvent(e)
	}
}

func (b *recordingBroadcaster) ofKind(kind string) []event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []event
	for _, e := range b.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}
