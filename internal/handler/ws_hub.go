package handler

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/warroom/internal/auth"
)

// Server-only event types; game events are named in the service package.
const (
	EventConnected = "connected"
	EventError     = "error"
)

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type   string `json:"type"`
	GameID string `json:"game_id"`
	Data   any    `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	GameID string `json:"game_id"`
}

// WSConn is one client connection. claims decide which games it may
// follow.
type WSConn struct {
	conn   *websocket.Conn
	claims *auth.Claims
	send   chan []byte
}

func (c *WSConn) userID() string {
	if c.claims == nil {
		return ""
	}
	return c.claims.UserID
}

// Hub fans game events out to subscribed connections.
type Hub struct {
	mu    sync.RWMutex
	conns map[*WSConn]struct{}
	games map[string]map[*WSConn]struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[*WSConn]struct{}),
		games: make(map[string]map[*WSConn]struct{}),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

// Unregister removes a connection and its subscriptions, and closes its
// send channel.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; !ok {
		return
	}
	delete(h.conns, c)
	for gameID := range h.games {
		h.drop(c, gameID)
	}
	close(c.send)
}

// Subscribe adds c to gameID's channel if its claims allow it.
func (h *Hub) Subscribe(c *WSConn, gameID string) bool {
	if !c.claims.CanAccess(gameID) {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.games[gameID] == nil {
		h.games[gameID] = make(map[*WSConn]struct{})
	}
	h.games[gameID][c] = struct{}{}
	return true
}

// Unsubscribe removes a connection from a game channel.
func (h *Hub) Unsubscribe(c *WSConn, gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c, gameID)
}

// drop requires h.mu held for writing.
func (h *Hub) drop(c *WSConn, gameID string) {
	conns, ok := h.games[gameID]
	if !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.games, gameID)
	}
}

// BroadcastGameEvent implements service.Broadcaster. Slow clients miss
// events rather than stall the calculation that emits them.
func (h *Hub) BroadcastGameEvent(gameID, eventType string, data any) {
	msg, err := json.Marshal(WSEvent{Type: eventType, GameID: gameID, Data: data})
	if err != nil {
		log.Error().Err(err).Str("gameId", gameID).Str("type", eventType).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.games[gameID] {
		select {
		case c.send <- msg:
		default:
			log.Warn().Str("userId", c.userID()).Str("gameId", gameID).Msg("Dropping WebSocket message, buffer full")
		}
	}
}

// sendTo queues an event for one connection.
func (h *Hub) sendTo(c *WSConn, ev WSEvent) {
	msg, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.conns[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// GameSubscriberCount returns the number of connections subscribed to a game.
func (h *Hub) GameSubscriberCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.games[gameID])
}
