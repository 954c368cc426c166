package service

// Event types pushed to subscribers of a game.
const (
	EventOddsProgress   = "odds_progress"
	EventOddsFinished   = "odds_finished"
	EventBattleResolved = "battle_resolved"
)

// Broadcaster sends real-time events to connected clients.
// Implemented by the WebSocket hub.
type Broadcaster interface {
	BroadcastGameEvent(gameID string, eventType string, data any)
}

// NoopBroadcaster is a no-op implementation for the CLI and tests.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastGameEvent(string, string, any) {}
