package handler

import (
	"net/http"

	"github.com/freeeve/warroom/internal/auth"
	"github.com/freeeve/warroom/internal/middleware"
)

// maxBodyBytes bounds request bodies; battle requests are small.
const maxBodyBytes = 1 << 20

// NewRouter wires the API routes. The WebSocket endpoint authenticates
// itself; everything else under /api/v1 goes through the JWT middleware.
func NewRouter(odds *OddsHandler, ws *WSHandler, jwtMgr *auth.JWTManager, checks map[string]HealthCheck) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", Health(checks))

	api := http.NewServeMux()
	api.HandleFunc("POST /games/{id}/odds", odds.Calculate)
	api.HandleFunc("POST /games/{id}/battles", odds.Adjudicate)
	api.HandleFunc("DELETE /odds/{calcId}", odds.Cancel)
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", auth.Middleware(jwtMgr)(api)))
	mux.HandleFunc("GET /api/v1/ws", ws.ServeWS)

	return middleware.Chain(mux,
		middleware.Recover,
		middleware.Logger,
		middleware.CORS("*"),
		middleware.MaxBody(maxBodyBytes),
		middleware.JSON,
	)
}
