package handler

import (
	"net/http"

	"github.com/freeeve/warroom/internal/auth"
	"github.com/freeeve/warroom/internal/service"
)

// OddsHandler serves odds calculations and battle adjudication.
type OddsHandler struct {
	svc *service.OddsService
}

// NewOddsHandler creates an OddsHandler.
func NewOddsHandler(svc *service.OddsService) *OddsHandler {
	return &OddsHandler{svc: svc}
}

// Calculate handles POST /api/v1/games/{id}/odds.
// The request blocks until the calculation finishes or is cancelled;
// progress is streamed to the game's WebSocket subscribers.
func (h *OddsHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	claims := auth.ClaimsFromContext(r.Context())
	if !claims.CanAccess(gameID) {
		writeServiceError(w, service.ErrNoAccess)
		return
	}

	var req service.BattleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Calculate(r.Context(), gameID, claims.UserID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Cancel handles DELETE /api/v1/odds/{calcId}.
func (h *OddsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cancel(r.PathValue("calcId"), auth.UserIDFromContext(r.Context())); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Adjudicate handles POST /api/v1/games/{id}/battles. Only admin tokens,
// which the game server holds, may change game state.
func (h *OddsHandler) Adjudicate(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil || !claims.Admin {
		writeServiceError(w, service.ErrNoAccess)
		return
	}

	var req service.BattleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Adjudicate(r.Context(), gameID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
