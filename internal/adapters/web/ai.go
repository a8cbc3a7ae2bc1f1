package web

import (
	"net/http"
	"strings"

	"shopledger/internal/core"
)

// interpretCommand handles POST /api/ai/interpret. It returns a proposal or a
// clarification question; nothing is executed.
func (h *Handler) interpretCommand(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, r, "text is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	res, err := h.svc.InterpretCommand(r.Context(), claims.StoreID, req.Text)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// executeProposal handles POST /api/ai/execute. The client echoes back the
// proposal it received from interpret; the server re-validates it before
// running anything, so a tampered or stale proposal is rejected, not trusted.
func (h *Handler) executeProposal(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	var req struct {
		Proposal core.CommandProposal `json:"proposal"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.ExecuteProposal(r.Context(), claims.Actor(), req.Proposal)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}
