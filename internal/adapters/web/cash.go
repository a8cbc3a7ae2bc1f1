package web

import (
	"net/http"

	"github.com/shopspring/decimal"
)

// currentSession handles GET /api/cash/session.
func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	res, err := h.svc.CurrentSession(r.Context(), claims.StoreID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// openSession handles POST /api/cash/session/open.
func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	var req struct {
		OpeningBalance decimal.Decimal `json:"opening_balance"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.OpenSession(r.Context(), claims.Actor(), req.OpeningBalance)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// closeSession handles POST /api/cash/session/close.
func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	var req struct {
		SessionID      int             `json:"session_id"`
		ClosingBalance decimal.Decimal `json:"closing_balance"`
		Notes          string          `json:"notes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.CloseSession(r.Context(), claims.Actor(), req.SessionID, req.ClosingBalance, req.Notes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// recordExpense handles POST /api/cash/expenses.
func (h *Handler) recordExpense(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	var req struct {
		Amount    decimal.Decimal `json:"amount"`
		Reference string          `json:"reference"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.RecordExpense(r.Context(), claims.Actor(), req.Amount, req.Reference)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}
