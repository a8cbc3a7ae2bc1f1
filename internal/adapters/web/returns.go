package web

import (
	"net/http"

	"shopledger/internal/app"
	"shopledger/internal/core"

	"github.com/shopspring/decimal"
)

// listReturns handles GET /api/returns?status=pending.
func (h *Handler) listReturns(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	res, err := h.svc.ListReturns(r.Context(), claims.StoreID, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// createReturn handles POST /api/returns.
func (h *Handler) createReturn(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	var req struct {
		SaleRef        string          `json:"sale_ref"`
		DocumentItemID int             `json:"document_item_id"`
		Qty            int             `json:"qty"`
		Reason         string          `json:"reason"`
		Condition      string          `json:"condition"`
		RefundAmount   decimal.Decimal `json:"refund_amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.CreateReturn(r.Context(), claims.Actor(), app.CreateReturnRequest{
		SaleRef:        req.SaleRef,
		DocumentItemID: req.DocumentItemID,
		Qty:            req.Qty,
		Reason:         req.Reason,
		Condition:      core.ReturnCondition(req.Condition),
		RefundAmount:   req.RefundAmount,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// approveReturn handles POST /api/returns/{id}/approve.
func (h *Handler) approveReturn(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := urlInt(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.ApproveReturn(r.Context(), claims.Actor(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// rejectReturn handles POST /api/returns/{id}/reject.
func (h *Handler) rejectReturn(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := urlInt(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.RejectReturn(r.Context(), claims.Actor(), id, req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// markReturnRefunded handles POST /api/returns/{id}/refund.
func (h *Handler) markReturnRefunded(w http.ResponseWriter, r *http.Request) {
	id, ok := urlInt(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		PaymentRef string `json:"payment_ref"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.MarkReturnRefunded(r.Context(), id, req.PaymentRef)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// completeReturn handles POST /api/returns/{id}/complete.
func (h *Handler) completeReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := urlInt(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.CompleteReturn(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}
