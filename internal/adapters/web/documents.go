package web

import (
	"net/http"

	"shopledger/internal/app"
	"shopledger/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type itemPayload struct {
	ProductCode string          `json:"product_code"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
}

func (p itemPayload) toInput() core.ItemInput {
	return core.ItemInput{
		ProductCode: p.ProductCode,
		Qty:         p.Qty,
		UnitPrice:   p.UnitPrice,
		Discount:    p.Discount,
	}
}

// listDocuments handles GET /api/documents?type=sale&status=posted.
func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	res, err := h.svc.ListDocuments(r.Context(), claims.StoreID,
		r.URL.Query().Get("type"), r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// createDocument handles POST /api/documents.
func (h *Handler) createDocument(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	var req struct {
		Type             string        `json:"type"`
		CounterpartyCode string        `json:"counterparty_code"`
		DocDate          string        `json:"doc_date"`
		Items            []itemPayload `json:"items"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	items := make([]core.ItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = it.toInput()
	}

	res, err := h.svc.CreateDocument(r.Context(), claims.Actor(), app.CreateDocumentRequest{
		Type:             core.DocType(req.Type),
		CounterpartyCode: req.CounterpartyCode,
		DocDate:          req.DocDate,
		Items:            items,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// getDocument handles GET /api/documents/{ref}. ref is a numeric ID or a
// document number like SAL-20260830-0001.
func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	res, err := h.svc.GetDocument(r.Context(), claims.StoreID, chi.URLParam(r, "ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// addDocumentItem handles POST /api/documents/{id}/items.
func (h *Handler) addDocumentItem(w http.ResponseWriter, r *http.Request) {
	id, ok := urlInt(w, r, "id")
	if !ok {
		return
	}
	var req itemPayload
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.AddDocumentItem(r.Context(), id, req.toInput())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// removeDocumentItem handles DELETE /api/documents/{id}/items/{itemID}.
func (h *Handler) removeDocumentItem(w http.ResponseWriter, r *http.Request) {
	id, ok := urlInt(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := urlInt(w, r, "itemID")
	if !ok {
		return
	}

	res, err := h.svc.RemoveDocumentItem(r.Context(), id, itemID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// postDocument handles POST /api/documents/{id}/post.
func (h *Handler) postDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := urlInt(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.PostDocument(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// cancelDocument handles POST /api/documents/{id}/cancel.
func (h *Handler) cancelDocument(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := urlInt(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.CancelDocument(r.Context(), claims.Actor(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// recordPayment handles POST /api/documents/payments.
func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	var req struct {
		Ref    string          `json:"ref"`
		Amount decimal.Decimal `json:"amount"`
		Method string          `json:"method"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.RecordPayment(r.Context(), claims.Actor(), app.RecordPaymentRequest{
		Ref:    req.Ref,
		Amount: req.Amount,
		Method: core.PayMethod(req.Method),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// customerBalances handles GET /api/balances/customers.
func (h *Handler) customerBalances(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	res, err := h.svc.CustomerBalances(r.Context(), claims.StoreID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// highRiskCustomers handles GET /api/balances/high-risk?threshold=0.5.
func (h *Handler) highRiskCustomers(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())

	threshold := decimal.Zero
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, r, "invalid threshold parameter", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		threshold = parsed
	}

	res, err := h.svc.HighRiskCustomers(r.Context(), claims.StoreID, threshold)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}
