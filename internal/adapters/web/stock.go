package web

import (
	"net/http"

	"shopledger/internal/app"
	"shopledger/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// stockLevels handles GET /api/stock.
func (h *Handler) stockLevels(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	res, err := h.svc.GetStockLevels(r.Context(), claims.StoreID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// registerPhone handles POST /api/stock/phones.
func (h *Handler) registerPhone(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	var req struct {
		IMEI      string          `json:"imei"`
		Model     string          `json:"model"`
		BuyPrice  decimal.Decimal `json:"buy_price"`
		SellPrice decimal.Decimal `json:"sell_price"`
		Initial   string          `json:"initial_status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.RegisterPhone(r.Context(), app.RegisterPhoneRequest{
		StoreID:   claims.StoreID,
		IMEI:      req.IMEI,
		Model:     req.Model,
		BuyPrice:  req.BuyPrice,
		SellPrice: req.SellPrice,
		Initial:   core.PhoneStatus(req.Initial),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// transitionPhone handles POST /api/stock/phones/{imei}/status.
func (h *Handler) transitionPhone(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.TransitionPhone(r.Context(), claims.Actor(),
		chi.URLParam(r, "imei"), core.PhoneStatus(req.Status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// createAccessory handles POST /api/stock/accessories.
func (h *Handler) createAccessory(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	var req struct {
		SKU       string          `json:"sku"`
		Name      string          `json:"name"`
		Quantity  int             `json:"quantity"`
		MinQty    int             `json:"min_qty"`
		BuyPrice  decimal.Decimal `json:"buy_price"`
		SellPrice decimal.Decimal `json:"sell_price"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.CreateAccessory(r.Context(), app.CreateAccessoryRequest{
		StoreID:   claims.StoreID,
		SKU:       req.SKU,
		Name:      req.Name,
		Quantity:  req.Quantity,
		MinQty:    req.MinQty,
		BuyPrice:  req.BuyPrice,
		SellPrice: req.SellPrice,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// adjustStock handles POST /api/stock/accessories/{sku}/adjust.
func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	var req struct {
		Delta int `json:"delta"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.AdjustStock(r.Context(), claims.Actor(), chi.URLParam(r, "sku"), req.Delta)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}
