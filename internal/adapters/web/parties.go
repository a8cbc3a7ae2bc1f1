package web

import "net/http"

type partyPayload struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// listCustomers handles GET /api/customers.
func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	customers, err := h.svc.ListCustomers(r.Context(), claims.StoreID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"customers": customers})
}

// createCustomer handles POST /api/customers.
func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	var req partyPayload
	if !decodeJSON(w, r, &req) {
		return
	}

	customer, err := h.svc.CreateCustomer(r.Context(), claims.StoreID, req.Code, req.Name, req.Phone)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, customer)
}

// listSuppliers handles GET /api/suppliers.
func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	suppliers, err := h.svc.ListSuppliers(r.Context(), claims.StoreID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"suppliers": suppliers})
}

// createSupplier handles POST /api/suppliers.
func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	var req partyPayload
	if !decodeJSON(w, r, &req) {
		return
	}

	supplier, err := h.svc.CreateSupplier(r.Context(), claims.StoreID, req.Code, req.Name, req.Phone)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, supplier)
}
