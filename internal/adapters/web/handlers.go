package web

import (
	"net/http"
	"strconv"

	"shopledger/internal/app"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	jwtSecret string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string) http.Handler {
	h := &Handler{svc: svc, jwtSecret: jwtSecret}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(1 << 20))

	// ── Public ────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API ─────────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Get("/api/auth/me", h.me)

		// Stock
		r.Get("/api/stock", h.stockLevels)
		r.Post("/api/stock/phones", h.registerPhone)
		r.Post("/api/stock/phones/{imei}/status", h.transitionPhone)
		r.Post("/api/stock/accessories", h.createAccessory)
		r.Post("/api/stock/accessories/{sku}/adjust", h.adjustStock)

		// Documents
		r.Get("/api/documents", h.listDocuments)
		r.Post("/api/documents", h.createDocument)
		r.Get("/api/documents/{ref}", h.getDocument)
		r.Post("/api/documents/{id}/items", h.addDocumentItem)
		r.Delete("/api/documents/{id}/items/{itemID}", h.removeDocumentItem)
		r.Post("/api/documents/{id}/post", h.postDocument)
		r.Post("/api/documents/{id}/cancel", h.cancelDocument)
		r.Post("/api/documents/payments", h.recordPayment)

		// Balances
		r.Get("/api/balances/customers", h.customerBalances)
		r.Get("/api/balances/high-risk", h.highRiskCustomers)

		// Returns
		r.Get("/api/returns", h.listReturns)
		r.Post("/api/returns", h.createReturn)
		r.Post("/api/returns/{id}/approve", h.approveReturn)
		r.Post("/api/returns/{id}/reject", h.rejectReturn)
		r.Post("/api/returns/{id}/refund", h.markReturnRefunded)
		r.Post("/api/returns/{id}/complete", h.completeReturn)

		// Cash sessions
		r.Get("/api/cash/session", h.currentSession)
		r.Post("/api/cash/session/open", h.openSession)
		r.Post("/api/cash/session/close", h.closeSession)
		r.Post("/api/cash/expenses", h.recordExpense)

		// Counterparties
		r.Get("/api/customers", h.listCustomers)
		r.Post("/api/customers", h.createCustomer)
		r.Get("/api/suppliers", h.listSuppliers)
		r.Post("/api/suppliers", h.createSupplier)

		// AI assistant
		r.Post("/api/ai/interpret", h.interpretCommand)
		r.Post("/api/ai/execute", h.executeProposal)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// urlInt extracts a numeric URL parameter, writing a 400 on failure.
func urlInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		writeError(w, r, "invalid "+name+" parameter", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}
