package app

import (
	"context"

	"shopledger/internal/core"

	"github.com/shopspring/decimal"
)

// ApplicationService is the single interface the web adapter calls. It
// decouples presentation from business logic. Implementations must contain
// no fmt.Println, no HTTP types, and no display logic of any kind.
type ApplicationService interface {
	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns the user profile by ID.
	GetUser(ctx context.Context, userID int) (*UserResult, error)

	// ── Stock ────────────────────────────────────────────────────────────

	// RegisterPhone adds a serialized handset to stock.
	RegisterPhone(ctx context.Context, req RegisterPhoneRequest) (*PhoneResult, error)

	// CreateAccessory adds a bulk item to stock.
	CreateAccessory(ctx context.Context, req CreateAccessoryRequest) (*AccessoryResult, error)

	// AdjustStock applies a manual quantity correction to an accessory.
	AdjustStock(ctx context.Context, actor core.Actor, sku string, delta int) (*AccessoryResult, error)

	// TransitionPhone moves a phone between statuses (manual write-off etc.).
	TransitionPhone(ctx context.Context, actor core.Actor, imei string, to core.PhoneStatus) (*PhoneResult, error)

	// GetStockLevels returns the combined stock view with derived low-stock flags.
	GetStockLevels(ctx context.Context, storeID int) (*StockLevelsResult, error)

	// ── Documents ────────────────────────────────────────────────────────

	// CreateDocument opens a draft sale or purchase, optionally with lines.
	CreateDocument(ctx context.Context, actor core.Actor, req CreateDocumentRequest) (*DocumentResult, error)

	// AddDocumentItem appends a line to a draft and recomputes the total.
	AddDocumentItem(ctx context.Context, documentID int, item core.ItemInput) (*DocumentResult, error)

	// RemoveDocumentItem deletes a line from a draft.
	RemoveDocumentItem(ctx context.Context, documentID, itemID int) (*DocumentResult, error)

	// PostDocument transitions draft → posted, assigning the document number
	// and applying all stock effects atomically.
	PostDocument(ctx context.Context, documentID int) (*DocumentResult, error)

	// CancelDocument transitions posted → cancelled, reversing stock. Owner only.
	CancelDocument(ctx context.Context, actor core.Actor, documentID int) (*DocumentResult, error)

	// GetDocument returns a document by numeric ID or document number.
	GetDocument(ctx context.Context, storeID int, ref string) (*DocumentResult, error)

	// ListDocuments returns a store's documents, optionally filtered.
	ListDocuments(ctx context.Context, storeID int, docType, status string) (*DocumentListResult, error)

	// ── Payments and balances ────────────────────────────────────────────

	// RecordPayment applies a payment to a posted document. Cash payments
	// also land in the open register session.
	RecordPayment(ctx context.Context, actor core.Actor, req RecordPaymentRequest) (*DocumentResult, error)

	// CustomerBalances lists customers with outstanding posted sales.
	CustomerBalances(ctx context.Context, storeID int) (*BalancesResult, error)

	// SupplierBalance returns one supplier's outstanding position.
	SupplierBalance(ctx context.Context, supplierID int) (*core.CounterpartyBalance, error)

	// HighRiskCustomers lists customers whose unpaid ratio meets the
	// threshold (zero means the default).
	HighRiskCustomers(ctx context.Context, storeID int, threshold decimal.Decimal) (*RiskResult, error)

	// ── Returns ──────────────────────────────────────────────────────────

	// CreateReturn registers a pending return against a posted sale line.
	CreateReturn(ctx context.Context, actor core.Actor, req CreateReturnRequest) (*ReturnResult, error)

	// ApproveReturn credits stock and records the refund. Owner only.
	ApproveReturn(ctx context.Context, actor core.Actor, returnID int) (*ReturnResult, error)

	// RejectReturn closes a pending return with a reason. Owner only.
	RejectReturn(ctx context.Context, actor core.Actor, returnID int, reason string) (*ReturnResult, error)

	// MarkReturnRefunded records the customer payout reference.
	MarkReturnRefunded(ctx context.Context, returnID int, paymentRef string) (*ReturnResult, error)

	// CompleteReturn archives a refunded return.
	CompleteReturn(ctx context.Context, returnID int) (*ReturnResult, error)

	// ListReturns returns a store's returns, optionally filtered by status.
	ListReturns(ctx context.Context, storeID int, status string) (*ReturnListResult, error)

	// ── Cash sessions ────────────────────────────────────────────────────

	// OpenSession opens the store's register session.
	OpenSession(ctx context.Context, actor core.Actor, openingBalance decimal.Decimal) (*SessionResult, error)

	// CloseSession closes a session against a counted balance. The
	// difference is recorded and classified, never rejected.
	CloseSession(ctx context.Context, actor core.Actor, sessionID int, closingBalance decimal.Decimal, notes string) (*SessionReportResult, error)

	// CurrentSession returns the store's open session with its movements
	// and live expected balance.
	CurrentSession(ctx context.Context, storeID int) (*SessionReportResult, error)

	// RecordExpense records an outgoing cash expense in the open session.
	RecordExpense(ctx context.Context, actor core.Actor, amount decimal.Decimal, reference string) (*SessionReportResult, error)

	// ── Counterparties ───────────────────────────────────────────────────

	CreateCustomer(ctx context.Context, storeID int, code, name, phone string) (*core.Customer, error)
	ListCustomers(ctx context.Context, storeID int) ([]core.Customer, error)
	CreateSupplier(ctx context.Context, storeID int, code, name, phone string) (*core.Supplier, error)
	ListSuppliers(ctx context.Context, storeID int) ([]core.Supplier, error)

	// ── AI assistant ─────────────────────────────────────────────────────

	// InterpretCommand sends a natural-language instruction to the AI agent
	// and returns either a command proposal or a clarification question.
	InterpretCommand(ctx context.Context, storeID int, text string) (*AIResult, error)

	// ExecuteProposal runs a previously proposed command after human
	// confirmation. The proposal is re-validated before execution.
	ExecuteProposal(ctx context.Context, actor core.Actor, proposal core.CommandProposal) (*ExecutionResult, error)
}
