package app

import (
	"shopledger/internal/core"

	"github.com/shopspring/decimal"
)

// UserSession is returned by AuthenticateUser.
type UserSession struct {
	UserID   int
	StoreID  int
	Username string
	Role     string
}

// UserResult is returned by GetUser.
type UserResult struct {
	UserID    int
	Username  string
	Role      string
	StoreCode string
	StoreName string
}

// PhoneResult is returned by phone stock operations.
type PhoneResult struct {
	Phone *core.Phone
}

// AccessoryResult is returned by accessory stock operations.
type AccessoryResult struct {
	Accessory *core.Accessory
	LowStock  bool
}

// StockLevelsResult is returned by GetStockLevels.
type StockLevelsResult struct {
	Levels  []core.StockLevel
	StoreID int
}

// DocumentResult is returned by document lifecycle operations.
type DocumentResult struct {
	Document *core.Document
}

// DocumentListResult is returned by ListDocuments.
type DocumentListResult struct {
	Documents []core.Document
	StoreID   int
}

// BalancesResult is returned by CustomerBalances.
type BalancesResult struct {
	Balances []core.CounterpartyBalance
}

// RiskResult is returned by HighRiskCustomers.
type RiskResult struct {
	Customers []core.HighRiskCustomer
	Threshold decimal.Decimal
}

// ReturnResult is returned by return workflow operations.
type ReturnResult struct {
	Return *core.ReturnTransaction
}

// ReturnListResult is returned by ListReturns.
type ReturnListResult struct {
	Returns []core.ReturnTransaction
	StoreID int
}

// SessionResult is returned by OpenSession.
type SessionResult struct {
	Session *core.CashSession
}

// SessionReportResult is a session with its movement ledger and balances.
// For an open session ExpectedBalance is computed live; DifferenceKind is
// filled only after close.
type SessionReportResult struct {
	Session         *core.CashSession
	Movements       []core.CashMovement
	ExpectedBalance decimal.Decimal
	DifferenceKind  string
}

// AIResult is returned by InterpretCommand.
type AIResult struct {
	Proposal             *core.CommandProposal
	ClarificationMessage string
	IsClarification      bool
}

// ExecutionResult is returned by ExecuteProposal. Exactly one of the typed
// results is set, matching the proposal's action.
type ExecutionResult struct {
	Action   string
	Message  string
	Document *core.Document
	Phone    *core.Phone
	Accessory *core.Accessory
	Session  *SessionReportResult
}
