package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashSession is a bounded period between opening and closing a register.
// expected_balance, closing_balance and difference are frozen at close.
type CashSession struct {
	ID              int
	StoreID         int
	OpenedBy        int
	OpenedAt        time.Time
	OpeningBalance  decimal.Decimal
	ClosedBy        *int
	ClosedAt        *time.Time
	ClosingBalance  *decimal.Decimal
	ExpectedBalance *decimal.Decimal
	Difference      *decimal.Decimal
	Notes           *string
	Status          SessionStatus
}

// CashMovement is an append-only entry in the session's cash ledger.
// Movements are never updated or deleted; corrections are inverse entries.
type CashMovement struct {
	ID        int
	SessionID int
	StoreID   int
	Amount    decimal.Decimal
	Direction CashDirection
	Method    PayMethod
	Type      MovementType
	Reference string
	CreatedBy int
	CreatedAt time.Time
}

// DifferenceKind classifies a close difference for the closing report.
// Variance is recorded, never rejected.
func DifferenceKind(diff decimal.Decimal) string {
	switch {
	case diff.IsZero():
		return "balanced"
	case diff.IsPositive():
		return "over"
	default:
		return "short"
	}
}
