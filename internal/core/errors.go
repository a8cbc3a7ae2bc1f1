package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for every ledger-invariant violation. Services return these
// (usually wrapped with fmt.Errorf context) and adapters branch with errors.Is.
var (
	// ErrInvalidState means the operation is not valid for the entity's
	// current status (e.g. posting an already-posted document).
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrInvalidTransition means a serialized item was asked to move between
	// statuses the transition table does not allow (e.g. sold → sold).
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInsufficientStock means the operation would drive a bulk quantity
	// negative, or a serialized item is not available.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrNegativeStock is the defensive variant raised by the stock ledger
	// itself when a delta would produce a negative quantity.
	ErrNegativeStock = errors.New("stock quantity would go negative")

	// ErrOverPayment means a payment exceeds the document's remaining amount.
	ErrOverPayment = errors.New("payment exceeds remaining amount")

	// ErrOverReturn means a return requests more units than remain
	// returnable on the sale line.
	ErrOverReturn = errors.New("return quantity exceeds returnable quantity")

	// ErrDuplicateCode means an IMEI or SKU already exists in the store.
	ErrDuplicateCode = errors.New("duplicate product code")

	// ErrConflictingState means a reversal cannot proceed because downstream
	// state already consumed its effect (e.g. cancelling a purchase whose
	// units were sold).
	ErrConflictingState = errors.New("conflicting downstream state")

	// ErrSessionAlreadyOpen / ErrNoOpenSession guard the one-open-session
	// invariant of the cash register.
	ErrSessionAlreadyOpen = errors.New("a cash session is already open")
	ErrNoOpenSession      = errors.New("no open cash session")

	// ErrUnauthorized means the acting user's role does not permit the
	// operation (owner required for cancel and return approval).
	ErrUnauthorized = errors.New("operation requires owner role")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
)

// InsufficientStockError carries the shortage details for bulk items.
type InsufficientStockError struct {
	SKU       string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d",
		e.SKU, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InvalidTransitionError reports a rejected serialized-item transition.
type InvalidTransitionError struct {
	IMEI string
	From PhoneStatus
	To   PhoneStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("phone %s: cannot transition %s → %s", e.IMEI, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// OverReturnError reports how much of a sale line is still returnable.
type OverReturnError struct {
	SaleLineID  int
	SoldQty     int
	ReturnedQty int
	Requested   int
}

func (e *OverReturnError) Error() string {
	return fmt.Sprintf("sale line %d: sold %d, already returned %d, requested %d",
		e.SaleLineID, e.SoldQty, e.ReturnedQty, e.Requested)
}

func (e *OverReturnError) Unwrap() error { return ErrOverReturn }

// IsClientError reports whether the error is a business-rule rejection the
// caller can surface directly, as opposed an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrNegativeStock) ||
		errors.Is(err, ErrOverPayment) ||
		errors.Is(err, ErrOverReturn) ||
		errors.Is(err, ErrDuplicateCode) ||
		errors.Is(err, ErrConflictingState) ||
		errors.Is(err, ErrSessionAlreadyOpen) ||
		errors.Is(err, ErrNoOpenSession) ||
		errors.Is(err, ErrUnauthorized)
}
