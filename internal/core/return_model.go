package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReturnCondition decides where a returned phone lands: resellable goes back
// to available, damaged is parked in returned for inspection.
type ReturnCondition string

const (
	ConditionResellable ReturnCondition = "resellable"
	ConditionDamaged    ReturnCondition = "damaged"
)

// ReturnTransaction reverses part of a posted sale. It is created pending and
// has no stock or cash effect until an owner approves it.
type ReturnTransaction struct {
	ID              int
	StoreID         int
	SaleID          int
	DocumentItemID  int
	PhoneID         *int
	AccessoryID     *int
	ProductCode     string
	Qty             int
	Reason          string
	Condition       ReturnCondition
	RefundAmount    decimal.Decimal
	Status          ReturnStatus
	ApprovedBy      *int
	ApprovedAt      *time.Time
	RejectionReason *string
	PaymentRef      *string
	CreatedAt       time.Time
}
