package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Document is a Sale or Purchase header. Totals are recomputed from lines on
// every draft mutation and frozen at posting. remaining_amount is maintained
// as total - paid_amount and never negative.
type Document struct {
	ID               int
	StoreID          int
	Type             DocType
	Number           string // empty until posted
	Status           DocStatus
	Total            decimal.Decimal
	PaidAmount       decimal.Decimal
	RemainingAmount  decimal.Decimal
	CustomerID       *int
	SupplierID       *int
	CounterpartyName string
	CreatedBy        int
	DocDate          string // YYYY-MM-DD
	CreatedAt        time.Time
	PostedAt         *time.Time
	CancelledAt      *time.Time
	Items            []DocumentItem
}

// DocumentItem is one line of a document. Exactly one of PhoneID or
// AccessoryID is set; phone lines always have Qty 1.
type DocumentItem struct {
	ID          int
	DocumentID  int
	LineNumber  int
	PhoneID     *int
	AccessoryID *int
	ProductCode string // IMEI or SKU
	ProductName string
	Qty         int
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	LineTotal   decimal.Decimal
}

// ItemInput holds the fields required to add a line to a draft document.
// ProductCode resolves against phones (IMEI) first, then accessories (SKU).
type ItemInput struct {
	ProductCode string
	Qty         int
	UnitPrice   decimal.Decimal // zero means use the product's list price
	Discount    decimal.Decimal
}

// LineTotal computes qty*unitprice - discount, floored at zero so a discount
// can never make a line negative.
func LineTotal(qty int, unitPrice, discount decimal.Decimal) decimal.Decimal {
	total := unitPrice.Mul(decimal.NewFromInt(int64(qty))).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// SumLines returns the document total over its lines.
func SumLines(items []DocumentItem) decimal.Decimal {
	var total decimal.Decimal
	for _, it := range items {
		total = total.Add(it.LineTotal)
	}
	return total
}
