package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Phone is a serialized stock item: one row per handset, quantity always 1.
// Its on-hand state is the status field, not a counter.
type Phone struct {
	ID        int
	StoreID   int
	IMEI      string
	Model     string
	BuyPrice  decimal.Decimal
	SellPrice decimal.Decimal
	Status    PhoneStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Accessory is a bulk stock item counted by quantity.
type Accessory struct {
	ID        int
	StoreID   int
	SKU       string
	Name      string
	Quantity  int
	MinQty    int
	BuyPrice  decimal.Decimal
	SellPrice decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LowStock is derived, never stored, so a read can never see a stale flag.
func (a Accessory) LowStock() bool { return a.Quantity <= a.MinQty }

// ValidIMEI reports whether s is a 15–17 digit IMEI.
func ValidIMEI(s string) bool {
	if len(s) < 15 || len(s) > 17 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// StockLevel is a read view over both product kinds for the stock screen.
// For phones Quantity is 0 or 1 depending on status.
type StockLevel struct {
	Kind     string // "phone" | "accessory"
	Code     string // IMEI or SKU
	Name     string
	Quantity int
	MinQty   int
	LowStock bool
	Status   *PhoneStatus // phones only
}
