package app

import (
	"github.com/shopspring/decimal"

	"shopledger/internal/core"
)

// RegisterPhoneRequest is the input for adding a handset to stock.
type RegisterPhoneRequest struct {
	StoreID   int
	IMEI      string
	Model     string
	BuyPrice  decimal.Decimal
	SellPrice decimal.Decimal
	Initial   core.PhoneStatus // available or reserved; empty means available
}

// CreateAccessoryRequest is the input for adding a bulk item to stock.
type CreateAccessoryRequest struct {
	StoreID   int
	SKU       string
	Name      string
	Quantity  int
	MinQty    int
	BuyPrice  decimal.Decimal
	SellPrice decimal.Decimal
}

// CreateDocumentRequest is the input for opening a draft document.
// Items may be empty; lines can be added afterwards.
type CreateDocumentRequest struct {
	Type             core.DocType
	CounterpartyCode string // customer code for sales, supplier code for purchases
	DocDate          string // YYYY-MM-DD, empty means today
	Items            []core.ItemInput
}

// RecordPaymentRequest is the input for applying a payment to a posted
// document. Ref is a numeric ID or a document number.
type RecordPaymentRequest struct {
	Ref    string
	Amount decimal.Decimal
	Method core.PayMethod
}

// CreateReturnRequest is the input for registering a pending return.
type CreateReturnRequest struct {
	SaleRef        string // numeric ID or document number of the posted sale
	DocumentItemID int
	Qty            int
	Reason         string
	Condition      core.ReturnCondition
	RefundAmount   decimal.Decimal // zero means pro-rata from the sale line
}
