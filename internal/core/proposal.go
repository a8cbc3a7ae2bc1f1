package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// CommandProposal is an AI-interpreted shop operation. It is a proposal only:
// nothing executes until a human confirms it and the application layer maps
// it onto a real service call.
type CommandProposal struct {
	// Action selects the operation. "clarify" means the agent needs more
	// information and Clarification holds its question.
	Action string `json:"action" jsonschema:"enum=create_sale,enum=record_payment,enum=register_phone,enum=adjust_stock,enum=record_expense,enum=clarify,description=The shop operation to perform"`

	Clarification string `json:"clarification" jsonschema:"description=Question for the user when action is clarify"`

	CustomerCode string `json:"customer_code" jsonschema:"description=Customer code for create_sale"`
	ProductCode  string `json:"product_code" jsonschema:"description=IMEI or SKU"`
	Qty          string `json:"qty" jsonschema:"description=Quantity as an integer string"`
	Amount       string `json:"amount" jsonschema:"description=Money amount as an exact decimal string like 1500.00"`
	Method       string `json:"method" jsonschema:"enum=cash,enum=card,enum=transfer,enum=,description=Payment method for record_payment"`
	DocNumber    string `json:"doc_number" jsonschema:"description=Document number like SAL-20260830-0001 for record_payment"`
	PhoneModel   string `json:"phone_model" jsonschema:"description=Handset model name for register_phone"`
	Reference    string `json:"reference" jsonschema:"description=Free-text reference for record_expense"`

	Confidence float64 `json:"confidence" jsonschema:"description=Confidence score between 0.0 and 1.0"`
	Reasoning  string  `json:"reasoning" jsonschema:"description=Short explanation of the interpretation"`
}

// IsClarification reports whether the agent is asking instead of proposing.
func (p *CommandProposal) IsClarification() bool { return p.Action == "clarify" }

// Normalize trims and lowercases the fields the model tends to vary, so
// Validate and the executor see canonical values.
func (p *CommandProposal) Normalize() {
	p.Action = strings.ToLower(strings.TrimSpace(p.Action))
	p.Method = strings.ToLower(strings.TrimSpace(p.Method))
	p.CustomerCode = strings.TrimSpace(p.CustomerCode)
	p.ProductCode = strings.TrimSpace(p.ProductCode)
	p.Qty = strings.TrimSpace(p.Qty)
	p.Amount = strings.TrimSpace(p.Amount)
	p.DocNumber = strings.ToUpper(strings.TrimSpace(p.DocNumber))
	p.PhoneModel = strings.TrimSpace(p.PhoneModel)
	p.Reference = strings.TrimSpace(p.Reference)
	p.Clarification = strings.TrimSpace(p.Clarification)
}

// Validate checks the per-action required fields. Call Normalize first.
func (p *CommandProposal) Validate() error {
	switch p.Action {
	case "clarify":
		if p.Clarification == "" {
			return fmt.Errorf("clarify action requires a clarification question")
		}
		return nil
	case "create_sale":
		if p.ProductCode == "" {
			return fmt.Errorf("create_sale requires a product code")
		}
		if _, err := p.QtyInt(); err != nil {
			return err
		}
	case "record_payment":
		if p.DocNumber == "" {
			return fmt.Errorf("record_payment requires a document number")
		}
		if _, err := p.AmountDecimal(); err != nil {
			return err
		}
		switch p.Method {
		case "cash", "card", "transfer":
		default:
			return fmt.Errorf("record_payment requires method cash, card or transfer, got %q", p.Method)
		}
	case "register_phone":
		if !ValidIMEI(p.ProductCode) {
			return fmt.Errorf("register_phone requires a 15-17 digit IMEI, got %q", p.ProductCode)
		}
		if p.PhoneModel == "" {
			return fmt.Errorf("register_phone requires a model name")
		}
		// Amount (the sell price) is optional, but when present it must
		// parse; a garbled price must not silently become zero.
		if p.Amount != "" {
			if _, err := p.AmountDecimal(); err != nil {
				return err
			}
		}
	case "adjust_stock":
		if p.ProductCode == "" {
			return fmt.Errorf("adjust_stock requires a product code")
		}
		if _, err := strconv.Atoi(p.Qty); err != nil {
			return fmt.Errorf("adjust_stock requires an integer delta, got %q", p.Qty)
		}
	case "record_expense":
		if _, err := p.AmountDecimal(); err != nil {
			return err
		}
		if p.Reference == "" {
			return fmt.Errorf("record_expense requires a reference")
		}
	default:
		return fmt.Errorf("unknown action %q", p.Action)
	}

	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence must be within [0, 1], got %v", p.Confidence)
	}
	return nil
}

// QtyInt parses Qty as a positive integer.
func (p *CommandProposal) QtyInt() (int, error) {
	n, err := strconv.Atoi(p.Qty)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("quantity must be a positive integer, got %q", p.Qty)
	}
	return n, nil
}

// AmountDecimal parses Amount as a positive decimal.
func (p *CommandProposal) AmountDecimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(p.Amount)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be a positive decimal string, got %q", p.Amount)
	}
	return d, nil
}
