package core_test

import (
	"testing"

	"shopledger/internal/core"
)

func TestCanTransitionDoc(t *testing.T) {
	tests := []struct {
		name string
		from core.DocStatus
		to   core.DocStatus
		want bool
	}{
		{"draft to posted", core.DocDraft, core.DocPosted, true},
		{"posted to cancelled", core.DocPosted, core.DocCancelled, true},
		{"draft to cancelled", core.DocDraft, core.DocCancelled, false},
		{"posted to posted (double post)", core.DocPosted, core.DocPosted, false},
		{"cancelled is terminal", core.DocCancelled, core.DocPosted, false},
		{"posted back to draft", core.DocPosted, core.DocDraft, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := core.CanTransitionDoc(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransitionDoc(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestCanTransitionPhone(t *testing.T) {
	tests := []struct {
		name string
		from core.PhoneStatus
		to   core.PhoneStatus
		want bool
	}{
		{"available to sold", core.PhoneAvailable, core.PhoneSold, true},
		{"available to reserved", core.PhoneAvailable, core.PhoneReserved, true},
		{"available to damaged", core.PhoneAvailable, core.PhoneDamaged, true},
		{"reserved intake", core.PhoneReserved, core.PhoneAvailable, true},
		{"reserved straight to sold", core.PhoneReserved, core.PhoneSold, true},
		{"sold to returned", core.PhoneSold, core.PhoneReturned, true},
		{"sold restocked directly", core.PhoneSold, core.PhoneAvailable, true},
		{"returned restocked", core.PhoneReturned, core.PhoneAvailable, true},
		{"returned written off", core.PhoneReturned, core.PhoneDamaged, true},
		{"available to returned skips sale", core.PhoneAvailable, core.PhoneReturned, false},
		{"sold to damaged skips return", core.PhoneSold, core.PhoneDamaged, false},
		{"damaged is terminal", core.PhoneDamaged, core.PhoneAvailable, false},
		{"no self transition", core.PhoneSold, core.PhoneSold, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := core.CanTransitionPhone(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransitionPhone(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestCanTransitionReturn(t *testing.T) {
	tests := []struct {
		name string
		from core.ReturnStatus
		to   core.ReturnStatus
		want bool
	}{
		{"pending approved", core.ReturnPending, core.ReturnApproved, true},
		{"pending rejected", core.ReturnPending, core.ReturnRejected, true},
		{"approved refunded", core.ReturnApproved, core.ReturnRefunded, true},
		{"refunded completed", core.ReturnRefunded, core.ReturnCompleted, true},
		{"pending cannot skip to refunded", core.ReturnPending, core.ReturnRefunded, false},
		{"approved cannot be rejected", core.ReturnApproved, core.ReturnRejected, false},
		{"rejected is terminal", core.ReturnRejected, core.ReturnApproved, false},
		{"completed is terminal", core.ReturnCompleted, core.ReturnPending, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := core.CanTransitionReturn(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransitionReturn(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestDocTypeNumberPrefix(t *testing.T) {
	if got := core.DocSale.NumberPrefix(); got != "SAL" {
		t.Errorf("sale prefix = %q, want SAL", got)
	}
	if got := core.DocPurchase.NumberPrefix(); got != "PUR" {
		t.Errorf("purchase prefix = %q, want PUR", got)
	}
}
