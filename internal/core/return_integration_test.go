package core_test

import (
	"errors"
	"testing"

	"shopledger/internal/core"

	"github.com/shopspring/decimal"
)

func TestReturnService_AccessoryReturnWorkflow(t *testing.T) {
	pool, stock, docs, ctx := setupDocTestDB(t)
	defer pool.Close()

	cash := core.NewCashService(pool)
	returns := core.NewReturnService(pool, stock, cash)

	// Sell 4 cases, leaving 6 on hand.
	sale := postSale(t, ctx, docs, "C001", "CASE-01", 4)
	line := sale.Items[0]

	// Over-return bound counts cumulatively across returns on the line.
	_, err := returns.Create(ctx, testStoreID, core.ReturnInput{
		SaleID: sale.ID, DocumentItemID: line.ID, Qty: 5,
		Reason: "changed mind", Condition: core.ConditionResellable,
	}, cashierActor)
	if !errors.Is(err, core.ErrOverReturn) {
		t.Fatalf("Expected ErrOverReturn for qty 5 of 4, got %v", err)
	}

	ret, err := returns.Create(ctx, testStoreID, core.ReturnInput{
		SaleID: sale.ID, DocumentItemID: line.ID, Qty: 3,
		Reason: "changed mind", Condition: core.ConditionResellable,
	}, cashierActor)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ret.Status != core.ReturnPending {
		t.Errorf("Expected pending, got %s", ret.Status)
	}
	// Pro-rata refund: 3 of 4 × 1000 = 3000.
	if !ret.RefundAmount.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("Expected refund 3000, got %s", ret.RefundAmount)
	}

	// Pending returns already reserve the quantity: 3 pending + 2 more
	// would exceed the 4 sold.
	_, err = returns.Create(ctx, testStoreID, core.ReturnInput{
		SaleID: sale.ID, DocumentItemID: line.ID, Qty: 2,
		Reason: "second thought", Condition: core.ConditionResellable,
	}, cashierActor)
	var ore *core.OverReturnError
	if !errors.As(err, &ore) {
		t.Fatalf("Expected OverReturnError, got %v", err)
	}
	if ore.SoldQty != 4 || ore.ReturnedQty != 3 || ore.Requested != 2 {
		t.Errorf("Unexpected over-return detail: %+v", ore)
	}

	// A pending return holds no stock.
	acc, _ := stock.GetAccessory(ctx, testStoreID, "CASE-01")
	if acc.Quantity != 6 {
		t.Errorf("Pending return must not touch stock, got %d", acc.Quantity)
	}

	// Approval is owner-gated and needs an open session for the refund.
	if _, err := returns.Approve(ctx, ret.ID, cashierActor); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for cashier approval, got %v", err)
	}
	if _, err := returns.Approve(ctx, ret.ID, ownerActor); !errors.Is(err, core.ErrNoOpenSession) {
		t.Errorf("Expected ErrNoOpenSession, got %v", err)
	}
	acc, _ = stock.GetAccessory(ctx, testStoreID, "CASE-01")
	if acc.Quantity != 6 {
		t.Errorf("Failed approval must not touch stock, got %d", acc.Quantity)
	}

	sess, err := cash.Open(ctx, testStoreID, cashierActor.UserID, decimal.NewFromInt(5000))
	if err != nil {
		t.Fatalf("Open session failed: %v", err)
	}
	ret, err = returns.Approve(ctx, ret.ID, ownerActor)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if ret.Status != core.ReturnApproved {
		t.Errorf("Expected approved, got %s", ret.Status)
	}

	// Stock credited and refund recorded atomically.
	acc, _ = stock.GetAccessory(ctx, testStoreID, "CASE-01")
	if acc.Quantity != 9 {
		t.Errorf("Expected 9 on hand after crediting 3, got %d", acc.Quantity)
	}
	movements, _ := cash.GetMovements(ctx, sess.ID)
	if len(movements) != 1 {
		t.Fatalf("Expected 1 refund movement, got %d", len(movements))
	}
	if movements[0].Direction != core.CashOut || movements[0].Type != core.MovementRefund {
		t.Errorf("Unexpected refund movement: %+v", movements[0])
	}
	if !movements[0].Amount.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("Expected refund movement 3000, got %s", movements[0].Amount)
	}

	// approved → refunded → completed.
	ret, err = returns.MarkRefunded(ctx, ret.ID, "POS-REF-0042")
	if err != nil {
		t.Fatalf("MarkRefunded failed: %v", err)
	}
	if ret.PaymentRef == nil || *ret.PaymentRef != "POS-REF-0042" {
		t.Errorf("Expected payment ref recorded, got %v", ret.PaymentRef)
	}
	ret, err = returns.Complete(ctx, ret.ID)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if ret.Status != core.ReturnCompleted {
		t.Errorf("Expected completed, got %s", ret.Status)
	}

	// Workflow only moves forward.
	if _, err := returns.Approve(ctx, ret.ID, ownerActor); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState re-approving, got %v", err)
	}
}

func TestReturnService_PhoneConditionRouting(t *testing.T) {
	pool, stock, docs, ctx := setupDocTestDB(t)
	defer pool.Close()

	cash := core.NewCashService(pool)
	returns := core.NewReturnService(pool, stock, cash)
	if _, err := cash.Open(ctx, testStoreID, cashierActor.UserID, decimal.NewFromInt(10000)); err != nil {
		t.Fatalf("Open session failed: %v", err)
	}

	sellPhone := func(imei string) *core.Document {
		if _, err := stock.RegisterPhone(ctx, testStoreID, imei, "Galaxy S25",
			decimal.NewFromInt(500), decimal.NewFromInt(750), core.PhoneAvailable); err != nil {
			t.Fatalf("RegisterPhone failed: %v", err)
		}
		return postSale(t, ctx, docs, "C001", imei, 1)
	}

	// Resellable returns go straight back to available.
	sale1 := sellPhone("356938035643809")
	ret1, err := returns.Create(ctx, testStoreID, core.ReturnInput{
		SaleID: sale1.ID, DocumentItemID: sale1.Items[0].ID, Qty: 1,
		Reason: "wrong color", Condition: core.ConditionResellable,
	}, cashierActor)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := returns.Approve(ctx, ret1.ID, ownerActor); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	phone, _ := stock.GetPhone(ctx, testStoreID, "356938035643809")
	if phone.Status != core.PhoneAvailable {
		t.Errorf("Resellable return must restock, got %s", phone.Status)
	}

	// Damaged returns are parked in returned for inspection.
	sale2 := sellPhone("490154203237518")
	ret2, err := returns.Create(ctx, testStoreID, core.ReturnInput{
		SaleID: sale2.ID, DocumentItemID: sale2.Items[0].ID, Qty: 1,
		Reason: "cracked screen", Condition: core.ConditionDamaged,
	}, cashierActor)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := returns.Approve(ctx, ret2.ID, ownerActor); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	phone, _ = stock.GetPhone(ctx, testStoreID, "490154203237518")
	if phone.Status != core.PhoneReturned {
		t.Errorf("Damaged return must hold for inspection, got %s", phone.Status)
	}

	// Rejection needs no session and touches nothing.
	sale3 := sellPhone("356938035999999")
	ret3, err := returns.Create(ctx, testStoreID, core.ReturnInput{
		SaleID: sale3.ID, DocumentItemID: sale3.Items[0].ID, Qty: 1,
		Reason: "no receipt", Condition: core.ConditionResellable,
	}, cashierActor)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	ret3, err = returns.Reject(ctx, ret3.ID, "outside return window", ownerActor)
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if ret3.Status != core.ReturnRejected {
		t.Errorf("Expected rejected, got %s", ret3.Status)
	}
	phone, _ = stock.GetPhone(ctx, testStoreID, "356938035999999")
	if phone.Status != core.PhoneSold {
		t.Errorf("Rejected return must leave the phone sold, got %s", phone.Status)
	}
}
