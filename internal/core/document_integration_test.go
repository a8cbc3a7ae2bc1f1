package core_test

import (
	"context"
	"errors"
	"testing"

	"shopledger/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// setupDocTestDB extends the base test DB with a customer, a supplier and a
// starting accessory stock.
func setupDocTestDB(t *testing.T) (*pgxpool.Pool, core.StockService, core.DocumentService, context.Context) {
	t.Helper()
	pool := setupTestDB(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		INSERT INTO customers (store_id, code, name, phone) VALUES
		(1, 'C001', 'Walk-in Regular', '+90-5550000001');

		INSERT INTO suppliers (store_id, code, name, phone) VALUES
		(1, 'S001', 'Wholesale Importer', '+90-5550000002');

		INSERT INTO accessories (store_id, sku, name, quantity, min_qty, buy_price, sell_price) VALUES
		(1, 'CASE-01', 'Clear Case', 10, 2, 400.00, 1000.00);
	`)
	if err != nil {
		t.Fatalf("Failed to seed document test data: %v", err)
	}

	stock := core.NewStockService(pool)
	docs := core.NewDocumentService(pool, stock)
	return pool, stock, docs, ctx
}

func TestDocumentService_SaleLifecycle(t *testing.T) {
	pool, _, docs, ctx := setupDocTestDB(t)
	defer pool.Close()

	// 1. Draft sale: 4 × CASE-01 @ 1000 = 4000
	doc, err := docs.CreateDocument(ctx, testStoreID, core.DocSale, cashierActor, "C001", "2026-03-01")
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	if doc.Status != core.DocDraft {
		t.Errorf("Expected draft, got %s", doc.Status)
	}
	if doc.Number != "" {
		t.Errorf("Draft must have no document number, got %q", doc.Number)
	}

	doc, err = docs.AddItem(ctx, doc.ID, core.ItemInput{ProductCode: "CASE-01", Qty: 4})
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if !doc.Total.Equal(decimal.NewFromInt(4000)) {
		t.Errorf("Expected total 4000, got %s", doc.Total)
	}

	// 2. Post: number assigned, stock consumed, remaining = total
	doc, err = docs.Post(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if doc.Status != core.DocPosted {
		t.Errorf("Expected posted, got %s", doc.Status)
	}
	if doc.Number != "SAL-20260301-0001" {
		t.Errorf("Expected SAL-20260301-0001, got %q", doc.Number)
	}
	if doc.PostedAt == nil {
		t.Error("Posted document must have posted_at")
	}
	if !doc.RemainingAmount.Equal(decimal.NewFromInt(4000)) {
		t.Errorf("Expected remaining 4000, got %s", doc.RemainingAmount)
	}

	stock := core.NewStockService(pool)
	acc, err := stock.GetAccessory(ctx, testStoreID, "CASE-01")
	if err != nil {
		t.Fatalf("GetAccessory failed: %v", err)
	}
	if acc.Quantity != 6 {
		t.Errorf("Expected 6 on hand after selling 4 of 10, got %d", acc.Quantity)
	}

	// 3. Posting again is a detectable no-op.
	_, err = docs.Post(ctx, doc.ID)
	if !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState on double post, got %v", err)
	}
	acc, _ = stock.GetAccessory(ctx, testStoreID, "CASE-01")
	if acc.Quantity != 6 {
		t.Errorf("Double post must not touch stock, got %d", acc.Quantity)
	}

	// 4. Items are frozen after posting.
	_, err = docs.AddItem(ctx, doc.ID, core.ItemInput{ProductCode: "CASE-01", Qty: 1})
	if !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState adding to posted document, got %v", err)
	}

	// 5. Numbers are gapless within the day.
	doc2, err := docs.CreateDocument(ctx, testStoreID, core.DocSale, cashierActor, "", "2026-03-01")
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	if _, err := docs.AddItem(ctx, doc2.ID, core.ItemInput{ProductCode: "CASE-01", Qty: 1}); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	doc2, err = docs.Post(ctx, doc2.ID)
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if doc2.Number != "SAL-20260301-0002" {
		t.Errorf("Expected SAL-20260301-0002, got %q", doc2.Number)
	}
}

func TestDocumentService_InsufficientStockAtPost(t *testing.T) {
	pool, _, docs, ctx := setupDocTestDB(t)
	defer pool.Close()

	// Two drafts each claiming 6 of the 10 on hand. Both drafts are legal;
	// only the first can post.
	first, _ := docs.CreateDocument(ctx, testStoreID, core.DocSale, cashierActor, "", "")
	if _, err := docs.AddItem(ctx, first.ID, core.ItemInput{ProductCode: "CASE-01", Qty: 6}); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	second, _ := docs.CreateDocument(ctx, testStoreID, core.DocSale, cashierActor, "", "")
	if _, err := docs.AddItem(ctx, second.ID, core.ItemInput{ProductCode: "CASE-01", Qty: 6}); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	if _, err := docs.Post(ctx, first.ID); err != nil {
		t.Fatalf("First post failed: %v", err)
	}
	_, err := docs.Post(ctx, second.ID)
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}
	var ise *core.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("Expected InsufficientStockError detail, got %v", err)
	}
	if ise.Available != 4 || ise.Requested != 6 {
		t.Errorf("Unexpected stock detail: %+v", ise)
	}

	// Failed post mutated nothing.
	second, err = docs.GetDocument(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if second.Status != core.DocDraft {
		t.Errorf("Failed post must leave document draft, got %s", second.Status)
	}
	if second.Number != "" {
		t.Errorf("Failed post must not assign a number, got %q", second.Number)
	}
}

func TestDocumentService_PhoneSale(t *testing.T) {
	pool, stock, docs, ctx := setupDocTestDB(t)
	defer pool.Close()

	if _, err := stock.RegisterPhone(ctx, testStoreID, "356938035643809", "Galaxy S25",
		decimal.NewFromInt(500), decimal.NewFromInt(750), core.PhoneAvailable); err != nil {
		t.Fatalf("RegisterPhone failed: %v", err)
	}

	doc, _ := docs.CreateDocument(ctx, testStoreID, core.DocSale, cashierActor, "C001", "")
	doc, err := docs.AddItem(ctx, doc.ID, core.ItemInput{ProductCode: "356938035643809", Qty: 3})
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	// Serialized item: requested qty collapses to 1, list price applies.
	if doc.Items[0].Qty != 1 {
		t.Errorf("Phone line qty must be 1, got %d", doc.Items[0].Qty)
	}
	if !doc.Total.Equal(decimal.NewFromInt(750)) {
		t.Errorf("Expected total 750 from list price, got %s", doc.Total)
	}

	if _, err := docs.Post(ctx, doc.ID); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	phone, err := stock.GetPhone(ctx, testStoreID, "356938035643809")
	if err != nil {
		t.Fatalf("GetPhone failed: %v", err)
	}
	if phone.Status != core.PhoneSold {
		t.Errorf("Expected sold after posting, got %s", phone.Status)
	}

	// The same handset cannot enter another sale.
	other, _ := docs.CreateDocument(ctx, testStoreID, core.DocSale, cashierActor, "", "")
	_, err = docs.AddItem(ctx, other.ID, core.ItemInput{ProductCode: "356938035643809", Qty: 1})
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Errorf("Expected ErrInsufficientStock for sold phone, got %v", err)
	}
}

func TestDocumentService_PurchaseAndCancel(t *testing.T) {
	pool, stock, docs, ctx := setupDocTestDB(t)
	defer pool.Close()

	// Pending intake handset plus bulk restock on one purchase.
	if _, err := stock.RegisterPhone(ctx, testStoreID, "490154203237518", "iPhone 16",
		decimal.NewFromInt(700), decimal.NewFromInt(999), core.PhoneReserved); err != nil {
		t.Fatalf("RegisterPhone failed: %v", err)
	}

	doc, err := docs.CreateDocument(ctx, testStoreID, core.DocPurchase, cashierActor, "S001", "2026-03-02")
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	if _, err := docs.AddItem(ctx, doc.ID, core.ItemInput{ProductCode: "490154203237518", Qty: 1}); err != nil {
		t.Fatalf("AddItem phone failed: %v", err)
	}
	if _, err := docs.AddItem(ctx, doc.ID, core.ItemInput{ProductCode: "CASE-01", Qty: 5}); err != nil {
		t.Fatalf("AddItem accessory failed: %v", err)
	}

	doc, err = docs.Post(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if doc.Number != "PUR-20260302-0001" {
		t.Errorf("Expected PUR-20260302-0001, got %q", doc.Number)
	}

	phone, _ := stock.GetPhone(ctx, testStoreID, "490154203237518")
	if phone.Status != core.PhoneAvailable {
		t.Errorf("Expected available after purchase post, got %s", phone.Status)
	}
	acc, _ := stock.GetAccessory(ctx, testStoreID, "CASE-01")
	if acc.Quantity != 15 {
		t.Errorf("Expected 15 on hand after receiving 5, got %d", acc.Quantity)
	}

	// Cancellation is owner-gated.
	if _, err := docs.Cancel(ctx, doc.ID, cashierActor); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for cashier cancel, got %v", err)
	}

	doc, err = docs.Cancel(ctx, doc.ID, ownerActor)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if doc.Status != core.DocCancelled {
		t.Errorf("Expected cancelled, got %s", doc.Status)
	}
	phone, _ = stock.GetPhone(ctx, testStoreID, "490154203237518")
	if phone.Status != core.PhoneReserved {
		t.Errorf("Expected reserved after purchase cancel, got %s", phone.Status)
	}
	acc, _ = stock.GetAccessory(ctx, testStoreID, "CASE-01")
	if acc.Quantity != 10 {
		t.Errorf("Expected 10 on hand after reversal, got %d", acc.Quantity)
	}
}

func TestDocumentService_PurchaseCancelBlockedByConsumption(t *testing.T) {
	pool, _, docs, ctx := setupDocTestDB(t)
	defer pool.Close()

	// Receive 5 cases (10 → 15), then sell 12. Cancelling the purchase
	// would need 15 back but only 3 remain.
	purchase, _ := docs.CreateDocument(ctx, testStoreID, core.DocPurchase, cashierActor, "S001", "")
	if _, err := docs.AddItem(ctx, purchase.ID, core.ItemInput{ProductCode: "CASE-01", Qty: 5}); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if _, err := docs.Post(ctx, purchase.ID); err != nil {
		t.Fatalf("Post purchase failed: %v", err)
	}

	sale, _ := docs.CreateDocument(ctx, testStoreID, core.DocSale, cashierActor, "", "")
	if _, err := docs.AddItem(ctx, sale.ID, core.ItemInput{ProductCode: "CASE-01", Qty: 12}); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if _, err := docs.Post(ctx, sale.ID); err != nil {
		t.Fatalf("Post sale failed: %v", err)
	}

	_, err := docs.Cancel(ctx, purchase.ID, ownerActor)
	if !errors.Is(err, core.ErrConflictingState) {
		t.Errorf("Expected ErrConflictingState, got %v", err)
	}
}

func TestDocumentService_SaleCancelRestoresStock(t *testing.T) {
	pool, stock, docs, ctx := setupDocTestDB(t)
	defer pool.Close()

	if _, err := stock.RegisterPhone(ctx, testStoreID, "356938035643809", "Galaxy S25",
		decimal.NewFromInt(18000), decimal.NewFromInt(24000), core.PhoneAvailable); err != nil {
		t.Fatalf("RegisterPhone failed: %v", err)
	}

	doc, err := docs.CreateDocument(ctx, testStoreID, core.DocSale, cashierActor, "C001", "2026-03-05")
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	if _, err := docs.AddItem(ctx, doc.ID, core.ItemInput{ProductCode: "CASE-01", Qty: 4}); err != nil {
		t.Fatalf("AddItem accessory failed: %v", err)
	}
	if _, err := docs.AddItem(ctx, doc.ID, core.ItemInput{ProductCode: "356938035643809", Qty: 1}); err != nil {
		t.Fatalf("AddItem phone failed: %v", err)
	}
	doc, err = docs.Post(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	acc, _ := stock.GetAccessory(ctx, testStoreID, "CASE-01")
	if acc.Quantity != 6 {
		t.Fatalf("Expected 6 on hand after sale, got %d", acc.Quantity)
	}
	phone, _ := stock.GetPhone(ctx, testStoreID, "356938035643809")
	if phone.Status != core.PhoneSold {
		t.Fatalf("Expected sold after sale, got %s", phone.Status)
	}

	// Cancel restores stock to its pre-post value exactly.
	doc, err = docs.Cancel(ctx, doc.ID, ownerActor)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if doc.Status != core.DocCancelled {
		t.Errorf("Expected cancelled, got %s", doc.Status)
	}
	acc, _ = stock.GetAccessory(ctx, testStoreID, "CASE-01")
	if acc.Quantity != 10 {
		t.Errorf("Expected 10 on hand after cancel, got %d", acc.Quantity)
	}
	phone, _ = stock.GetPhone(ctx, testStoreID, "356938035643809")
	if phone.Status != core.PhoneAvailable {
		t.Errorf("Expected available after cancel, got %s", phone.Status)
	}
}

func TestDocumentService_SaleCancelBlockedByReturn(t *testing.T) {
	pool, stock, docs, ctx := setupDocTestDB(t)
	defer pool.Close()
	cash := core.NewCashService(pool)
	returns := core.NewReturnService(pool, stock, cash)

	sale := postSale(t, ctx, docs, "C001", "CASE-01", 4)
	if _, err := cash.Open(ctx, testStoreID, cashierActor.UserID, decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("Open session failed: %v", err)
	}

	ret, err := returns.Create(ctx, testStoreID, core.ReturnInput{
		SaleID: sale.ID, DocumentItemID: sale.Items[0].ID, Qty: 2,
		Reason: "defective", Condition: core.ConditionResellable,
	}, cashierActor)
	if err != nil {
		t.Fatalf("Create return failed: %v", err)
	}

	// A pending return already blocks cancellation.
	if _, err := docs.Cancel(ctx, sale.ID, ownerActor); !errors.Is(err, core.ErrConflictingState) {
		t.Fatalf("Expected ErrConflictingState with pending return, got %v", err)
	}

	// Approved makes it worse: stock credited, refund paid out. Cancelling
	// on top would credit the sold quantity a second time.
	if _, err := returns.Approve(ctx, ret.ID, ownerActor); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	acc, _ := stock.GetAccessory(ctx, testStoreID, "CASE-01")
	if acc.Quantity != 8 {
		t.Fatalf("Expected 8 on hand after approved return, got %d", acc.Quantity)
	}
	if _, err := docs.Cancel(ctx, sale.ID, ownerActor); !errors.Is(err, core.ErrConflictingState) {
		t.Errorf("Expected ErrConflictingState with approved return, got %v", err)
	}
	acc, _ = stock.GetAccessory(ctx, testStoreID, "CASE-01")
	if acc.Quantity != 8 {
		t.Errorf("Blocked cancel must not move stock, got %d", acc.Quantity)
	}
	doc, _ := docs.GetDocument(ctx, sale.ID)
	if doc.Status != core.DocPosted {
		t.Errorf("Blocked cancel must leave the sale posted, got %s", doc.Status)
	}

	// Rejected returns do not block: a fresh sale with only a rejected
	// return cancels and restores stock.
	sale2 := postSale(t, ctx, docs, "C001", "CASE-01", 3)
	ret2, err := returns.Create(ctx, testStoreID, core.ReturnInput{
		SaleID: sale2.ID, DocumentItemID: sale2.Items[0].ID, Qty: 1,
		Reason: "wrong color", Condition: core.ConditionResellable,
	}, cashierActor)
	if err != nil {
		t.Fatalf("Create second return failed: %v", err)
	}
	if _, err := returns.Reject(ctx, ret2.ID, "outside return window", ownerActor); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if _, err := docs.Cancel(ctx, sale2.ID, ownerActor); err != nil {
		t.Fatalf("Cancel with only a rejected return failed: %v", err)
	}
	acc, _ = stock.GetAccessory(ctx, testStoreID, "CASE-01")
	if acc.Quantity != 8 {
		t.Errorf("Expected 8 on hand after cancelling second sale, got %d", acc.Quantity)
	}
}
