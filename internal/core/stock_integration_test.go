package core_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"shopledger/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const testStoreID = 1

var (
	ownerActor   = core.Actor{UserID: 1, StoreID: testStoreID, Role: core.RoleOwner}
	cashierActor = core.Actor{UserID: 2, StoreID: testStoreID, Role: core.RoleCashier}
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Clean and seed: one store, an owner and a cashier.
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE cash_movements, cash_sessions, returns, document_items,
		               document_sequences, documents, phones, accessories,
		               customers, suppliers, users, stores
		RESTART IDENTITY CASCADE;

		INSERT INTO stores (id, code, name) VALUES (1, 'MAIN', 'Main Street Shop');

		INSERT INTO users (id, store_id, username, password_hash, role) VALUES
		(1, 1, 'owner',   'x', 'owner'),
		(2, 1, 'cashier', 'x', 'cashier');
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

func TestStockService_PhoneLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	stock := core.NewStockService(pool)

	phone, err := stock.RegisterPhone(ctx, testStoreID, "356938035643809", "Pixel 9",
		decimal.NewFromInt(600), decimal.NewFromInt(800), core.PhoneAvailable)
	if err != nil {
		t.Fatalf("RegisterPhone failed: %v", err)
	}
	if phone.Status != core.PhoneAvailable {
		t.Errorf("Expected available, got %s", phone.Status)
	}

	// Same IMEI again in the same store must be rejected.
	_, err = stock.RegisterPhone(ctx, testStoreID, "356938035643809", "Pixel 9 again",
		decimal.NewFromInt(600), decimal.NewFromInt(800), core.PhoneAvailable)
	if !errors.Is(err, core.ErrDuplicateCode) {
		t.Errorf("Expected ErrDuplicateCode for duplicate IMEI, got %v", err)
	}

	// Malformed IMEI never reaches the database.
	_, err = stock.RegisterPhone(ctx, testStoreID, "12345", "Bad IMEI",
		decimal.NewFromInt(1), decimal.NewFromInt(2), core.PhoneAvailable)
	if err == nil {
		t.Error("Expected error for 5-digit IMEI")
	}

	// Manual write-off path: available → damaged.
	phone, err = stock.TransitionPhone(ctx, testStoreID, "356938035643809", core.PhoneDamaged)
	if err != nil {
		t.Fatalf("TransitionPhone to damaged failed: %v", err)
	}
	if phone.Status != core.PhoneDamaged {
		t.Errorf("Expected damaged, got %s", phone.Status)
	}

	// Damaged is terminal.
	_, err = stock.TransitionPhone(ctx, testStoreID, "356938035643809", core.PhoneAvailable)
	if !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}
	var ite *core.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("Expected InvalidTransitionError detail, got %v", err)
	}
	if ite.From != core.PhoneDamaged || ite.To != core.PhoneAvailable {
		t.Errorf("Unexpected transition detail: %+v", ite)
	}
}

func TestStockService_AccessoryAdjustments(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	stock := core.NewStockService(pool)

	acc, err := stock.CreateAccessory(ctx, testStoreID, "CASE-01", "Clear Case", 10, 3,
		decimal.NewFromInt(3), decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("CreateAccessory failed: %v", err)
	}
	if acc.LowStock() {
		t.Error("10 on hand with min 3 should not be low stock")
	}

	_, err = stock.CreateAccessory(ctx, testStoreID, "CASE-01", "Duplicate", 1, 1,
		decimal.NewFromInt(1), decimal.NewFromInt(2))
	if !errors.Is(err, core.ErrDuplicateCode) {
		t.Errorf("Expected ErrDuplicateCode for duplicate SKU, got %v", err)
	}

	acc, err = stock.AdjustAccessoryStock(ctx, testStoreID, "CASE-01", -8)
	if err != nil {
		t.Fatalf("AdjustAccessoryStock failed: %v", err)
	}
	if acc.Quantity != 2 {
		t.Errorf("Expected quantity 2, got %d", acc.Quantity)
	}
	if !acc.LowStock() {
		t.Error("2 on hand with min 3 should be low stock")
	}

	// Going below zero is rejected, quantity unchanged.
	_, err = stock.AdjustAccessoryStock(ctx, testStoreID, "CASE-01", -5)
	if !errors.Is(err, core.ErrNegativeStock) {
		t.Errorf("Expected ErrNegativeStock, got %v", err)
	}
	acc, err = stock.GetAccessory(ctx, testStoreID, "CASE-01")
	if err != nil {
		t.Fatalf("GetAccessory failed: %v", err)
	}
	if acc.Quantity != 2 {
		t.Errorf("Quantity must be unchanged after rejected adjustment, got %d", acc.Quantity)
	}
}

func TestStockService_StockLevels(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	stock := core.NewStockService(pool)

	if _, err := stock.RegisterPhone(ctx, testStoreID, "490154203237518", "iPhone 16",
		decimal.NewFromInt(700), decimal.NewFromInt(999), core.PhoneAvailable); err != nil {
		t.Fatalf("RegisterPhone failed: %v", err)
	}
	if _, err := stock.CreateAccessory(ctx, testStoreID, "CHG-01", "USB-C Charger", 2, 5,
		decimal.NewFromInt(5), decimal.NewFromInt(15)); err != nil {
		t.Fatalf("CreateAccessory failed: %v", err)
	}

	levels, err := stock.GetStockLevels(ctx, testStoreID)
	if err != nil {
		t.Fatalf("GetStockLevels failed: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("Expected 2 stock rows, got %d", len(levels))
	}

	byCode := map[string]core.StockLevel{}
	for _, l := range levels {
		byCode[l.Code] = l
	}
	if l := byCode["490154203237518"]; l.Kind != "phone" || l.Quantity != 1 {
		t.Errorf("Unexpected phone level: %+v", l)
	}
	if l := byCode["CHG-01"]; !l.LowStock {
		t.Error("Charger at 2 with min 5 must be flagged low stock")
	}
}
