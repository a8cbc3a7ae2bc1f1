package core_test

import (
	"context"
	"errors"
	"testing"

	"shopledger/internal/core"

	"github.com/shopspring/decimal"
)

func TestCashService_SessionLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	cash := core.NewCashService(pool)

	// No session yet.
	_, err := cash.CurrentSession(ctx, testStoreID)
	if !errors.Is(err, core.ErrNoOpenSession) {
		t.Errorf("Expected ErrNoOpenSession, got %v", err)
	}

	sess, err := cash.Open(ctx, testStoreID, cashierActor.UserID, decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if sess.Status != core.SessionOpen {
		t.Errorf("Expected open, got %s", sess.Status)
	}

	// One open session per store.
	_, err = cash.Open(ctx, testStoreID, cashierActor.UserID, decimal.NewFromInt(100))
	if !errors.Is(err, core.ErrSessionAlreadyOpen) {
		t.Errorf("Expected ErrSessionAlreadyOpen, got %v", err)
	}

	// Movements: +1000 cash sale, -200 cash expense, +300 card sale.
	// Only cash-method entries move the drawer.
	_, err = cash.AppendMovement(ctx, testStoreID, core.CashMovement{
		Amount: decimal.NewFromInt(1000), Direction: core.CashIn,
		Method: core.MethodCash, Type: core.MovementSale,
		Reference: "SAL-20260301-0001", CreatedBy: cashierActor.UserID,
	})
	if err != nil {
		t.Fatalf("AppendMovement failed: %v", err)
	}
	if _, err := cash.RecordExpense(ctx, testStoreID, cashierActor.UserID,
		decimal.NewFromInt(200), "window cleaning"); err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}
	_, err = cash.AppendMovement(ctx, testStoreID, core.CashMovement{
		Amount: decimal.NewFromInt(300), Direction: core.CashIn,
		Method: core.MethodCard, Type: core.MovementSale,
		Reference: "SAL-20260301-0002", CreatedBy: cashierActor.UserID,
	})
	if err != nil {
		t.Fatalf("AppendMovement failed: %v", err)
	}

	// Expected: 500 + 1000 - 200 = 1300. The card sale stays out.
	expected, err := cash.ExpectedBalance(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ExpectedBalance failed: %v", err)
	}
	if !expected.Equal(decimal.NewFromInt(1300)) {
		t.Errorf("Expected balance 1300, got %s", expected)
	}

	// Close with a counted 1250: 50 short, recorded not rejected.
	sess, err = cash.Close(ctx, sess.ID, ownerActor.UserID, decimal.NewFromInt(1250), "evening close")
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if sess.Status != core.SessionClosed {
		t.Errorf("Expected closed, got %s", sess.Status)
	}
	if !sess.Difference.Equal(decimal.NewFromInt(-50)) {
		t.Errorf("Expected difference -50, got %s", sess.Difference)
	}
	if core.DifferenceKind(*sess.Difference) != "short" {
		t.Errorf("Expected short, got %s", core.DifferenceKind(*sess.Difference))
	}

	// Closed means closed.
	_, err = cash.Close(ctx, sess.ID, ownerActor.UserID, decimal.NewFromInt(1250), "")
	if !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState on double close, got %v", err)
	}
	_, err = cash.RecordExpense(ctx, testStoreID, cashierActor.UserID, decimal.NewFromInt(10), "late expense")
	if !errors.Is(err, core.ErrNoOpenSession) {
		t.Errorf("Expected ErrNoOpenSession after close, got %v", err)
	}

	// A new session can open once the old one is closed.
	if _, err := cash.Open(ctx, testStoreID, cashierActor.UserID, decimal.NewFromInt(1250)); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
}

func TestCashService_MovementValidation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	cash := core.NewCashService(pool)

	if _, err := cash.Open(ctx, testStoreID, cashierActor.UserID, decimal.Zero); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	_, err := cash.AppendMovement(ctx, testStoreID, core.CashMovement{
		Amount: decimal.NewFromInt(-5), Direction: core.CashIn,
		Method: core.MethodCash, Type: core.MovementSale, CreatedBy: cashierActor.UserID,
	})
	if err == nil {
		t.Error("Expected error for negative movement amount")
	}
	_, err = cash.AppendMovement(ctx, testStoreID, core.CashMovement{
		Amount: decimal.NewFromInt(5), Direction: "sideways",
		Method: core.MethodCash, Type: core.MovementSale, CreatedBy: cashierActor.UserID,
	})
	if err == nil {
		t.Error("Expected error for unknown direction")
	}
}
