package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CounterpartyBalance is the computed debt position of a customer or
// supplier: the sum of remaining amounts over their posted documents.
type CounterpartyBalance struct {
	CounterpartyID int
	Code           string
	Name           string
	TotalAmount    decimal.Decimal
	PaidAmount     decimal.Decimal
	Remaining      decimal.Decimal
	DocumentCount  int
}

// HighRiskCustomer is a customer whose unpaid share of posted sales exceeds
// the configured ratio threshold.
type HighRiskCustomer struct {
	CounterpartyBalance
	DebtRatio decimal.Decimal
}

// BalanceService records payments against posted documents and reports on
// counterparty debt. Balances are always computed from documents, never
// stored, so they cannot drift.
type BalanceService interface {
	// RecordPayment applies a partial or full payment to a posted document.
	// The payment is clamped validation-side: an amount exceeding the
	// remaining balance fails with OverPayment. Cash payments also append a
	// movement to the store's open session, atomically.
	RecordPayment(ctx context.Context, documentID int, amount decimal.Decimal, method PayMethod, actor Actor) (*Document, error)

	// CustomerBalance and SupplierBalance compute one counterparty's
	// position over its posted documents. Cancelled and draft documents
	// never count.
	CustomerBalance(ctx context.Context, customerID int) (*CounterpartyBalance, error)
	SupplierBalance(ctx context.Context, supplierID int) (*CounterpartyBalance, error)

	// CustomerBalances lists every customer of the store with outstanding
	// posted sales.
	CustomerBalances(ctx context.Context, storeID int) ([]CounterpartyBalance, error)

	// HighRiskCustomers lists customers whose remaining/total ratio over
	// posted sales exceeds the threshold. Customers with zero total
	// are excluded. A non-positive threshold falls back to the default.
	HighRiskCustomers(ctx context.Context, storeID int, threshold decimal.Decimal) ([]HighRiskCustomer, error)
}

// DefaultRiskThreshold flags customers who still owe more than half of what
// they bought.
var DefaultRiskThreshold = decimal.NewFromFloat(0.5)

type balanceService struct {
	pool *pgxpool.Pool
	cash CashService
}

func NewBalanceService(pool *pgxpool.Pool, cash CashService) BalanceService {
	return &balanceService{pool: pool, cash: cash}
}

// ── Payments ─────────────────────────────────────────────────────────────────

func (s *balanceService) RecordPayment(ctx context.Context, documentID int, amount decimal.Decimal, method PayMethod, actor Actor) (*Document, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("payment amount must be positive, got %s", amount)
	}
	switch method {
	case MethodCash, MethodCard, MethodTransfer:
	default:
		return nil, fmt.Errorf("unknown payment method %q", method)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var storeID int
	var docType DocType
	var status DocStatus
	var number string
	var remaining decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT store_id, doc_type, status, COALESCE(doc_number, ''), remaining_amount
		FROM documents WHERE id = $1 FOR UPDATE
	`, documentID).Scan(&storeID, &docType, &status, &number, &remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("document %d: %w", documentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock document %d: %w", documentID, err)
	}
	if status != DocPosted {
		return nil, fmt.Errorf("document %d is %s, payments apply to posted documents only: %w",
			documentID, status, ErrInvalidState)
	}
	if amount.GreaterThan(remaining) {
		return nil, fmt.Errorf("payment %s exceeds remaining balance %s on document %s: %w",
			amount, remaining, number, ErrOverPayment)
	}

	_, err = tx.Exec(ctx, `
		UPDATE documents
		SET paid_amount = paid_amount + $1, remaining_amount = remaining_amount - $1
		WHERE id = $2
	`, amount, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to apply payment to document %d: %w", documentID, err)
	}

	// Only physical cash hits the drawer. Card and transfer settle outside.
	if method == MethodCash {
		direction := CashIn
		movementType := MovementSale
		if docType == DocPurchase {
			direction = CashOut
			movementType = MovementPurchase
		}
		_, err = s.cash.AppendMovementTx(ctx, tx, storeID, CashMovement{
			Amount:    amount,
			Direction: direction,
			Method:    MethodCash,
			Type:      movementType,
			Reference: number,
			CreatedBy: actor.UserID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record cash movement for document %s: %w", number, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}

	d, err := scanDocument(s.pool.QueryRow(ctx, documentSelect+" WHERE d.id = $1", documentID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document %d after payment: %w", documentID, err)
	}
	return d, nil
}

// ── Balance reports ──────────────────────────────────────────────────────────

const customerBalanceSelect = `
	SELECT c.id, c.code, c.name,
	       COALESCE(SUM(d.total), 0), COALESCE(SUM(d.paid_amount), 0),
	       COALESCE(SUM(d.remaining_amount), 0), COUNT(d.id)
	FROM customers c
	LEFT JOIN documents d ON d.customer_id = c.id AND d.status = 'posted'
`

func (s *balanceService) CustomerBalance(ctx context.Context, customerID int) (*CounterpartyBalance, error) {
	b, err := scanBalance(s.pool.QueryRow(ctx,
		customerBalanceSelect+" WHERE c.id = $1 GROUP BY c.id, c.code, c.name", customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %d: %w", customerID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to compute customer balance: %w", err)
	}
	return b, nil
}

func (s *balanceService) SupplierBalance(ctx context.Context, supplierID int) (*CounterpartyBalance, error) {
	b, err := scanBalance(s.pool.QueryRow(ctx, `
		SELECT sp.id, sp.code, sp.name,
		       COALESCE(SUM(d.total), 0), COALESCE(SUM(d.paid_amount), 0),
		       COALESCE(SUM(d.remaining_amount), 0), COUNT(d.id)
		FROM suppliers sp
		LEFT JOIN documents d ON d.supplier_id = sp.id AND d.status = 'posted'
		WHERE sp.id = $1
		GROUP BY sp.id, sp.code, sp.name
	`, supplierID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("supplier %d: %w", supplierID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to compute supplier balance: %w", err)
	}
	return b, nil
}

func (s *balanceService) CustomerBalances(ctx context.Context, storeID int) ([]CounterpartyBalance, error) {
	rows, err := s.pool.Query(ctx,
		customerBalanceSelect+`
		WHERE c.store_id = $1
		GROUP BY c.id, c.code, c.name
		HAVING COALESCE(SUM(d.remaining_amount), 0) > 0
		ORDER BY COALESCE(SUM(d.remaining_amount), 0) DESC
	`, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer balances: %w", err)
	}
	defer rows.Close()

	var balances []CounterpartyBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer balance: %w", err)
		}
		balances = append(balances, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating customer balances: %w", err)
	}
	return balances, nil
}

func (s *balanceService) HighRiskCustomers(ctx context.Context, storeID int, threshold decimal.Decimal) ([]HighRiskCustomer, error) {
	if !threshold.IsPositive() {
		threshold = DefaultRiskThreshold
	}

	balances, err := s.CustomerBalances(ctx, storeID)
	if err != nil {
		return nil, err
	}

	var risky []HighRiskCustomer
	for _, b := range balances {
		ratio, ok := DebtRatio(b.TotalAmount, b.Remaining)
		if !ok {
			continue // zero total, nothing to assess
		}
		if ratio.GreaterThan(threshold) {
			risky = append(risky, HighRiskCustomer{CounterpartyBalance: b, DebtRatio: ratio})
		}
	}
	return risky, nil
}

// DebtRatio returns remaining/total. ok is false when total is zero, which
// callers treat as not assessable rather than zero risk.
func DebtRatio(total, remaining decimal.Decimal) (decimal.Decimal, bool) {
	if total.IsZero() {
		return decimal.Zero, false
	}
	return remaining.Div(total), true
}

func scanBalance(row pgx.Row) (*CounterpartyBalance, error) {
	b := &CounterpartyBalance{}
	err := row.Scan(&b.CounterpartyID, &b.Code, &b.Name,
		&b.TotalAmount, &b.PaidAmount, &b.Remaining, &b.DocumentCount)
	if err != nil {
		return nil, err
	}
	return b, nil
}
