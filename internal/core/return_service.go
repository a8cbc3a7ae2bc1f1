package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ReturnInput describes a requested return against one line of a posted sale.
type ReturnInput struct {
	SaleID         int
	DocumentItemID int
	Qty            int
	Reason         string
	Condition      ReturnCondition
	RefundAmount   decimal.Decimal // zero means refund the line's paid price pro rata
}

// ReturnService runs the pending → approved → refunded → completed workflow.
// A pending return holds no stock and no money; everything happens at
// approval, atomically.
type ReturnService interface {
	// Create registers a pending return. The cumulative returned quantity
	// per sale line, counting pending and approved returns, can never
	// exceed the sold quantity; excess fails with OverReturn.
	Create(ctx context.Context, storeID int, input ReturnInput, actor Actor) (*ReturnTransaction, error)

	// Approve credits stock back (per condition) and records the refund as
	// an outgoing cash movement in the store's open session. Owner only.
	// Fails with NoOpenSession when no register session is open.
	Approve(ctx context.Context, returnID int, actor Actor) (*ReturnTransaction, error)

	// Reject closes a pending return with a reason. No stock or cash effect.
	Reject(ctx context.Context, returnID int, reason string, actor Actor) (*ReturnTransaction, error)

	// MarkRefunded records that the customer was paid, with an external
	// payment reference.
	MarkRefunded(ctx context.Context, returnID int, paymentRef string) (*ReturnTransaction, error)

	// Complete archives a refunded return.
	Complete(ctx context.Context, returnID int) (*ReturnTransaction, error)

	GetReturn(ctx context.Context, returnID int) (*ReturnTransaction, error)
	GetReturns(ctx context.Context, storeID int, status *ReturnStatus) ([]ReturnTransaction, error)
}

type returnService struct {
	pool  *pgxpool.Pool
	stock StockService
	cash  CashService
}

func NewReturnService(pool *pgxpool.Pool, stock StockService, cash CashService) ReturnService {
	return &returnService{pool: pool, stock: stock, cash: cash}
}

// ── Workflow ─────────────────────────────────────────────────────────────────

func (s *returnService) Create(ctx context.Context, storeID int, input ReturnInput, actor Actor) (*ReturnTransaction, error) {
	if input.Qty <= 0 {
		return nil, fmt.Errorf("return quantity must be positive, got %d", input.Qty)
	}
	if input.Condition != ConditionResellable && input.Condition != ConditionDamaged {
		return nil, fmt.Errorf("unknown return condition %q", input.Condition)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the sale line and its document so two concurrent returns cannot
	// both pass the over-return check and a concurrent cancel cannot slip
	// between the status check and the insert.
	var phoneID, accessoryID *int
	var soldQty int
	var unitPrice, discount decimal.Decimal
	var productCode string
	err = tx.QueryRow(ctx, `
		SELECT di.phone_id, di.accessory_id, di.qty, di.unit_price, di.discount,
		       COALESCE(p.imei, a.sku)
		FROM document_items di
		JOIN documents d        ON d.id = di.document_id
		LEFT JOIN phones p      ON p.id = di.phone_id
		LEFT JOIN accessories a ON a.id = di.accessory_id
		WHERE di.id = $1 AND di.document_id = $2
		  AND d.store_id = $3 AND d.doc_type = 'sale' AND d.status = 'posted'
		FOR UPDATE OF di, d
	`, input.DocumentItemID, input.SaleID, storeID,
	).Scan(&phoneID, &accessoryID, &soldQty, &unitPrice, &discount, &productCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("posted sale line %d on document %d: %w",
				input.DocumentItemID, input.SaleID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock sale line %d: %w", input.DocumentItemID, err)
	}

	var alreadyReturned int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(qty), 0) FROM returns
		WHERE document_item_id = $1 AND status NOT IN ('rejected')
	`, input.DocumentItemID).Scan(&alreadyReturned)
	if err != nil {
		return nil, fmt.Errorf("failed to sum prior returns for line %d: %w", input.DocumentItemID, err)
	}
	if alreadyReturned+input.Qty > soldQty {
		return nil, &OverReturnError{
			SaleLineID:  input.DocumentItemID,
			SoldQty:     soldQty,
			ReturnedQty: alreadyReturned,
			Requested:   input.Qty,
		}
	}

	refund := input.RefundAmount
	if refund.IsZero() {
		// Pro-rata share of the line total, discount included.
		refund = LineTotal(soldQty, unitPrice, discount).
			Div(decimal.NewFromInt(int64(soldQty))).
			Mul(decimal.NewFromInt(int64(input.Qty)))
	}
	if refund.IsNegative() {
		return nil, fmt.Errorf("refund amount cannot be negative")
	}

	var id int
	err = tx.QueryRow(ctx, `
		INSERT INTO returns (store_id, sale_id, document_item_id, phone_id, accessory_id,
		                     qty, reason, condition, refund_amount, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10)
		RETURNING id
	`, storeID, input.SaleID, input.DocumentItemID, phoneID, accessoryID,
		input.Qty, input.Reason, string(input.Condition), refund, actor.UserID,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create return: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit return creation: %w", err)
	}
	return s.GetReturn(ctx, id)
}

func (s *returnService) Approve(ctx context.Context, returnID int, actor Actor) (*ReturnTransaction, error) {
	if !actor.IsOwner() {
		return nil, fmt.Errorf("approve return %d: %w", returnID, ErrUnauthorized)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var storeID, qty int
	var status ReturnStatus
	var condition ReturnCondition
	var phoneID, accessoryID *int
	var refund decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT store_id, status, condition, phone_id, accessory_id, qty, refund_amount
		FROM returns WHERE id = $1 FOR UPDATE
	`, returnID).Scan(&storeID, &status, &condition, &phoneID, &accessoryID, &qty, &refund)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("return %d: %w", returnID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock return %d: %w", returnID, err)
	}
	if !CanTransitionReturn(status, ReturnApproved) {
		return nil, fmt.Errorf("return %d cannot be approved from %s: %w", returnID, status, ErrInvalidState)
	}

	// Stock comes back per condition.
	if accessoryID != nil {
		if err := s.stock.ApplyAccessoryDeltaTx(ctx, tx, *accessoryID, qty); err != nil {
			return nil, fmt.Errorf("failed to credit accessory stock for return %d: %w", returnID, err)
		}
	} else {
		to := PhoneReturned // damaged path: hold for inspection
		if condition == ConditionResellable {
			to = PhoneAvailable
		}
		if err := s.stock.TransitionPhoneTx(ctx, tx, *phoneID, to); err != nil {
			return nil, fmt.Errorf("failed to transition phone for return %d: %w", returnID, err)
		}
	}

	// The refund leaves the drawer now, in the open session.
	if refund.IsPositive() {
		_, err = s.cash.AppendMovementTx(ctx, tx, storeID, CashMovement{
			Amount:    refund,
			Direction: CashOut,
			Method:    MethodCash,
			Type:      MovementRefund,
			Reference: fmt.Sprintf("RET-%d", returnID),
			CreatedBy: actor.UserID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record refund movement for return %d: %w", returnID, err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE returns SET status = 'approved', approved_by = $1, approved_at = NOW()
		WHERE id = $2
	`, actor.UserID, returnID)
	if err != nil {
		return nil, fmt.Errorf("failed to approve return %d: %w", returnID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit return approval: %w", err)
	}
	return s.GetReturn(ctx, returnID)
}

func (s *returnService) Reject(ctx context.Context, returnID int, reason string, actor Actor) (*ReturnTransaction, error) {
	if !actor.IsOwner() {
		return nil, fmt.Errorf("reject return %d: %w", returnID, ErrUnauthorized)
	}
	return s.transition(ctx, returnID, ReturnRejected,
		"UPDATE returns SET status = 'rejected', rejection_reason = $1 WHERE id = $2", reason, returnID)
}

func (s *returnService) MarkRefunded(ctx context.Context, returnID int, paymentRef string) (*ReturnTransaction, error) {
	return s.transition(ctx, returnID, ReturnRefunded,
		"UPDATE returns SET status = 'refunded', payment_ref = $1 WHERE id = $2", paymentRef, returnID)
}

func (s *returnService) Complete(ctx context.Context, returnID int) (*ReturnTransaction, error) {
	return s.transition(ctx, returnID, ReturnCompleted,
		"UPDATE returns SET status = 'completed' WHERE id = $1", returnID)
}

// transition runs a guarded status flip for the steps with no side effects.
func (s *returnService) transition(ctx context.Context, returnID int, to ReturnStatus, update string, args ...any) (*ReturnTransaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status ReturnStatus
	err = tx.QueryRow(ctx, "SELECT status FROM returns WHERE id = $1 FOR UPDATE", returnID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("return %d: %w", returnID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock return %d: %w", returnID, err)
	}
	if !CanTransitionReturn(status, to) {
		return nil, fmt.Errorf("return %d cannot move %s -> %s: %w", returnID, status, to, ErrInvalidState)
	}

	if _, err := tx.Exec(ctx, update, args...); err != nil {
		return nil, fmt.Errorf("failed to update return %d: %w", returnID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit return transition: %w", err)
	}
	return s.GetReturn(ctx, returnID)
}

// ── Queries ──────────────────────────────────────────────────────────────────

const returnSelect = `
	SELECT r.id, r.store_id, r.sale_id, r.document_item_id, r.phone_id, r.accessory_id,
	       COALESCE(p.imei, a.sku, ''), r.qty, r.reason, r.condition, r.refund_amount,
	       r.status, r.approved_by, r.approved_at, r.rejection_reason, r.payment_ref, r.created_at
	FROM returns r
	LEFT JOIN phones p      ON p.id = r.phone_id
	LEFT JOIN accessories a ON a.id = r.accessory_id
`

func scanReturn(row pgx.Row) (*ReturnTransaction, error) {
	r := &ReturnTransaction{}
	err := row.Scan(
		&r.ID, &r.StoreID, &r.SaleID, &r.DocumentItemID, &r.PhoneID, &r.AccessoryID,
		&r.ProductCode, &r.Qty, &r.Reason, &r.Condition, &r.RefundAmount,
		&r.Status, &r.ApprovedBy, &r.ApprovedAt, &r.RejectionReason, &r.PaymentRef, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *returnService) GetReturn(ctx context.Context, returnID int) (*ReturnTransaction, error) {
	r, err := scanReturn(s.pool.QueryRow(ctx, returnSelect+" WHERE r.id = $1", returnID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("return %d: %w", returnID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch return %d: %w", returnID, err)
	}
	return r, nil
}

func (s *returnService) GetReturns(ctx context.Context, storeID int, status *ReturnStatus) ([]ReturnTransaction, error) {
	query := returnSelect + " WHERE r.store_id = $1"
	args := []any{storeID}
	if status != nil {
		args = append(args, string(*status))
		query += " AND r.status = $2"
	}
	query += " ORDER BY r.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query returns: %w", err)
	}
	defer rows.Close()

	var returns []ReturnTransaction
	for rows.Next() {
		r, err := scanReturn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan return: %w", err)
		}
		returns = append(returns, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating returns: %w", err)
	}
	return returns, nil
}
