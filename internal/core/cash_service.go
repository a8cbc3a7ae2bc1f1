package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CashService owns register sessions and their append-only movement ledger.
// At most one session per store is open at a time; a partial unique index on
// the table backs the application-level check.
type CashService interface {
	// Open starts a session with a counted opening balance. Fails with
	// SessionAlreadyOpen if the store already has one open.
	Open(ctx context.Context, storeID, userID int, openingBalance decimal.Decimal) (*CashSession, error)

	// CurrentSession returns the store's open session, or ErrNoOpenSession.
	CurrentSession(ctx context.Context, storeID int) (*CashSession, error)

	// AppendMovement records a movement into the store's open session.
	AppendMovement(ctx context.Context, storeID int, m CashMovement) (*CashMovement, error)

	// AppendMovementTx is AppendMovement inside a caller-owned transaction,
	// used when the movement must commit atomically with a document payment
	// or an approved refund.
	AppendMovementTx(ctx context.Context, tx pgx.Tx, storeID int, m CashMovement) (*CashMovement, error)

	// RecordExpense is a convenience wrapper for an outgoing cash expense.
	RecordExpense(ctx context.Context, storeID, userID int, amount decimal.Decimal, reference string) (*CashMovement, error)

	// ExpectedBalance computes opening balance plus cash-method inflows
	// minus cash-method outflows for the open session. Card and transfer
	// movements never touch the drawer.
	ExpectedBalance(ctx context.Context, sessionID int) (decimal.Decimal, error)

	// Close ends the session with the counted closing balance. The
	// difference against the expected balance is recorded, not rejected.
	Close(ctx context.Context, sessionID, userID int, closingBalance decimal.Decimal, notes string) (*CashSession, error)

	GetSession(ctx context.Context, sessionID int) (*CashSession, error)
	GetMovements(ctx context.Context, sessionID int) ([]CashMovement, error)
}

type cashService struct {
	pool *pgxpool.Pool
}

func NewCashService(pool *pgxpool.Pool) CashService {
	return &cashService{pool: pool}
}

// ── Session lifecycle ────────────────────────────────────────────────────────

func (s *cashService) Open(ctx context.Context, storeID, userID int, openingBalance decimal.Decimal) (*CashSession, error) {
	if openingBalance.IsNegative() {
		return nil, fmt.Errorf("opening balance cannot be negative")
	}

	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO cash_sessions (store_id, opened_by, opening_balance, status)
		VALUES ($1, $2, $3, 'open')
		RETURNING id
	`, storeID, userID, openingBalance).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("store %d: %w", storeID, ErrSessionAlreadyOpen)
		}
		return nil, fmt.Errorf("failed to open cash session: %w", err)
	}
	return s.GetSession(ctx, id)
}

func (s *cashService) CurrentSession(ctx context.Context, storeID int) (*CashSession, error) {
	sess, err := scanSession(s.pool.QueryRow(ctx,
		sessionSelect+" WHERE store_id = $1 AND status = 'open'", storeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("store %d: %w", storeID, ErrNoOpenSession)
		}
		return nil, fmt.Errorf("failed to fetch open session: %w", err)
	}
	return sess, nil
}

func (s *cashService) Close(ctx context.Context, sessionID, userID int, closingBalance decimal.Decimal, notes string) (*CashSession, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status SessionStatus
	err = tx.QueryRow(ctx,
		"SELECT status FROM cash_sessions WHERE id = $1 FOR UPDATE", sessionID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cash session %d: %w", sessionID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock cash session %d: %w", sessionID, err)
	}
	if status != SessionOpen {
		return nil, fmt.Errorf("cash session %d is already closed: %w", sessionID, ErrInvalidState)
	}

	expected, err := expectedBalanceQ(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	difference := closingBalance.Sub(expected)

	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}
	_, err = tx.Exec(ctx, `
		UPDATE cash_sessions
		SET status = 'closed', closed_by = $1, closed_at = NOW(),
		    closing_balance = $2, expected_balance = $3, difference = $4, notes = $5
		WHERE id = $6
	`, userID, closingBalance, expected, difference, notesPtr, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to close cash session %d: %w", sessionID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit session close: %w", err)
	}
	return s.GetSession(ctx, sessionID)
}

// ── Movements ────────────────────────────────────────────────────────────────

func (s *cashService) AppendMovement(ctx context.Context, storeID int, m CashMovement) (*CashMovement, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	out, err := s.AppendMovementTx(ctx, tx, storeID, m)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cash movement: %w", err)
	}
	return out, nil
}

func (s *cashService) AppendMovementTx(ctx context.Context, tx pgx.Tx, storeID int, m CashMovement) (*CashMovement, error) {
	if !m.Amount.IsPositive() {
		return nil, fmt.Errorf("movement amount must be positive, got %s", m.Amount)
	}
	if m.Direction != CashIn && m.Direction != CashOut {
		return nil, fmt.Errorf("unknown cash direction %q", m.Direction)
	}

	// Lock the open session so a concurrent close cannot strand the entry.
	var sessionID int
	err := tx.QueryRow(ctx,
		"SELECT id FROM cash_sessions WHERE store_id = $1 AND status = 'open' FOR UPDATE",
		storeID,
	).Scan(&sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("store %d: %w", storeID, ErrNoOpenSession)
		}
		return nil, fmt.Errorf("failed to lock open session: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO cash_movements (session_id, store_id, amount, direction, method, movement_type, reference, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, sessionID, storeID, m.Amount, string(m.Direction), string(m.Method), string(m.Type), m.Reference, m.CreatedBy,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append cash movement: %w", err)
	}
	m.SessionID = sessionID
	m.StoreID = storeID
	return &m, nil
}

func (s *cashService) RecordExpense(ctx context.Context, storeID, userID int, amount decimal.Decimal, reference string) (*CashMovement, error) {
	return s.AppendMovement(ctx, storeID, CashMovement{
		Amount:    amount,
		Direction: CashOut,
		Method:    MethodCash,
		Type:      MovementExpense,
		Reference: reference,
		CreatedBy: userID,
	})
}

func (s *cashService) ExpectedBalance(ctx context.Context, sessionID int) (decimal.Decimal, error) {
	return expectedBalanceQ(ctx, s.pool, sessionID)
}

func expectedBalanceQ(ctx context.Context, q pgxQuerier, sessionID int) (decimal.Decimal, error) {
	var expected decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT cs.opening_balance + COALESCE(SUM(
			CASE WHEN cm.direction = 'in' THEN cm.amount ELSE -cm.amount END
		) FILTER (WHERE cm.method = 'cash'), 0)
		FROM cash_sessions cs
		LEFT JOIN cash_movements cm ON cm.session_id = cs.id
		WHERE cs.id = $1
		GROUP BY cs.opening_balance
	`, sessionID).Scan(&expected)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("cash session %d: %w", sessionID, ErrNotFound)
		}
		return decimal.Zero, fmt.Errorf("failed to compute expected balance: %w", err)
	}
	return expected, nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

const sessionSelect = `
	SELECT id, store_id, opened_by, opened_at, opening_balance,
	       closed_by, closed_at, closing_balance, expected_balance, difference,
	       notes, status
	FROM cash_sessions
`

func scanSession(row pgx.Row) (*CashSession, error) {
	sess := &CashSession{}
	err := row.Scan(
		&sess.ID, &sess.StoreID, &sess.OpenedBy, &sess.OpenedAt, &sess.OpeningBalance,
		&sess.ClosedBy, &sess.ClosedAt, &sess.ClosingBalance, &sess.ExpectedBalance, &sess.Difference,
		&sess.Notes, &sess.Status,
	)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *cashService) GetSession(ctx context.Context, sessionID int) (*CashSession, error) {
	sess, err := scanSession(s.pool.QueryRow(ctx, sessionSelect+" WHERE id = $1", sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cash session %d: %w", sessionID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch cash session %d: %w", sessionID, err)
	}
	return sess, nil
}

func (s *cashService) GetMovements(ctx context.Context, sessionID int) ([]CashMovement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, store_id, amount, direction, method, movement_type, reference, created_by, created_at
		FROM cash_movements
		WHERE session_id = $1
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash movements: %w", err)
	}
	defer rows.Close()

	var movements []CashMovement
	for rows.Next() {
		var m CashMovement
		if err := rows.Scan(
			&m.ID, &m.SessionID, &m.StoreID, &m.Amount, &m.Direction, &m.Method,
			&m.Type, &m.Reference, &m.CreatedBy, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cash movement: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cash movements: %w", err)
	}
	return movements, nil
}
