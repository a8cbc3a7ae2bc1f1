package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// StockService is the single source of truth for on-hand quantity. Bulk items
// (accessories) move by integer deltas; serialized items (phones) move by
// status transitions. All writes lock the product row FOR UPDATE so two
// concurrent sales cannot both pass an availability check on the same unit.
type StockService interface {
	// RegisterPhone inserts a new handset. initial must be available (direct
	// stock intake) or reserved (pending purchase posting). Fails with
	// DuplicateCode if the IMEI already exists in the store.
	RegisterPhone(ctx context.Context, storeID int, imei, model string,
		buyPrice, sellPrice decimal.Decimal, initial PhoneStatus) (*Phone, error)

	// TransitionPhone moves a phone between statuses per the transition
	// table (e.g. available → damaged for a manual write-off).
	TransitionPhone(ctx context.Context, storeID int, imei string, to PhoneStatus) (*Phone, error)

	// CreateAccessory inserts a new bulk item. Fails with DuplicateCode if
	// the SKU already exists in the store.
	CreateAccessory(ctx context.Context, storeID int, sku, name string,
		quantity, minQty int, buyPrice, sellPrice decimal.Decimal) (*Accessory, error)

	// AdjustAccessoryStock applies a manual delta (stocktake correction).
	// Rejects with NegativeStock if the result would be below zero.
	AdjustAccessoryStock(ctx context.Context, storeID int, sku string, delta int) (*Accessory, error)

	// GetPhone / GetAccessory look up a product by its code.
	GetPhone(ctx context.Context, storeID int, imei string) (*Phone, error)
	GetAccessory(ctx context.Context, storeID int, sku string) (*Accessory, error)

	// GetStockLevels returns the combined stock view. The low-stock flag is
	// derived in the query, never read from a stored column.
	GetStockLevels(ctx context.Context, storeID int) ([]StockLevel, error)

	// TX-scoped operations, used by the document engine and return workflow
	// so stock mutation commits atomically with the status flip.

	// ApplyAccessoryDeltaTx adds delta to quantity inside the caller's TX,
	// locking the row first. Rejects with NegativeStock below zero.
	ApplyAccessoryDeltaTx(ctx context.Context, tx pgx.Tx, accessoryID, delta int) error
	// TransitionPhoneTx performs a locked status transition inside the
	// caller's TX. Rejects illegal moves with InvalidTransition.
	TransitionPhoneTx(ctx context.Context, tx pgx.Tx, phoneID int, to PhoneStatus) error
}

type stockService struct {
	pool *pgxpool.Pool
}

// NewStockService constructs a StockService backed by PostgreSQL.
func NewStockService(pool *pgxpool.Pool) StockService {
	return &stockService{pool: pool}
}

// ── Serialized items ─────────────────────────────────────────────────────────

func (s *stockService) RegisterPhone(ctx context.Context, storeID int, imei, model string,
	buyPrice, sellPrice decimal.Decimal, initial PhoneStatus) (*Phone, error) {

	if !ValidIMEI(imei) {
		return nil, fmt.Errorf("imei %q must be 15-17 digits", imei)
	}
	if initial != PhoneAvailable && initial != PhoneReserved {
		return nil, fmt.Errorf("initial phone status must be available or reserved, got %s", initial)
	}

	// Uniqueness is checked before insert; the unique index is the backstop
	// against a concurrent insert of the same IMEI.
	var existing int
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM phones WHERE store_id = $1 AND imei = $2",
		storeID, imei,
	).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("imei %s: %w", imei, ErrDuplicateCode)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check imei uniqueness: %w", err)
	}

	p := &Phone{}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO phones (store_id, imei, model, buy_price, sell_price, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, store_id, imei, model, buy_price, sell_price, status, created_at, updated_at
	`, storeID, imei, model, buyPrice, sellPrice, string(initial)).Scan(
		&p.ID, &p.StoreID, &p.IMEI, &p.Model, &p.BuyPrice, &p.SellPrice, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("imei %s: %w", imei, ErrDuplicateCode)
		}
		return nil, fmt.Errorf("failed to register phone: %w", err)
	}
	return p, nil
}

func (s *stockService) TransitionPhone(ctx context.Context, storeID int, imei string, to PhoneStatus) (*Phone, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var phoneID int
	err = tx.QueryRow(ctx,
		"SELECT id FROM phones WHERE store_id = $1 AND imei = $2",
		storeID, imei,
	).Scan(&phoneID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("phone %s: %w", imei, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up phone %s: %w", imei, err)
	}

	if err := s.TransitionPhoneTx(ctx, tx, phoneID, to); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit phone transition: %w", err)
	}
	return s.GetPhone(ctx, storeID, imei)
}

func (s *stockService) TransitionPhoneTx(ctx context.Context, tx pgx.Tx, phoneID int, to PhoneStatus) error {
	var imei string
	var current PhoneStatus
	err := tx.QueryRow(ctx,
		"SELECT imei, status FROM phones WHERE id = $1 FOR UPDATE",
		phoneID,
	).Scan(&imei, &current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("phone id=%d: %w", phoneID, ErrNotFound)
		}
		return fmt.Errorf("failed to lock phone id=%d: %w", phoneID, err)
	}

	if !CanTransitionPhone(current, to) {
		return &InvalidTransitionError{IMEI: imei, From: current, To: to}
	}

	_, err = tx.Exec(ctx,
		"UPDATE phones SET status = $1, updated_at = NOW() WHERE id = $2",
		string(to), phoneID,
	)
	if err != nil {
		return fmt.Errorf("failed to transition phone %s to %s: %w", imei, to, err)
	}
	return nil
}

// ── Bulk items ───────────────────────────────────────────────────────────────

func (s *stockService) CreateAccessory(ctx context.Context, storeID int, sku, name string,
	quantity, minQty int, buyPrice, sellPrice decimal.Decimal) (*Accessory, error) {

	if quantity < 0 || minQty < 0 {
		return nil, fmt.Errorf("quantity and min_qty must be non-negative")
	}

	var existing int
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM accessories WHERE store_id = $1 AND sku = $2",
		storeID, sku,
	).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("sku %s: %w", sku, ErrDuplicateCode)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check sku uniqueness: %w", err)
	}

	a := &Accessory{}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO accessories (store_id, sku, name, quantity, min_qty, buy_price, sell_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, store_id, sku, name, quantity, min_qty, buy_price, sell_price, created_at, updated_at
	`, storeID, sku, name, quantity, minQty, buyPrice, sellPrice).Scan(
		&a.ID, &a.StoreID, &a.SKU, &a.Name, &a.Quantity, &a.MinQty, &a.BuyPrice, &a.SellPrice, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("sku %s: %w", sku, ErrDuplicateCode)
		}
		return nil, fmt.Errorf("failed to create accessory: %w", err)
	}
	return a, nil
}

func (s *stockService) AdjustAccessoryStock(ctx context.Context, storeID int, sku string, delta int) (*Accessory, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var accessoryID int
	err = tx.QueryRow(ctx,
		"SELECT id FROM accessories WHERE store_id = $1 AND sku = $2",
		storeID, sku,
	).Scan(&accessoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("accessory %s: %w", sku, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up accessory %s: %w", sku, err)
	}

	if err := s.ApplyAccessoryDeltaTx(ctx, tx, accessoryID, delta); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit stock adjustment: %w", err)
	}
	return s.GetAccessory(ctx, storeID, sku)
}

func (s *stockService) ApplyAccessoryDeltaTx(ctx context.Context, tx pgx.Tx, accessoryID, delta int) error {
	var sku string
	var quantity int
	err := tx.QueryRow(ctx,
		"SELECT sku, quantity FROM accessories WHERE id = $1 FOR UPDATE",
		accessoryID,
	).Scan(&sku, &quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("accessory id=%d: %w", accessoryID, ErrNotFound)
		}
		return fmt.Errorf("failed to lock accessory id=%d: %w", accessoryID, err)
	}

	if quantity+delta < 0 {
		return fmt.Errorf("accessory %s: %d%+d: %w", sku, quantity, delta, ErrNegativeStock)
	}

	_, err = tx.Exec(ctx,
		"UPDATE accessories SET quantity = quantity + $1, updated_at = NOW() WHERE id = $2",
		delta, accessoryID,
	)
	if err != nil {
		return fmt.Errorf("failed to apply stock delta for %s: %w", sku, err)
	}
	return nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *stockService) GetPhone(ctx context.Context, storeID int, imei string) (*Phone, error) {
	p := &Phone{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, store_id, imei, model, buy_price, sell_price, status, created_at, updated_at
		FROM phones WHERE store_id = $1 AND imei = $2
	`, storeID, imei).Scan(
		&p.ID, &p.StoreID, &p.IMEI, &p.Model, &p.BuyPrice, &p.SellPrice, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("phone %s: %w", imei, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch phone %s: %w", imei, err)
	}
	return p, nil
}

func (s *stockService) GetAccessory(ctx context.Context, storeID int, sku string) (*Accessory, error) {
	a := &Accessory{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, store_id, sku, name, quantity, min_qty, buy_price, sell_price, created_at, updated_at
		FROM accessories WHERE store_id = $1 AND sku = $2
	`, storeID, sku).Scan(
		&a.ID, &a.StoreID, &a.SKU, &a.Name, &a.Quantity, &a.MinQty, &a.BuyPrice, &a.SellPrice, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("accessory %s: %w", sku, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch accessory %s: %w", sku, err)
	}
	return a, nil
}

func (s *stockService) GetStockLevels(ctx context.Context, storeID int) ([]StockLevel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT 'accessory', sku, name, quantity, min_qty, quantity <= min_qty, NULL::text
		FROM accessories WHERE store_id = $1
		UNION ALL
		SELECT 'phone', imei, model,
		       CASE WHEN status = 'available' THEN 1 ELSE 0 END, 0, false, status
		FROM phones WHERE store_id = $1
		ORDER BY 1, 2
	`, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		var status *string
		if err := rows.Scan(&sl.Kind, &sl.Code, &sl.Name, &sl.Quantity, &sl.MinQty, &sl.LowStock, &status); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		if status != nil {
			ps := PhoneStatus(*status)
			sl.Status = &ps
		}
		levels = append(levels, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock levels: %w", err)
	}
	return levels, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
