package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PartyService manages the counterparty directory. Codes are unique per
// store; everything else is display data.
type PartyService interface {
	CreateCustomer(ctx context.Context, storeID int, code, name, phone string) (*Customer, error)
	GetCustomerByCode(ctx context.Context, storeID int, code string) (*Customer, error)
	GetCustomers(ctx context.Context, storeID int) ([]Customer, error)

	CreateSupplier(ctx context.Context, storeID int, code, name, phone string) (*Supplier, error)
	GetSupplierByCode(ctx context.Context, storeID int, code string) (*Supplier, error)
	GetSuppliers(ctx context.Context, storeID int) ([]Supplier, error)
}

type partyService struct {
	pool *pgxpool.Pool
}

func NewPartyService(pool *pgxpool.Pool) PartyService {
	return &partyService{pool: pool}
}

func (s *partyService) CreateCustomer(ctx context.Context, storeID int, code, name, phone string) (*Customer, error) {
	if code == "" || name == "" {
		return nil, fmt.Errorf("customer code and name are required")
	}
	var phonePtr *string
	if phone != "" {
		phonePtr = &phone
	}
	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO customers (store_id, code, name, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, storeID, code, name, phonePtr).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("customer code %s: %w", code, ErrDuplicateCode)
		}
		return nil, fmt.Errorf("failed to create customer %s: %w", code, err)
	}
	return s.getCustomer(ctx, "id = $1", id)
}

func (s *partyService) GetCustomerByCode(ctx context.Context, storeID int, code string) (*Customer, error) {
	return s.getCustomer(ctx, "store_id = $1 AND code = $2", storeID, code)
}

func (s *partyService) getCustomer(ctx context.Context, where string, args ...any) (*Customer, error) {
	c := &Customer{}
	err := s.pool.QueryRow(ctx,
		"SELECT id, store_id, code, name, phone, created_at FROM customers WHERE "+where, args...,
	).Scan(&c.ID, &c.StoreID, &c.Code, &c.Name, &c.Phone, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch customer: %w", err)
	}
	return c, nil
}

func (s *partyService) GetCustomers(ctx context.Context, storeID int) ([]Customer, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, store_id, code, name, phone, created_at FROM customers WHERE store_id = $1 ORDER BY code",
		storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.StoreID, &c.Code, &c.Name, &c.Phone, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating customers: %w", err)
	}
	return customers, nil
}

func (s *partyService) CreateSupplier(ctx context.Context, storeID int, code, name, phone string) (*Supplier, error) {
	if code == "" || name == "" {
		return nil, fmt.Errorf("supplier code and name are required")
	}
	var phonePtr *string
	if phone != "" {
		phonePtr = &phone
	}
	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (store_id, code, name, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, storeID, code, name, phonePtr).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("supplier code %s: %w", code, ErrDuplicateCode)
		}
		return nil, fmt.Errorf("failed to create supplier %s: %w", code, err)
	}
	return s.getSupplier(ctx, "id = $1", id)
}

func (s *partyService) GetSupplierByCode(ctx context.Context, storeID int, code string) (*Supplier, error) {
	return s.getSupplier(ctx, "store_id = $1 AND code = $2", storeID, code)
}

func (s *partyService) getSupplier(ctx context.Context, where string, args ...any) (*Supplier, error) {
	sp := &Supplier{}
	err := s.pool.QueryRow(ctx,
		"SELECT id, store_id, code, name, phone, created_at FROM suppliers WHERE "+where, args...,
	).Scan(&sp.ID, &sp.StoreID, &sp.Code, &sp.Name, &sp.Phone, &sp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("supplier: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch supplier: %w", err)
	}
	return sp, nil
}

func (s *partyService) GetSuppliers(ctx context.Context, storeID int) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, store_id, code, name, phone, created_at FROM suppliers WHERE store_id = $1 ORDER BY code",
		storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var sp Supplier
		if err := rows.Scan(&sp.ID, &sp.StoreID, &sp.Code, &sp.Name, &sp.Phone, &sp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suppliers: %w", err)
	}
	return suppliers, nil
}
