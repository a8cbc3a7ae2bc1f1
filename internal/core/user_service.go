package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserService is the lookup surface the auth layer builds on. Password
// verification lives in the application layer; core only stores the hash.
type UserService interface {
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, userID int) (*User, error)
	CreateUser(ctx context.Context, storeID int, username, passwordHash string, role Role) (*User, error)
	GetStore(ctx context.Context, storeID int) (*Store, error)
	GetStoreByCode(ctx context.Context, code string) (*Store, error)
}

type userService struct {
	pool *pgxpool.Pool
}

func NewUserService(pool *pgxpool.Pool) UserService {
	return &userService{pool: pool}
}

const userSelect = `
	SELECT id, store_id, username, password_hash, role, is_active, created_at
	FROM users
`

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.StoreID, &u.Username, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *userService) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, userSelect+" WHERE username = $1", username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch user %s: %w", username, err)
	}
	return u, nil
}

func (s *userService) GetUserByID(ctx context.Context, userID int) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, userSelect+" WHERE id = $1", userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch user %d: %w", userID, err)
	}
	return u, nil
}

func (s *userService) CreateUser(ctx context.Context, storeID int, username, passwordHash string, role Role) (*User, error) {
	switch role {
	case RoleOwner, RoleManager, RoleCashier:
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (store_id, username, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, storeID, username, passwordHash, string(role)).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username %s: %w", username, ErrDuplicateCode)
		}
		return nil, fmt.Errorf("failed to create user %s: %w", username, err)
	}
	return s.GetUserByID(ctx, id)
}

func (s *userService) GetStore(ctx context.Context, storeID int) (*Store, error) {
	st := &Store{}
	err := s.pool.QueryRow(ctx,
		"SELECT id, code, name, created_at FROM stores WHERE id = $1", storeID,
	).Scan(&st.ID, &st.Code, &st.Name, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("store %d: %w", storeID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch store %d: %w", storeID, err)
	}
	return st, nil
}

func (s *userService) GetStoreByCode(ctx context.Context, code string) (*Store, error) {
	st := &Store{}
	err := s.pool.QueryRow(ctx,
		"SELECT id, code, name, created_at FROM stores WHERE code = $1", code,
	).Scan(&st.ID, &st.Code, &st.Name, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("store %s: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch store %s: %w", code, err)
	}
	return st, nil
}
