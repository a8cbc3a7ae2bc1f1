package core

import "time"

// Store is the tenant. Every uniqueness constraint (IMEI, SKU, document
// number, open cash session) is scoped to one store.
type Store struct {
	ID        int
	Code      string
	Name      string
	CreatedAt time.Time
}

// User represents an authenticated system user scoped to a store.
type User struct {
	ID           int
	StoreID      int
	Username     string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
}

// Actor is the acting user's identity as supplied by the auth layer.
// The core checks only the role; authentication itself happens upstream.
type Actor struct {
	UserID  int
	StoreID int
	Role    Role
}

// IsOwner reports whether the actor may perform owner-gated operations
// (document cancel, return approval).
func (a Actor) IsOwner() bool { return a.Role == RoleOwner }

// Customer is a counterparty on sale documents. The ledger uses only its
// identity; name and phone are display data.
type Customer struct {
	ID        int
	StoreID   int
	Code      string
	Name      string
	Phone     *string
	CreatedAt time.Time
}

// Supplier is a counterparty on purchase documents.
type Supplier struct {
	ID        int
	StoreID   int
	Code      string
	Name      string
	Phone     *string
	CreatedAt time.Time
}
