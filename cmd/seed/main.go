// seed is a one-shot tool that loads demo data for local development:
// one store, an owner and a cashier, a handful of products and customers.
// Passwords are bcrypt-hashed from the SEED_OWNER_PASSWORD and
// SEED_CASHIER_PASSWORD env variables (default "changeme").
//
// Usage: go run ./cmd/seed
package main

import (
	"context"
	"log"
	"os"

	"shopledger/internal/db"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	log.Println("Seeding store...")
	var storeID int
	err = tx.QueryRow(ctx, `
		INSERT INTO stores (code, name) VALUES ('MAIN', 'Main Street Shop')
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`).Scan(&storeID)
	if err != nil {
		log.Fatalf("Failed to seed store: %v", err)
	}

	log.Println("Seeding users...")
	for _, u := range []struct {
		username, role, envVar string
	}{
		{"owner", "owner", "SEED_OWNER_PASSWORD"},
		{"cashier", "cashier", "SEED_CASHIER_PASSWORD"},
	} {
		password := os.Getenv(u.envVar)
		if password == "" {
			password = "changeme"
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO users (store_id, username, password_hash, role)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash
		`, storeID, u.username, string(hash), u.role)
		if err != nil {
			log.Fatalf("Failed to seed user %s: %v", u.username, err)
		}
	}

	log.Println("Seeding counterparties and stock...")
	_, err = tx.Exec(ctx, `
		INSERT INTO customers (store_id, code, name, phone) VALUES
		($1, 'C001', 'Ayşe Yılmaz', '+90-5550000001'),
		($1, 'C002', 'Mehmet Demir', '+90-5550000002')
		ON CONFLICT (store_id, code) DO NOTHING;

		INSERT INTO suppliers (store_id, code, name, phone) VALUES
		($1, 'S001', 'Anadolu Wholesale', '+90-5550000010')
		ON CONFLICT (store_id, code) DO NOTHING;

		INSERT INTO accessories (store_id, sku, name, quantity, min_qty, buy_price, sell_price) VALUES
		($1, 'CASE-01', 'Clear Case',    25, 5, 150.00,  400.00),
		($1, 'CHG-01',  'USB-C Charger', 12, 4, 250.00,  600.00),
		($1, 'GLS-01',  'Tempered Glass', 40, 10, 50.00, 200.00)
		ON CONFLICT (store_id, sku) DO NOTHING;

		INSERT INTO phones (store_id, imei, model, buy_price, sell_price, status) VALUES
		($1, '356938035643809', 'Galaxy S25',  28000.00, 34000.00, 'available'),
		($1, '490154203237518', 'iPhone 16',   42000.00, 52000.00, 'available'),
		($1, '356938035999999', 'Redmi Note 14', 9000.00, 12500.00, 'available')
		ON CONFLICT (store_id, imei) DO NOTHING;
	`, storeID)
	if err != nil {
		log.Fatalf("Failed to seed demo data: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit seed: %v", err)
	}
	log.Println("Seed complete.")
}
