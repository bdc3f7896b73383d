package database

import (
	"database/sql"
	"fmt"
	"log"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		phone_number TEXT NOT NULL,
		role TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS patients (
		id UUID PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		phone_number TEXT NOT NULL UNIQUE,
		country CHAR(2) NOT NULL,
		city TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS providers (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL,
		address TEXT,
		city TEXT,
		postal_code TEXT,
		business_type TEXT,
		business_registration_no TEXT,
		logo_link TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS provider_services (
		id UUID PRIMARY KEY,
		provider_id UUID NOT NULL REFERENCES providers(id),
		name TEXT NOT NULL,
		description TEXT,
		price NUMERIC(20, 2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS packages (
		id UUID PRIMARY KEY,
		provider_id UUID NOT NULL REFERENCES providers(id),
		name TEXT NOT NULL,
		description TEXT,
		price NUMERIC(20, 2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS package_services (
		package_id UUID NOT NULL REFERENCES packages(id),
		service_id UUID NOT NULL REFERENCES provider_services(id),
		PRIMARY KEY (package_id, service_id)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		sender_amount NUMERIC(20, 2) NOT NULL,
		sender_currency TEXT NOT NULL,
		amount NUMERIC(20, 2) NOT NULL,
		conversion_rate NUMERIC(20, 8) NOT NULL DEFAULT 1,
		currency TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		owner_type TEXT NOT NULL,
		provider_id UUID,
		status TEXT NOT NULL,
		stripe_payment_id TEXT NOT NULL,
		voucher JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS vouchers (
		id UUID PRIMARY KEY,
		vid BIGINT NOT NULL,
		voucher_hash TEXT NOT NULL,
		shorten_hash CHAR(8) NOT NULL,
		value NUMERIC(20, 2) NOT NULL,
		sender_id TEXT NOT NULL,
		sender_type TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		receiver_type TEXT NOT NULL,
		status TEXT NOT NULL,
		transaction_id UUID NOT NULL REFERENCES transactions(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vouchers_shorten_hash ON vouchers (shorten_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_provider ON transactions (provider_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_sender ON transactions (sender_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_stripe_payment ON transactions (stripe_payment_id)`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	log.Println("Database schema up to date")
	return nil
}
