package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the schema migrations in order
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(255) UNIQUE NOT NULL,
					company_name VARCHAR(255) NOT NULL,
					password_hash VARCHAR(255) NOT NULL,
					stripe_customer_id VARCHAR(255) UNIQUE,
					subscription_tier VARCHAR(50) NOT NULL DEFAULT 'free',
					subscription_status VARCHAR(50) NOT NULL DEFAULT 'free',
					company_logo_url TEXT,
					client_profile JSONB,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_users_stripe_customer_id ON users(stripe_customer_id);
			`,
		},
		{
			Version:     2,
			Description: "Create products table",
			SQL: `
				CREATE TABLE IF NOT EXISTS products (
					id SERIAL PRIMARY KEY,
					name VARCHAR(100) NOT NULL,
					description TEXT,
					tier_name VARCHAR(50) UNIQUE NOT NULL,
					stripe_price_id VARCHAR(255) UNIQUE NOT NULL
				);
			`,
		},
		{
			Version:     3,
			Description: "Create subscriptions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS subscriptions (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					stripe_subscription_id VARCHAR(255) UNIQUE NOT NULL,
					status VARCHAR(50) NOT NULL,
					tier_name VARCHAR(50) NOT NULL REFERENCES products(tier_name),
					current_period_end TIMESTAMP WITH TIME ZONE NOT NULL,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_subscriptions_user_id ON subscriptions(user_id);
			`,
		},
	}
}

// ApplyMigrations runs all migrations inside a single transaction.
// Statements use IF NOT EXISTS so reruns are harmless.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range Migrations() {
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}
	return nil
}
