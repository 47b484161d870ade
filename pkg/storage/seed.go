package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// SeedProduct is a tier catalog entry inserted at startup
type SeedProduct struct {
	Name          string
	TierName      string
	Description   string
	StripePriceID string
}

// DefaultProducts returns the tier catalog shipped with the platform
func DefaultProducts() []SeedProduct {
	return []SeedProduct{
		{Name: "vCPA Starter", TierName: "starter", Description: "Core financial analysis and dashboard.", StripePriceID: "price_1PgQWzRvyMLtsA1yq4F8dJzQ"},
		{Name: "vCPA Growth", TierName: "growth", Description: "Trend analysis and goal setting.", StripePriceID: "price_1PgQXxRvyMLtsA1yLzP2PjN6"},
		{Name: "vCFO", TierName: "vcfo", Description: "Forecasting and scenario modeling.", StripePriceID: "price_1PgQYjRvyMLtsA1yn5a3nUf8"},
		{Name: "VWA (Virtual Wealth Advisor)", TierName: "vwa", Description: "Connect business performance to personal financial freedom.", StripePriceID: "price_1PgQZKRvyMLtsA1yN3B65jSJ"},
	}
}

// SeedCatalog inserts the tier catalog idempotently. Existing rows are never
// overwritten, so operators can adjust price references without a reseed
// reverting them.
func SeedCatalog(ctx context.Context, db *sql.DB, products []SeedProduct) error {
	for _, p := range products {
		_, err := db.ExecContext(ctx, `
			INSERT INTO products (name, tier_name, description, stripe_price_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (tier_name) DO NOTHING
		`, p.Name, p.TierName, p.Description, p.StripePriceID)
		if err != nil {
			return fmt.Errorf("failed to seed product %q: %w", p.TierName, err)
		}
	}
	return nil
}
