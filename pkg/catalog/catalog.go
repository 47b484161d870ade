// Package catalog serves the product tier catalog backing plan selection and
// webhook price resolution.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrUnknownPrice reports a price reference with no catalog row
var ErrUnknownPrice = errors.New("catalog: unknown price reference")

// Product is one purchasable tier
type Product struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	TierName      string `json:"tierName"`
	StripePriceID string `json:"priceRef"`
}

// Service exposes catalog reads
type Service interface {
	List(ctx context.Context) ([]Product, error)
	TierByPriceID(ctx context.Context, priceRef string) (string, error)
}

// PostgresService implements Service over the products table
type PostgresService struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewPostgresService(db *sql.DB, logger *logrus.Logger) *PostgresService {
	return &PostgresService{db: db, logger: logger}
}

// List returns all tiers in catalog order
func (s *PostgresService) List(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(description, ''), tier_name, stripe_price_id
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.TierName, &p.StripePriceID); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	return products, nil
}

// TierByPriceID resolves a provider price reference to its tier name
func (s *PostgresService) TierByPriceID(ctx context.Context, priceRef string) (string, error) {
	var tier string
	err := s.db.QueryRowContext(ctx, `
		SELECT tier_name FROM products WHERE stripe_price_id = $1
	`, priceRef).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrUnknownPrice, priceRef)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve price %s: %w", priceRef, err)
	}
	return tier, nil
}
