// Package tenant manages account records. Each tenant row is the durable
// cache of billing state: subscription_tier and subscription_status are
// written only by the webhook reconciler, never by profile updates.
package tenant

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound reports a lookup that matched no tenant
	ErrNotFound = errors.New("tenant: not found")

	// ErrEmailTaken reports a registration against an existing email
	ErrEmailTaken = errors.New("tenant: email already registered")
)

// Tenant is one account
type Tenant struct {
	ID                 int64
	Email              string
	CompanyName        string
	PasswordHash       string
	StripeCustomerID   string
	SubscriptionTier   string
	SubscriptionStatus string
	CompanyLogoURL     string
	ClientProfile      json.RawMessage
	CreatedAt          time.Time
}

// ProfileUpdate carries the mutable profile fields. Billing fields are
// deliberately absent.
type ProfileUpdate struct {
	CompanyName    string
	CompanyLogoURL string
	ClientProfile  json.RawMessage
}

// Service exposes tenant persistence
type Service interface {
	Create(ctx context.Context, email, companyName, passwordHash, stripeCustomerID string) (*Tenant, error)
	GetByID(ctx context.Context, id int64) (*Tenant, error)
	GetByEmail(ctx context.Context, email string) (*Tenant, error)
	GetByStripeCustomerID(ctx context.Context, customerRef string) (*Tenant, error)
	UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) (*Tenant, error)
}

// PostgresService implements Service over the users table
type PostgresService struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewPostgresService(db *sql.DB, logger *logrus.Logger) *PostgresService {
	return &PostgresService{db: db, logger: logger}
}

const tenantColumns = `id, email, company_name, password_hash,
	COALESCE(stripe_customer_id, ''), subscription_tier, subscription_status,
	COALESCE(company_logo_url, ''), client_profile, created_at`

func scanTenant(row *sql.Row) (*Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Email, &t.CompanyName, &t.PasswordHash,
		&t.StripeCustomerID, &t.SubscriptionTier, &t.SubscriptionStatus,
		&t.CompanyLogoURL, &t.ClientProfile, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}
	return &t, nil
}

// Create inserts a new tenant. Tier and status start at their free-plan
// defaults and are only advanced by the reconciler.
func (s *PostgresService) Create(ctx context.Context, email, companyName, passwordHash, stripeCustomerID string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, company_name, password_hash, stripe_customer_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+tenantColumns,
		email, companyName, passwordHash, stripeCustomerID)

	t, err := scanTenant(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id": t.ID,
		"email":     t.Email,
	}).Info("Created tenant")
	return t, nil
}

func (s *PostgresService) GetByID(ctx context.Context, id int64) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM users WHERE id = $1`, id)
	return scanTenant(row)
}

func (s *PostgresService) GetByEmail(ctx context.Context, email string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM users WHERE email = $1`, email)
	return scanTenant(row)
}

func (s *PostgresService) GetByStripeCustomerID(ctx context.Context, customerRef string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM users WHERE stripe_customer_id = $1`, customerRef)
	return scanTenant(row)
}

// UpdateProfile writes the mutable profile fields and returns the fresh row.
// subscription_tier and subscription_status are never touched here.
func (s *PostgresService) UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET company_name = $2,
		    company_logo_url = NULLIF($3, ''),
		    client_profile = $4
		WHERE id = $1
		RETURNING `+tenantColumns,
		id, update.CompanyName, update.CompanyLogoURL, update.ClientProfile)
	return scanTenant(row)
}
