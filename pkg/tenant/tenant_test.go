package tenant

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*PostgresService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewPostgresService(db, logger), mock
}

func tenantRow(id int64, email, tier, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "company_name", "password_hash", "stripe_customer_id",
		"subscription_tier", "subscription_status", "company_logo_url",
		"client_profile", "created_at",
	}).AddRow(id, email, "Acme Corp", "hash", "cus_1", tier, status, "", nil, time.Now())
}

func TestCreateTenantDefaultsToFreePlan(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("owner@acme.test", "Acme Corp", "hash", "cus_1").
		WillReturnRows(tenantRow(7, "owner@acme.test", "free", "free"))

	created, err := svc.Create(context.Background(), "owner@acme.test", "Acme Corp", "hash", "cus_1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
	assert.Equal(t, "free", created.SubscriptionTier)
	assert.Equal(t, "free", created.SubscriptionStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTenantDuplicateEmail(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("owner@acme.test", "Acme Corp", "hash", "cus_1").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := svc.Create(context.Background(), "owner@acme.test", "Acme Corp", "hash", "cus_1")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestGetByStripeCustomerID(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE stripe_customer_id`).
		WithArgs("cus_1").
		WillReturnRows(tenantRow(7, "owner@acme.test", "growth", "active"))

	got, err := svc.GetByStripeCustomerID(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "growth", got.SubscriptionTier)
}

func TestGetByEmailNotFound(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
		WithArgs("missing@acme.test").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.GetByEmail(context.Background(), "missing@acme.test")
	assert.ErrorIs(t, err, ErrNotFound)
}

// Profile updates must never write billing columns. The query shape itself is
// the contract: only company_name, company_logo_url and client_profile appear
// in the SET clause.
func TestUpdateProfileLeavesBillingColumnsAlone(t *testing.T) {
	svc, mock := newTestService(t)

	profile, err := json.Marshal(map[string]string{"industry": "retail"})
	require.NoError(t, err)

	mock.ExpectQuery(`UPDATE users\s+SET company_name = \$2,\s+company_logo_url = NULLIF\(\$3, ''\),\s+client_profile = \$4\s+WHERE id = \$1`).
		WithArgs(int64(7), "Acme Holdings", "https://cdn.test/logo.png", profile).
		WillReturnRows(tenantRow(7, "owner@acme.test", "growth", "active"))

	updated, err := svc.UpdateProfile(context.Background(), 7, ProfileUpdate{
		CompanyName:    "Acme Holdings",
		CompanyLogoURL: "https://cdn.test/logo.png",
		ClientProfile:  profile,
	})
	require.NoError(t, err)
	assert.Equal(t, "growth", updated.SubscriptionTier)
	assert.Equal(t, "active", updated.SubscriptionStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}
