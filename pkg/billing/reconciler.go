// Package billing reconciles payment provider webhook events into local
// subscription state. Every event is applied in a single transaction so the
// subscriptions table and the tenant's cached tier can never diverge.
package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TrustFinAI/vfin-platform/pkg/observability"
	"github.com/TrustFinAI/vfin-platform/pkg/payments"
	"github.com/TrustFinAI/vfin-platform/pkg/storage"
)

// Reconciler applies verified webhook events to the database
type Reconciler struct {
	db       *sql.DB
	provider payments.Provider
	logger   *logrus.Logger
	metrics  *observability.Metrics
	events   *storage.EventCache
}

func NewReconciler(db *sql.DB, provider payments.Provider, events *storage.EventCache, logger *logrus.Logger, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{
		db:       db,
		provider: provider,
		logger:   logger,
		metrics:  metrics,
		events:   events,
	}
}

// HandleEvent applies one verified event. Events of unknown kind are
// acknowledged without action. Replays are harmless: the cache short-circuits
// recent ones, and the writes themselves are idempotent upserts.
func (r *Reconciler) HandleEvent(ctx context.Context, event *payments.Event) error {
	log := r.logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	if event.Kind == payments.EventIgnored {
		log.Debug("Ignoring webhook event type")
		r.observe(event, "ignored", time.Time{})
		return nil
	}

	if r.events != nil {
		seen, err := r.events.Seen(ctx, event.ID)
		if err != nil {
			log.WithError(err).Warn("Event cache unavailable, processing anyway")
		} else if seen {
			log.Info("Skipping already committed webhook event")
			r.observe(event, "duplicate", time.Time{})
			return nil
		}
	}

	start := time.Now()
	err := r.apply(ctx, event)
	if err != nil {
		log.WithError(err).Error("Failed to reconcile webhook event")
		r.observe(event, "error", start)
		return err
	}

	// Mark only after commit. A mark set before the transaction would let a
	// concurrent redelivery be acknowledged for work that may never land.
	if r.events != nil {
		if merr := r.events.MarkProcessed(ctx, event.ID); merr != nil {
			log.WithError(merr).Warn("Failed to record event in dedup cache")
		}
	}

	log.Info("Reconciled webhook event")
	r.observe(event, "ok", start)
	return nil
}

func (r *Reconciler) observe(event *payments.Event, result string, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.WebhookEventsTotal.WithLabelValues(event.Type, result).Inc()
	if !start.IsZero() {
		r.metrics.ReconcileDuration.WithLabelValues(string(event.Kind)).Observe(time.Since(start).Seconds())
	}
}

func (r *Reconciler) apply(ctx context.Context, event *payments.Event) error {
	switch event.Kind {
	case payments.EventCheckoutCompleted:
		// Checkout events carry only references, so fetch the full
		// subscription before touching the database.
		snapshot, err := r.provider.RetrieveSubscription(ctx, event.SubscriptionID)
		if err != nil {
			return err
		}
		if snapshot.CustomerRef == "" {
			snapshot.CustomerRef = event.CustomerRef
		}
		return r.upsertSubscription(ctx, snapshot)

	case payments.EventSubscriptionUpdated:
		return r.upsertSubscription(ctx, event.Snapshot)

	case payments.EventSubscriptionDeleted:
		return r.cancelSubscription(ctx, event.Snapshot)

	default:
		return fmt.Errorf("billing: unhandled event kind %q", event.Kind)
	}
}

// upsertSubscription records the subscription and refreshes the tenant's
// cached tier, all inside one transaction.
func (r *Reconciler) upsertSubscription(ctx context.Context, snap *payments.SubscriptionSnapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tenantID, err := lookupTenant(ctx, tx, snap.CustomerRef)
	if err != nil {
		return err
	}

	var tierName string
	err = tx.QueryRowContext(ctx,
		`SELECT tier_name FROM products WHERE stripe_price_id = $1`,
		snap.PriceRef).Scan(&tierName)
	if errors.Is(err, sql.ErrNoRows) {
		return &UnknownPriceTierError{PriceRef: snap.PriceRef}
	}
	if err != nil {
		return fmt.Errorf("failed to resolve price %s: %w", snap.PriceRef, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, stripe_subscription_id, status, tier_name, current_period_end)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (stripe_subscription_id) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    status = EXCLUDED.status,
		    tier_name = EXCLUDED.tier_name,
		    current_period_end = EXCLUDED.current_period_end
	`, tenantID, snap.ID, snap.Status, tierName, snap.CurrentPeriodEnd)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription %s: %w", snap.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET subscription_tier = $2, subscription_status = $3 WHERE id = $1
	`, tenantID, tierName, snap.Status)
	if err != nil {
		return fmt.Errorf("failed to update tenant %d billing state: %w", tenantID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reconciliation: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"tenant_id":       tenantID,
		"subscription_id": snap.ID,
		"tier":            tierName,
		"status":          snap.Status,
	}).Info("Applied subscription state")
	return nil
}

// cancelSubscription marks the subscription canceled and drops the tenant
// back to the free plan.
func (r *Reconciler) cancelSubscription(ctx context.Context, snap *payments.SubscriptionSnapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tenantID, err := lookupTenant(ctx, tx, snap.CustomerRef)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE subscriptions SET status = 'canceled' WHERE stripe_subscription_id = $1
	`, snap.ID)
	if err != nil {
		return fmt.Errorf("failed to cancel subscription %s: %w", snap.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET subscription_tier = 'free', subscription_status = 'canceled' WHERE id = $1
	`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to downgrade tenant %d: %w", tenantID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cancellation: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"tenant_id":       tenantID,
		"subscription_id": snap.ID,
	}).Info("Canceled subscription, tenant moved to free plan")
	return nil
}

func lookupTenant(ctx context.Context, tx *sql.Tx, customerRef string) (int64, error) {
	var tenantID int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE stripe_customer_id = $1`,
		customerRef).Scan(&tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &UnknownCustomerError{CustomerRef: customerRef}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up customer %s: %w", customerRef, err)
	}
	return tenantID, nil
}
