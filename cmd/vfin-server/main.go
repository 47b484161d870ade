// vfin-server is the dashboard backend: tenant auth, tier catalog, checkout
// and billing portal redirects, and the payment webhook reconciler.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/TrustFinAI/vfin-platform/pkg/api"
	"github.com/TrustFinAI/vfin-platform/pkg/auth"
	"github.com/TrustFinAI/vfin-platform/pkg/billing"
	"github.com/TrustFinAI/vfin-platform/pkg/catalog"
	"github.com/TrustFinAI/vfin-platform/pkg/config"
	"github.com/TrustFinAI/vfin-platform/pkg/observability"
	"github.com/TrustFinAI/vfin-platform/pkg/payments"
	"github.com/TrustFinAI/vfin-platform/pkg/storage"
	"github.com/TrustFinAI/vfin-platform/pkg/tenant"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vfin-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Configuration is fail-fast: a missing secret stops the process here,
	// before any listener opens.
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogJSON, os.Stdout)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	ctx := context.Background()

	db, err := storage.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.ApplyMigrations(ctx, db); err != nil {
		return err
	}
	if err := storage.SeedCatalog(ctx, db, storage.DefaultProducts()); err != nil {
		return err
	}
	logger.Info("Database ready")

	redisClient, err := storage.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		// The dedup cache is an optimization; reconciliation stays correct
		// without it.
		logger.WithError(err).Warn("Redis unavailable, webhook dedup cache disabled")
		redisClient = nil
	}
	eventCache := storage.NewEventCache(redisClient, cfg.Redis.DedupTTL)

	provider := payments.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, logger, metrics)
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	tenants := tenant.NewPostgresService(db, logger)
	products := catalog.NewPostgresService(db, logger)
	reconciler := billing.NewReconciler(db, provider, eventCache, logger, metrics)

	server := api.NewServer(cfg, logger, api.Dependencies{
		Tenants:    tenants,
		Products:   products,
		Provider:   provider,
		Reconciler: reconciler,
		Issuer:     issuer,
		Metrics:    metrics,
	})

	opsServer := newOpsServer(cfg, metrics, observability.NewHealthChecker(db, redisClient))

	collectDone := make(chan struct{})
	metrics.CollectDBStats(db, 15*time.Second, collectDone)

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, server.HTTPServer(), opsServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		close(collectDone)
		if redisClient != nil {
			return redisClient.Close()
		}
		return nil
	})

	errCh := make(chan error, 2)
	go func() { errCh <- server.Start() }()
	go func() {
		logger.WithField("addr", opsServer.Addr).Info("Starting ops server")
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("ops server failed: %w", err)
			return
		}
		errCh <- nil
	}()

	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- shutdown.WaitForShutdown() }()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return <-shutdownErr
	case err := <-shutdownErr:
		return err
	}
}

// newOpsServer serves health probes and the metrics scrape on a separate
// port, kept off the public listener.
func newOpsServer(cfg *config.Config, metrics *observability.Metrics, health *observability.HealthChecker) *http.Server {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", health.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/readyz", health.Readiness).Methods(http.MethodGet)
	if cfg.Observability.MetricsEnabled {
		router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.HealthPort),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
