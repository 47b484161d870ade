// Package api wires the HTTP surface: routing, middleware and the handler
// groups for auth, profile, catalog and billing.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/TrustFinAI/vfin-platform/pkg/auth"
	"github.com/TrustFinAI/vfin-platform/pkg/billing"
	"github.com/TrustFinAI/vfin-platform/pkg/catalog"
	"github.com/TrustFinAI/vfin-platform/pkg/config"
	"github.com/TrustFinAI/vfin-platform/pkg/httputil"
	"github.com/TrustFinAI/vfin-platform/pkg/middleware"
	"github.com/TrustFinAI/vfin-platform/pkg/observability"
	"github.com/TrustFinAI/vfin-platform/pkg/payments"
	"github.com/TrustFinAI/vfin-platform/pkg/tenant"
)

// Server is the public HTTP server
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server
}

// Dependencies carries the services the server routes to
type Dependencies struct {
	Tenants    tenant.Service
	Products   catalog.Service
	Provider   payments.Provider
	Reconciler *billing.Reconciler
	Issuer     *auth.TokenIssuer
	Metrics    *observability.Metrics
}

// NewServer builds the router and binds all handler groups
func NewServer(cfg *config.Config, logger *logrus.Logger, deps Dependencies) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		router: mux.NewRouter(),
	}

	s.setupRoutes(deps)

	// CORS wraps the router itself, not a route middleware: preflight
	// OPTIONS requests never match the method-restricted routes, so they
	// must be answered before mux dispatch.
	s.handler = httputil.CORSMiddleware([]string{cfg.ClientURL})(s.router)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes(deps Dependencies) {
	s.router.Use(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(s.logger),
		httputil.LoggingMiddleware(s.logger),
		httputil.MetricsMiddleware(deps.Metrics),
	)

	authHandlers := NewAuthHandlers(deps.Tenants, deps.Provider, deps.Issuer, s.logger)
	billingHandlers := NewBillingHandlers(deps.Tenants, deps.Products, deps.Provider, deps.Reconciler, s.cfg.ClientURL, s.logger)

	authHandlers.RegisterRoutes(s.router)
	billingHandlers.RegisterRoutes(s.router)

	gate := middleware.NewAuthGate(deps.Issuer)
	protected := s.router.NewRoute().Subrouter()
	protected.Use(gate.Handler)
	authHandlers.RegisterProtectedRoutes(protected)
	billingHandlers.RegisterProtectedRoutes(protected)
}

// Router exposes the configured router, mainly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler exposes the full handler stack, CORS included
func (s *Server) Handler() http.Handler {
	return s.handler
}

// HTTPServer exposes the underlying server for shutdown management
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Start begins serving and blocks until the listener closes
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
