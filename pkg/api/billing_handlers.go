package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/TrustFinAI/vfin-platform/pkg/billing"
	"github.com/TrustFinAI/vfin-platform/pkg/catalog"
	"github.com/TrustFinAI/vfin-platform/pkg/httputil"
	"github.com/TrustFinAI/vfin-platform/pkg/middleware"
	"github.com/TrustFinAI/vfin-platform/pkg/payments"
	"github.com/TrustFinAI/vfin-platform/pkg/tenant"
)

// Webhook payloads are small; cap reads well below any legitimate size.
const maxWebhookBody = 1 << 20

// BillingHandlers serves the catalog, checkout, portal and webhook endpoints
type BillingHandlers struct {
	tenants    tenant.Service
	products   catalog.Service
	provider   payments.Provider
	reconciler *billing.Reconciler
	clientURL  string
	logger     *logrus.Logger
}

func NewBillingHandlers(tenants tenant.Service, products catalog.Service, provider payments.Provider, reconciler *billing.Reconciler, clientURL string, logger *logrus.Logger) *BillingHandlers {
	return &BillingHandlers{
		tenants:    tenants,
		products:   products,
		provider:   provider,
		reconciler: reconciler,
		clientURL:  clientURL,
		logger:     logger,
	}
}

// RegisterRoutes registers public billing routes. The webhook stays public:
// its authentication is the provider signature, not a session token.
func (h *BillingHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/products", h.ListProducts).Methods(http.MethodGet)
	router.HandleFunc("/api/payments/webhook", h.Webhook).Methods(http.MethodPost)
}

// RegisterProtectedRoutes registers routes that require a session token
func (h *BillingHandlers) RegisterProtectedRoutes(router *mux.Router) {
	router.HandleFunc("/api/billing/checkout-session", h.CreateCheckoutSession).Methods(http.MethodPost)
	router.HandleFunc("/api/billing/portal-session", h.CreatePortalSession).Methods(http.MethodPost)
}

// ListProducts returns the tier catalog
func (h *BillingHandlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list products")
		httputil.WriteInternalErrorMessage(w, "failed to load products")
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	httputil.WriteSuccess(w, products)
}

// CreateCheckoutSession starts a subscription checkout for the authenticated
// tenant and returns the provider redirect URL.
func (h *BillingHandlers) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	tc := middleware.TenantFromRequest(r)
	if tc == nil {
		httputil.WriteUnauthorized(w, "not authenticated")
		return
	}

	var req checkoutRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.PriceRef, "priceRef") {
		return
	}

	// Reject prices outside the catalog before calling the provider.
	if _, err := h.products.TierByPriceID(r.Context(), req.PriceRef); err != nil {
		if errors.Is(err, catalog.ErrUnknownPrice) {
			httputil.WriteBadRequest(w, "unknown price")
			return
		}
		h.logger.WithError(err).Error("Failed to validate price")
		httputil.WriteInternalErrorMessage(w, "failed to start checkout")
		return
	}

	t, err := h.tenants.GetByID(r.Context(), tc.TenantID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load tenant")
		httputil.WriteInternalErrorMessage(w, "failed to start checkout")
		return
	}
	if t.StripeCustomerID == "" {
		h.logger.WithField("tenant_id", t.ID).Error("Tenant has no billing customer")
		httputil.WriteInternalErrorMessage(w, "failed to start checkout")
		return
	}

	url, err := h.provider.CreateCheckoutSession(r.Context(),
		t.StripeCustomerID, req.PriceRef,
		h.clientURL+"/dashboard?checkout=success",
		h.clientURL+"/pricing?checkout=canceled")
	if err != nil {
		h.logger.WithError(err).Error("Failed to create checkout session")
		httputil.WriteErrorMessage(w, http.StatusBadGateway, "payment provider unavailable")
		return
	}

	httputil.WriteSuccess(w, sessionURLResponse{URL: url})
}

// CreatePortalSession opens the billing self-service portal
func (h *BillingHandlers) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	tc := middleware.TenantFromRequest(r)
	if tc == nil {
		httputil.WriteUnauthorized(w, "not authenticated")
		return
	}

	t, err := h.tenants.GetByID(r.Context(), tc.TenantID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load tenant")
		httputil.WriteInternalErrorMessage(w, "failed to open billing portal")
		return
	}
	if t.StripeCustomerID == "" {
		httputil.WriteBadRequest(w, "no billing account")
		return
	}

	url, err := h.provider.CreatePortalSession(r.Context(), t.StripeCustomerID, h.clientURL+"/dashboard")
	if err != nil {
		h.logger.WithError(err).Error("Failed to create portal session")
		httputil.WriteErrorMessage(w, http.StatusBadGateway, "payment provider unavailable")
		return
	}

	httputil.WriteSuccess(w, sessionURLResponse{URL: url})
}

// Webhook verifies and applies a payment provider event. The signature is
// checked over the raw body before any parsing. A verification failure is a
// client error so the provider stops retrying; a processing failure is a
// server error so it retries.
func (h *BillingHandlers) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		httputil.WriteBadRequest(w, "unreadable body")
		return
	}

	event, err := h.provider.VerifyWebhook(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrSignatureInvalid) {
			h.logger.WithError(err).Warn("Rejected webhook with invalid signature")
			httputil.WriteBadRequest(w, "invalid signature")
			return
		}
		h.logger.WithError(err).Error("Failed to parse webhook event")
		httputil.WriteBadRequest(w, "malformed event")
		return
	}

	if err := h.reconciler.HandleEvent(r.Context(), event); err != nil {
		httputil.WriteInternalErrorMessage(w, "webhook processing failed")
		return
	}

	httputil.WriteSuccess(w, map[string]bool{"received": true})
}
