package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/TrustFinAI/vfin-platform/pkg/auth"
	"github.com/TrustFinAI/vfin-platform/pkg/httputil"
	"github.com/TrustFinAI/vfin-platform/pkg/middleware"
	"github.com/TrustFinAI/vfin-platform/pkg/payments"
	"github.com/TrustFinAI/vfin-platform/pkg/tenant"
)

// AuthHandlers serves registration, login and profile endpoints
type AuthHandlers struct {
	tenants  tenant.Service
	provider payments.Provider
	issuer   *auth.TokenIssuer
	logger   *logrus.Logger
}

func NewAuthHandlers(tenants tenant.Service, provider payments.Provider, issuer *auth.TokenIssuer, logger *logrus.Logger) *AuthHandlers {
	return &AuthHandlers{
		tenants:  tenants,
		provider: provider,
		issuer:   issuer,
		logger:   logger,
	}
}

// RegisterRoutes registers public auth routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/register", h.Register).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", h.Login).Methods(http.MethodPost)
}

// RegisterProtectedRoutes registers routes that require a session token
func (h *AuthHandlers) RegisterProtectedRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/me", h.Me).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/profile", h.UpdateProfile).Methods(http.MethodPut)
}

// Register creates a tenant. The billing customer is created first so every
// tenant row carries a customer reference from birth.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") ||
		!httputil.RequireNonEmpty(w, req.Password, "password") ||
		!httputil.RequireNonEmpty(w, req.CompanyName, "companyName") {
		return
	}

	customerRef, err := h.provider.CreateCustomer(r.Context(), req.Email, req.CompanyName)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create billing customer")
		httputil.WriteErrorMessage(w, http.StatusBadGateway, "payment provider unavailable")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hash password")
		httputil.WriteInternalErrorMessage(w, "registration failed")
		return
	}

	created, err := h.tenants.Create(r.Context(), req.Email, req.CompanyName, hash, customerRef)
	if err != nil {
		// The provider customer is now orphaned; keep its reference in the
		// log for manual cleanup.
		h.logger.WithError(err).WithField("customer_ref", customerRef).
			Warn("Tenant insert failed after customer creation")
		if errors.Is(err, tenant.ErrEmailTaken) {
			httputil.WriteConflict(w, "email already registered")
			return
		}
		httputil.WriteInternalErrorMessage(w, "registration failed")
		return
	}

	token, _, err := h.issuer.Issue(created.ID, created.Email)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue session token")
		httputil.WriteInternalErrorMessage(w, "registration failed")
		return
	}

	httputil.WriteCreated(w, AuthResponse{Token: token, User: toUserResponse(created)})
}

// Login authenticates credentials and issues a session token. Unknown email
// and wrong password are indistinguishable to the caller.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") ||
		!httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	t, err := h.tenants.GetByEmail(r.Context(), req.Email)
	if errors.Is(err, tenant.ErrNotFound) {
		httputil.WriteUnauthorized(w, "invalid credentials")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to look up tenant")
		httputil.WriteInternalErrorMessage(w, "login failed")
		return
	}

	if !auth.CheckPassword(t.PasswordHash, req.Password) {
		httputil.WriteUnauthorized(w, "invalid credentials")
		return
	}

	token, _, err := h.issuer.Issue(t.ID, t.Email)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue session token")
		httputil.WriteInternalErrorMessage(w, "login failed")
		return
	}

	httputil.WriteSuccess(w, AuthResponse{Token: token, User: toUserResponse(t)})
}

// Me returns the authenticated tenant's current state, including the billing
// tier the reconciler last wrote.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	tc := middleware.TenantFromRequest(r)
	if tc == nil {
		httputil.WriteUnauthorized(w, "not authenticated")
		return
	}

	t, err := h.tenants.GetByID(r.Context(), tc.TenantID)
	if errors.Is(err, tenant.ErrNotFound) {
		httputil.WriteNotFoundError(w, "account not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load tenant")
		httputil.WriteInternalErrorMessage(w, "failed to load account")
		return
	}

	httputil.WriteSuccess(w, toUserResponse(t))
}

// UpdateProfile writes the mutable profile fields. Billing state is owned by
// the webhook reconciler and cannot be changed here.
func (h *AuthHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	tc := middleware.TenantFromRequest(r)
	if tc == nil {
		httputil.WriteUnauthorized(w, "not authenticated")
		return
	}

	var req profileRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.CompanyName, "companyName") {
		return
	}

	updated, err := h.tenants.UpdateProfile(r.Context(), tc.TenantID, tenant.ProfileUpdate{
		CompanyName:    req.CompanyName,
		CompanyLogoURL: req.CompanyLogoURL,
		ClientProfile:  req.ClientProfile,
	})
	if errors.Is(err, tenant.ErrNotFound) {
		httputil.WriteNotFoundError(w, "account not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to update profile")
		httputil.WriteInternalErrorMessage(w, "failed to update profile")
		return
	}

	httputil.WriteSuccess(w, toUserResponse(updated))
}
