// Package middleware provides the bearer-token auth gate for tenant-scoped
// endpoints.
package middleware

import (
	"net/http"
	"strings"

	"github.com/TrustFinAI/vfin-platform/pkg/auth"
	"github.com/TrustFinAI/vfin-platform/pkg/contextkeys"
	"github.com/TrustFinAI/vfin-platform/pkg/httputil"
)

// AuthGate verifies session tokens and attaches the tenant to the request
// context. A missing or malformed header is Unauthorized; a token that fails
// verification is Forbidden. An invalid token is never treated as anonymous.
type AuthGate struct {
	issuer *auth.TokenIssuer
}

// NewAuthGate creates a new auth gate
func NewAuthGate(issuer *auth.TokenIssuer) *AuthGate {
	return &AuthGate{issuer: issuer}
}

// Handler wraps an HTTP handler with authentication
func (g *AuthGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		tenantCtx, err := g.issuer.Verify(parts[1])
		if err != nil {
			httputil.WriteForbidden(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithTenant(r.Context(), tenantCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TenantFromRequest extracts the authenticated tenant from the request
// context, or nil when the request did not pass through the gate.
func TenantFromRequest(r *http.Request) *auth.TenantContext {
	v := r.Context().Value(contextkeys.TenantKey)
	if v == nil {
		return nil
	}
	tc, ok := v.(*auth.TenantContext)
	if !ok {
		return nil
	}
	return tc
}
