package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrustFinAI/vfin-platform/pkg/auth"
)

func TestAuthGate(t *testing.T) {
	issuer := auth.NewTokenIssuer("gate-secret", time.Hour)
	gate := NewAuthGate(issuer)

	var seen *auth.TenantContext
	handler := gate.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TenantFromRequest(r)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing header is unauthorized", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/auth/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/auth/me", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token is forbidden, never anonymous", func(t *testing.T) {
		seen = nil
		req := httptest.NewRequest("GET", "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer bogus.token.here")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Nil(t, seen)
	})

	t.Run("expired token is forbidden", func(t *testing.T) {
		expired, _, err := auth.NewTokenIssuer("gate-secret", -time.Minute).Issue(1, "x@example.com")
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+expired)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("valid token attaches tenant", func(t *testing.T) {
		token, _, err := issuer.Issue(42, "owner@acme.example.com")
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, int64(42), seen.TenantID)
		assert.Equal(t, "owner@acme.example.com", seen.Email)
	})
}

func TestTenantFromRequestWithoutGate(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	assert.Nil(t, TenantFromRequest(req))
}
