// Package auth issues and verifies the signed session tokens that bind a
// request to a tenant, and hashes tenant credentials.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "vfin-platform"

// Claims represents the JWT claims carried by a session token
type Claims struct {
	TenantID int64  `json:"tenant_id"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// TenantContext is the authenticated identity attached to a request
type TenantContext struct {
	TenantID int64
	Email    string
}

// TokenIssuer issues and verifies HS256-signed session tokens
type TokenIssuer struct {
	secretKey []byte
	tokenTTL  time.Duration
}

// NewTokenIssuer creates a new token issuer
func NewTokenIssuer(secretKey string, tokenTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
	}
}

// Issue creates a signed, time-limited token for the given tenant
func (ti *TokenIssuer) Issue(tenantID int64, email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ti.tokenTTL)
	claims := &Claims{
		TenantID: tenantID,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   fmt.Sprintf("%d", tenantID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify validates a token and returns the tenant context it binds
func (ti *TokenIssuer) Verify(tokenString string) (*TenantContext, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ti.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.TenantID == 0 {
		return nil, errors.New("token missing tenant id")
	}

	return &TenantContext{
		TenantID: claims.TenantID,
		Email:    claims.Email,
	}, nil
}
