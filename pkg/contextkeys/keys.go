// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// TenantKey contains *auth.TenantContext
	// Set by: middleware.AuthGate (pkg/middleware/auth.go)
	// Required by: All tenant-scoped API endpoints
	TenantKey Key = "tenant_context"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, request tracing
	RequestIDKey Key = "request_id"
)

// WithTenant adds the authenticated tenant context to the context
func WithTenant(ctx context.Context, tenantCtx interface{}) context.Context {
	return context.WithValue(ctx, TenantKey, tenantCtx)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID retrieves the request ID from the context, or "" if absent
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
