// Package appcontext provides utility functions for working with context in the application.

package appcontext

import "context"

type contextKey string

// String returns the string representation of the context key.
func (c contextKey) String() string {
	return string(c)
}

var (
	// ContextTenantID carries the tenant of the authenticated session.
	ContextTenantID = contextKey("tenantID")
	// ContextUserID carries the authenticated user.
	ContextUserID = contextKey("userID")
	// ContextIsAdmin is true for platform operators; admin sessions may
	// act across tenants in internal tooling only.
	ContextIsAdmin = contextKey("isAdmin")
)

// WithSession returns a new context carrying the tenant and user of the
// authenticated session.
func WithSession(ctx context.Context, tenantID, userID string) context.Context {
	ctx = context.WithValue(ctx, ContextTenantID, tenantID)
	return context.WithValue(ctx, ContextUserID, userID)
}

// WithAdmin marks the session as a platform operator.
func WithAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, ContextIsAdmin, true)
}

// Session retrieves the tenant and user ids from the context.
func Session(ctx context.Context) (tenantID, userID string) {
	tenantID, _ = ctx.Value(ContextTenantID).(string)
	userID, _ = ctx.Value(ContextUserID).(string)
	return tenantID, userID
}

// TenantID retrieves only the session tenant.
func TenantID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextTenantID).(string)
	return v, ok
}

// IsAdmin reports whether the session belongs to a platform operator.
func IsAdmin(ctx context.Context) bool {
	v, _ := ctx.Value(ContextIsAdmin).(bool)
	return v
}
