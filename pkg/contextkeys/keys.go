// Package contextkeys provides centralized context key definitions
//
// All context keys used across the service are defined here so that
// packages agree on one key per value and never collide.
//
// USAGE PATTERN:
//
//	ctx = contextkeys.WithIdentity(ctx, identity)
//	identity, _ := ctx.Value(contextkeys.IdentityKey).(*auth.Identity)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains *auth.Identity
	// Set by: auth.Middleware after bearer token verification
	// Required by: rbac decision handlers
	// Type: *auth.Identity
	IdentityKey Key = "identity"

	// PermissionsKey contains *rbac.UserPermissions
	// Set by: rbac.PermissionMiddleware
	// Required by: rbac decision handlers
	// Type: *rbac.UserPermissions
	PermissionsKey Key = "permissions"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains the caller's email
	// Set by: auth.Middleware
	// Used by: Logger
	// Type: string
	UserIDKey Key = "user_id"
)

// WithIdentity adds the verified caller identity to the context
func WithIdentity(ctx context.Context, identity interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// WithPermissions adds the caller's permission snapshot to the context
func WithPermissions(ctx context.Context, permissions interface{}) context.Context {
	return context.WithValue(ctx, PermissionsKey, permissions)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
