package rbac

import (
	"context"
	"net/http"

	"github.com/platinummonkey/helpdesk-rbac/pkg/audit"
	"github.com/platinummonkey/helpdesk-rbac/pkg/auth"
	"github.com/platinummonkey/helpdesk-rbac/pkg/contextkeys"
	"github.com/platinummonkey/helpdesk-rbac/pkg/httputil"
)

// PermissionMiddleware attaches the caller's permission snapshot to each request
type PermissionMiddleware struct {
	service *AccessService
	audit   audit.Logger
}

// NewPermissionMiddleware creates a new permission middleware. Denied admin
// requests are recorded on auditLog, which may be nil.
func NewPermissionMiddleware(service *AccessService, auditLog audit.Logger) *PermissionMiddleware {
	return &PermissionMiddleware{service: service, audit: audit.OrNoop(auditLog)}
}

// Handler resolves permissions for the authenticated identity. It must run
// after the authentication middleware.
func (pm *PermissionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := auth.IdentityFromContext(r.Context())
		if identity == nil || identity.Email == "" {
			httputil.WriteUnauthorized(w, "Authentication required")
			return
		}

		perms := pm.service.PermissionsFor(r.Context(), identity.Email, identity.DisplayName)
		ctx := contextkeys.WithPermissions(r.Context(), perms)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin allows only callers with the admin role
func (pm *PermissionMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		perms := GetPermissions(r.Context())
		if perms == nil {
			httputil.WriteUnauthorized(w, "Authentication required")
			return
		}
		if perms.Role != RoleAdmin {
			event := audit.NewEvent(r.Context(), r, audit.EventTypeAdminDenied, audit.EventStatusDenied)
			event.ResourceType = audit.ResourceTypeRoute
			event.ResourceID = r.URL.Path
			event.Message = "Admin route requested by " + string(perms.Role)
			_ = pm.audit.Log(r.Context(), event)

			httputil.WriteForbidden(w, "Administrator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetPermissions returns the snapshot stored by PermissionMiddleware, or nil
func GetPermissions(ctx context.Context) *UserPermissions {
	perms, _ := ctx.Value(contextkeys.PermissionsKey).(*UserPermissions)
	return perms
}
