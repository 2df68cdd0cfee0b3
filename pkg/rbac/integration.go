package rbac

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/helpdesk-rbac/pkg/audit"
	"github.com/platinummonkey/helpdesk-rbac/pkg/observability"
)

// Options configures a Manager
type Options struct {
	// Source supplies group-role rows; nil always serves the fallback
	Source RowSource

	// Directory answers which groups a user belongs to
	Directory DirectorySource

	// GroupMembers answers which users belong to a group
	GroupMembers GroupMemberSource

	// Admins are always granted the admin role
	Admins AdminList

	// ApprovalCategories overrides the problem types that need approval
	ApprovalCategories []string

	ConfigTTL         time.Duration
	SessionTTL        time.Duration
	GroupQueryWorkers int

	// Redis, when set, shares the membership and roster slots across replicas
	Redis *redis.Client

	// Audit records admin and session actions; nil discards them
	Audit audit.Logger

	Logger  *logrus.Logger
	Metrics *observability.Metrics
}

// Manager wires the access components together
type Manager struct {
	loader      *ConfigLoader
	memberships *MembershipResolver
	directory   *GroupMemberDirectory
	service     *AccessService
	middleware  *PermissionMiddleware
	handlers    *Handlers
	log         *logrus.Logger
}

// NewManager creates a new access manager
func NewManager(opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}
	ttl := opts.ConfigTTL
	if ttl <= 0 {
		ttl = DefaultConfigTTL
	}

	var membershipSlot, rosterSlot Slot[[]string]
	if opts.Redis != nil {
		membershipSlot = NewRedisSlot[[]string](opts.Redis, "helpdesk-rbac:membership", ttl, log)
		rosterSlot = NewRedisSlot[[]string](opts.Redis, "helpdesk-rbac:group-members", ttl, log)
	} else {
		membershipSlot = NewMemorySlot[[]string](ttl)
		rosterSlot = NewMemorySlot[[]string](ttl)
	}

	policy := NewPolicy(opts.Admins)
	if len(opts.ApprovalCategories) > 0 {
		policy.ApprovalCategories = opts.ApprovalCategories
	}

	loader := NewConfigLoader(opts.Source, ttl, log, opts.Metrics)
	memberships := NewMembershipResolver(loader, opts.Directory, membershipSlot, log, opts.Metrics)
	directory := NewGroupMemberDirectory(loader, opts.GroupMembers, rosterSlot, log, opts.Metrics).
		WithWorkers(opts.GroupQueryWorkers)
	service := NewAccessService(loader, memberships, directory, policy, opts.SessionTTL, log, opts.Metrics)
	middleware := NewPermissionMiddleware(service, opts.Audit)

	return &Manager{
		loader:      loader,
		memberships: memberships,
		directory:   directory,
		service:     service,
		middleware:  middleware,
		handlers:    NewHandlers(service, middleware, opts.Audit, log),
		log:         log,
	}
}

// Initialize loads the configuration once so the first sign-in does not pay for it
func (m *Manager) Initialize(ctx context.Context) error {
	cfg := m.loader.Load(ctx)
	if cfg == nil {
		return fmt.Errorf("failed to load group-role configuration")
	}

	m.log.WithFields(logrus.Fields{
		"source":         cfg.Source,
		"allowed_groups": len(cfg.AllowedGroupIDs),
	}).Info("Access manager initialized")
	return nil
}

// RegisterRoutes mounts the decision API under /v1. authn must attach the
// caller identity. Extra middleware such as rate limiting runs after authn
// and before permissions are resolved.
func (m *Manager) RegisterRoutes(router *mux.Router, authn func(http.Handler) http.Handler, extra ...func(http.Handler) http.Handler) {
	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(authn)
	for _, mw := range extra {
		v1.Use(mw)
	}
	v1.Use(m.middleware.Handler)
	m.handlers.RegisterRoutes(v1)
}

// GetLoader returns the config loader
func (m *Manager) GetLoader() *ConfigLoader {
	return m.loader
}

// GetService returns the access service
func (m *Manager) GetService() *AccessService {
	return m.service
}

// GetMiddleware returns the permission middleware
func (m *Manager) GetMiddleware() *PermissionMiddleware {
	return m.middleware
}

// ConfigCheck reports degraded while the built-in fallback is being served
func (m *Manager) ConfigCheck() observability.CheckFunc {
	return func(ctx context.Context) observability.DependencyStatus {
		cfg := m.loader.Load(ctx)
		status := observability.DependencyStatus{
			Status:    observability.StatusHealthy,
			Timestamp: time.Now(),
			Message:   fmt.Sprintf("%d groups loaded at %s", len(cfg.AllowedGroupIDs), cfg.LoadedAt.Format(time.RFC3339)),
		}
		if cfg.Source == SourceFallback {
			status.Status = observability.StatusDegraded
			status.Message = "serving built-in fallback configuration"
		}
		return status
	}
}
