package rbac

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/helpdesk-rbac/pkg/observability"
)

// DefaultSessionCacheSize bounds how many signed-in users keep a memoized snapshot
const DefaultSessionCacheSize = 1024

// AccessService runs the sign-in chain (config, membership, permissions)
// in order and memoizes the resulting snapshot per email.
type AccessService struct {
	loader      *ConfigLoader
	memberships *MembershipResolver
	directory   *GroupMemberDirectory
	policy      Policy
	sessions    *lru.LRU[string, *UserPermissions]
	log         *logrus.Logger
	metrics     *observability.Metrics
}

// NewAccessService wires the components. sessionTTL bounds how long a
// snapshot is reused before the chain runs again.
func NewAccessService(loader *ConfigLoader, memberships *MembershipResolver, directory *GroupMemberDirectory, policy Policy, sessionTTL time.Duration, log *logrus.Logger, metrics *observability.Metrics) *AccessService {
	if log == nil {
		log = logrus.New()
	}
	if sessionTTL <= 0 {
		sessionTTL = DefaultConfigTTL
	}

	return &AccessService{
		loader:      loader,
		memberships: memberships,
		directory:   directory,
		policy:      policy,
		sessions:    lru.NewLRU[string, *UserPermissions](DefaultSessionCacheSize, nil, sessionTTL),
		log:         log,
		metrics:     metrics,
	}
}

// Policy returns the static decision policy
func (s *AccessService) Policy() Policy {
	return s.policy
}

// PermissionsFor returns the caller's snapshot, building it on first use.
// Allow-listed administrators are answered without touching the directory.
// A snapshot built while the directory is failing is not memoized.
func (s *AccessService) PermissionsFor(ctx context.Context, email, displayName string) *UserPermissions {
	key := normalizeEmail(email)

	if perms, ok := s.sessions.Get(key); ok {
		s.metrics.RecordCacheHit("permissions")
		return perms
	}
	s.metrics.RecordCacheMiss("permissions")

	var (
		perms     *UserPermissions
		lookupErr error
	)
	if s.policy.Admins.Contains(key) {
		perms = BuildPermissions(key, displayName, nil, nil, s.policy.Admins)
	} else {
		cfg := s.loader.Load(ctx)
		var groups []string
		groups, lookupErr = s.memberships.Lookup(ctx, key)
		perms = BuildPermissions(key, displayName, groups, cfg, s.policy.Admins)
	}

	s.metrics.RecordPermissionsBuilt(string(perms.Role))
	s.log.WithFields(logrus.Fields{
		"user":   key,
		"role":   perms.Role,
		"groups": len(perms.GroupIDs),
	}).Info("Built user permissions")

	// A snapshot demoted by a directory failure is served once, not memoized
	if key != "" && lookupErr == nil {
		s.sessions.Add(key, perms)
	}
	return perms
}

// Forget drops a memoized snapshot, e.g. on sign-out or a membership change
func (s *AccessService) Forget(email string) {
	s.sessions.Remove(normalizeEmail(email))
}

// SharedRoster returns the team roster used for peer visibility, or nil
// when no sharing check applies to this user
func (s *AccessService) SharedRoster(ctx context.Context, p *UserPermissions) []string {
	if p == nil || p.Role != RoleUser || len(p.VisibilityGroupIDs) == 0 {
		return nil
	}
	return s.directory.Resolve(ctx, p.VisibilityGroupIDs)
}

// Decide evaluates every predicate for one ticket. The roster is fetched
// only when nothing cheaper already grants visibility.
func (s *AccessService) Decide(ctx context.Context, p *UserPermissions, t *Ticket) Decision {
	var roster []string
	if p != nil && t != nil && !p.CanSeeAllTickets && !IsOwn(p, t) {
		roster = s.SharedRoster(ctx, p)
	}

	d := s.policy.Decide(p, t, roster)
	s.metrics.RecordDecision("view", d.CanView)
	s.metrics.RecordDecision("edit", d.CanEdit)
	return d
}

// VisibleTickets filters a batch down to the tickets the user may view,
// resolving the team roster at most once
func (s *AccessService) VisibleTickets(ctx context.Context, p *UserPermissions, tickets []Ticket) []Ticket {
	visible := make([]Ticket, 0, len(tickets))
	if p == nil {
		return visible
	}

	var roster []string
	rosterLoaded := false
	for i := range tickets {
		t := &tickets[i]
		if !p.CanSeeAllTickets && !IsOwn(p, t) && !rosterLoaded {
			roster = s.SharedRoster(ctx, p)
			rosterLoaded = true
		}
		if s.policy.CanView(p, t, roster) {
			visible = append(visible, *t)
		}
	}
	return visible
}

// Config returns the configuration currently in effect
func (s *AccessService) Config(ctx context.Context) *Config {
	return s.loader.Load(ctx)
}

// InvalidateConfig drops the cached configuration and every memoized
// snapshot derived from it
func (s *AccessService) InvalidateConfig(ctx context.Context) {
	s.loader.Invalidate(ctx)
	s.memberships.Invalidate(ctx)
	s.directory.Invalidate(ctx)
	s.sessions.Purge()
}

// ReloadConfig invalidates every cache and loads the configuration again
func (s *AccessService) ReloadConfig(ctx context.Context) *Config {
	s.InvalidateConfig(ctx)
	return s.loader.Load(ctx)
}
