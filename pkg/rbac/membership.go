package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/helpdesk-rbac/pkg/observability"
)

// ErrNoDirectory is returned when no directory source is configured
var ErrNoDirectory = errors.New("no directory source configured")

// DirectorySource returns the raw directory group ids a user belongs to
type DirectorySource interface {
	MemberGroupIDs(ctx context.Context, email string) ([]string, error)
}

// MembershipResolver narrows a user's directory groups to the ones with
// access meaning and remembers the result for the last user resolved.
type MembershipResolver struct {
	loader    *ConfigLoader
	directory DirectorySource
	slot      Slot[[]string]
	log       *logrus.Logger
	metrics   *observability.Metrics
}

// NewMembershipResolver creates a resolver. slot may be nil for an in-memory slot.
func NewMembershipResolver(loader *ConfigLoader, directory DirectorySource, slot Slot[[]string], log *logrus.Logger, metrics *observability.Metrics) *MembershipResolver {
	if log == nil {
		log = logrus.New()
	}
	if slot == nil {
		slot = NewMemorySlot[[]string](0)
	}

	return &MembershipResolver{
		loader:    loader,
		directory: directory,
		slot:      slot,
		log:       log,
		metrics:   metrics,
	}
}

// Resolve looks up the user's groups in the directory and filters them.
// A directory failure yields no groups, which demotes the user to least
// privilege; failures are not cached.
func (m *MembershipResolver) Resolve(ctx context.Context, email string) []string {
	groups, _ := m.Lookup(ctx, email)
	return groups
}

// Lookup is Resolve that also reports a directory failure. The groups are
// empty, never nil, whenever err is set.
func (m *MembershipResolver) Lookup(ctx context.Context, email string) ([]string, error) {
	key := normalizeEmail(email)
	if key == "" {
		return []string{}, nil
	}

	if groups, ok := m.slot.Get(ctx, key); ok {
		m.metrics.RecordCacheHit("membership")
		return cloneStrings(groups), nil
	}
	m.metrics.RecordCacheMiss("membership")

	raw, err := m.lookup(ctx, key)
	if err != nil {
		m.log.WithError(err).WithField("user", key).Error("Directory membership lookup failed, treating user as unprivileged")
		m.metrics.RecordDirectoryError("member_groups")
		return []string{}, err
	}

	return m.Filter(ctx, key, raw), nil
}

func (m *MembershipResolver) lookup(ctx context.Context, email string) (groups []string, err error) {
	if m.directory == nil {
		return nil, ErrNoDirectory
	}

	ctx, span := startSpan(ctx, "rbac.directory.member_groups")
	defer func() { endSpan(span, err) }()

	return m.directory.MemberGroupIDs(ctx, email)
}

// Filter keeps only the configured groups from rawGroupIDs, in input order
// without duplicates, and caches the result under email.
func (m *MembershipResolver) Filter(ctx context.Context, email string, rawGroupIDs []string) []string {
	cfg := m.loader.Load(ctx)

	seen := make(map[string]struct{}, len(rawGroupIDs))
	filtered := make([]string, 0, len(rawGroupIDs))
	for _, id := range rawGroupIDs {
		if !cfg.AllowedGroupIDs.Has(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		filtered = append(filtered, id)
	}

	if key := normalizeEmail(email); key != "" {
		m.slot.Set(ctx, key, filtered)
	}

	m.log.WithFields(logrus.Fields{
		"user":     normalizeEmail(email),
		"raw":      len(rawGroupIDs),
		"relevant": len(filtered),
	}).Debug("Resolved group memberships")

	return cloneStrings(filtered)
}

// Invalidate forgets the cached membership
func (m *MembershipResolver) Invalidate(ctx context.Context) {
	m.slot.Invalidate(ctx)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
