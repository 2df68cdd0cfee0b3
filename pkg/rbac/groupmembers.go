package rbac

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/helpdesk-rbac/pkg/observability"
)

// DefaultGroupQueryWorkers bounds concurrent group roster queries
const DefaultGroupQueryWorkers = 8

// GroupMemberSource returns the member emails of one directory group
type GroupMemberSource interface {
	GroupMemberEmails(ctx context.Context, groupID string) ([]string, error)
}

// GroupMemberDirectory resolves visibility groups into member emails for
// team ticket sharing, remembering the last group set asked for.
type GroupMemberDirectory struct {
	loader  *ConfigLoader
	source  GroupMemberSource
	slot    Slot[[]string]
	workers int
	log     *logrus.Logger
	metrics *observability.Metrics
}

// NewGroupMemberDirectory creates a directory cache. slot may be nil for an in-memory slot.
func NewGroupMemberDirectory(loader *ConfigLoader, source GroupMemberSource, slot Slot[[]string], log *logrus.Logger, metrics *observability.Metrics) *GroupMemberDirectory {
	if log == nil {
		log = logrus.New()
	}
	if slot == nil {
		slot = NewMemorySlot[[]string](0)
	}

	return &GroupMemberDirectory{
		loader:  loader,
		source:  source,
		slot:    slot,
		workers: DefaultGroupQueryWorkers,
		log:     log,
		metrics: metrics,
	}
}

// WithWorkers bounds how many group rosters are fetched at once
func (d *GroupMemberDirectory) WithWorkers(n int) *GroupMemberDirectory {
	if n > 0 {
		d.workers = n
	}
	return d
}

// Resolve returns the lowercased, de-duplicated member emails of the given
// groups. Elevated groups are always stripped first so an admin or support
// roster can never feed peer sharing. A failing group contributes nothing
// and does not affect the others, and the incomplete result is not cached.
func (d *GroupMemberDirectory) Resolve(ctx context.Context, visibilityGroupIDs []string) []string {
	cfg := d.loader.Load(ctx)

	var groups []string
	for _, id := range uniqueSorted(visibilityGroupIDs) {
		if cfg.IsElevatedGroup(id) {
			d.log.WithField("group", id).Warn("Ignoring elevated group in visibility lookup")
			continue
		}
		groups = append(groups, id)
	}
	if len(groups) == 0 {
		return []string{}
	}

	key := strings.Join(groups, ",")
	if emails, ok := d.slot.Get(ctx, key); ok {
		d.metrics.RecordCacheHit("group_members")
		return cloneStrings(emails)
	}
	d.metrics.RecordCacheMiss("group_members")

	emails, failed := d.query(ctx, groups)
	if failed > 0 {
		// Partial rosters are served for this call only
		d.log.WithFields(logrus.Fields{
			"groups": len(groups),
			"failed": failed,
		}).Debug("Not caching incomplete group roster")
		return emails
	}
	d.slot.Set(ctx, key, emails)
	return cloneStrings(emails)
}

// query fetches every roster in parallel and merges them in group order.
// It also returns how many groups could not be read.
func (d *GroupMemberDirectory) query(ctx context.Context, groups []string) ([]string, int) {
	rosters := make([][]string, len(groups))
	var (
		mu     sync.Mutex
		failed int
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(d.workers)

	for i, id := range groups {
		i, id := i, id
		eg.Go(func() error {
			members, err := d.fetchGroup(egCtx, id)
			if err != nil {
				d.log.WithError(err).WithField("group", id).Error("Group member lookup failed")
				d.metrics.RecordDirectoryError("group_members")
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			rosters[i] = members
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	seen := map[string]struct{}{}
	emails := []string{}
	for _, roster := range rosters {
		for _, email := range roster {
			email = normalizeEmail(email)
			if email == "" {
				continue
			}
			if _, dup := seen[email]; dup {
				continue
			}
			seen[email] = struct{}{}
			emails = append(emails, email)
		}
	}
	return emails, failed
}

func (d *GroupMemberDirectory) fetchGroup(ctx context.Context, groupID string) (emails []string, err error) {
	if d.source == nil {
		return nil, ErrNoDirectory
	}

	ctx, span := startSpan(ctx, "rbac.directory.group_members", attribute.String("rbac.group.id", groupID))
	defer func() { endSpan(span, err) }()

	return d.source.GroupMemberEmails(ctx, groupID)
}

// Invalidate forgets the cached roster
func (d *GroupMemberDirectory) Invalidate(ctx context.Context) {
	d.slot.Invalidate(ctx)
}
