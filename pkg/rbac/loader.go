package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/helpdesk-rbac/pkg/observability"
)

// DefaultConfigTTL is how long a loaded configuration is served without refetching
const DefaultConfigTTL = 5 * time.Minute

// defaultFetchTimeout bounds one source read, independent of the caller
const defaultFetchTimeout = 30 * time.Second

const configSlotKey = "rbac-config"

// ErrNoSource is returned when no group-role source is configured
var ErrNoSource = errors.New("no group-role source configured")

// RowSource supplies the raw group-role configuration rows
type RowSource interface {
	FetchGroupRoles(ctx context.Context) ([]RawGroupRole, error)
}

// ConfigLoader fetches and caches the group-role configuration. It never
// fails: when the source cannot be read it serves the built-in fallback.
type ConfigLoader struct {
	source       RowSource
	slot         *MemorySlot[*Config]
	now          func() time.Time
	group        singleflight.Group
	fetchTimeout time.Duration
	log          *logrus.Logger
	metrics      *observability.Metrics
}

// NewConfigLoader creates a loader. A nil source always yields the fallback.
func NewConfigLoader(source RowSource, ttl time.Duration, log *logrus.Logger, metrics *observability.Metrics) *ConfigLoader {
	if log == nil {
		log = logrus.New()
	}
	if ttl <= 0 {
		ttl = DefaultConfigTTL
	}

	return &ConfigLoader{
		source:       source,
		slot:         NewMemorySlot[*Config](ttl),
		now:          time.Now,
		fetchTimeout: defaultFetchTimeout,
		log:          log,
		metrics:      metrics,
	}
}

// WithClock replaces the time source, for tests
func (l *ConfigLoader) WithClock(now func() time.Time) *ConfigLoader {
	l.now = now
	l.slot.WithClock(now)
	return l
}

// Load returns the current configuration, fetching it when the cached copy
// has expired. Concurrent callers share a single fetch, which runs detached
// from any one caller's cancellation.
func (l *ConfigLoader) Load(ctx context.Context) *Config {
	if cfg, ok := l.slot.Get(ctx, configSlotKey); ok {
		l.metrics.RecordCacheHit("config")
		return cfg
	}
	l.metrics.RecordCacheMiss("config")

	v, _, _ := l.group.Do(configSlotKey, func() (interface{}, error) {
		// Another caller may have filled the slot while we waited
		if cfg, ok := l.slot.Get(ctx, configSlotKey); ok {
			return cfg, nil
		}

		fetchCtx, cancel := l.detach(ctx)
		defer cancel()

		cfg, err := l.fetch(fetchCtx)
		if err != nil {
			return l.degrade(fetchCtx, err), nil
		}
		l.slot.Set(fetchCtx, configSlotKey, cfg)
		return cfg, nil
	})

	return v.(*Config)
}

// Invalidate drops the cached configuration
func (l *ConfigLoader) Invalidate(ctx context.Context) {
	l.slot.Invalidate(ctx)
	l.log.Debug("Group-role configuration cache invalidated")
}

// Refresh re-reads the source and replaces the cached configuration on
// success. A failed refresh keeps whatever is cached; the fallback is only
// stored when nothing is.
func (l *ConfigLoader) Refresh(ctx context.Context) *Config {
	v, _, _ := l.group.Do(configSlotKey+":refresh", func() (interface{}, error) {
		fetchCtx, cancel := l.detach(ctx)
		defer cancel()

		cfg, err := l.fetch(fetchCtx)
		if err == nil {
			l.slot.Set(fetchCtx, configSlotKey, cfg)
			return cfg, nil
		}

		if current, ok := l.slot.Get(fetchCtx, configSlotKey); ok {
			l.log.WithError(err).WithField("source", current.Source).Warn("Group-role refresh failed, keeping cached configuration")
			return current, nil
		}
		return l.degrade(fetchCtx, err), nil
	})

	return v.(*Config)
}

// detach keeps the caller's values but not its cancellation, and bounds
// the fetch with the loader's own timeout
func (l *ConfigLoader) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), l.fetchTimeout)
}

// degrade returns the fallback and caches it for the TTL, unless the fetch
// was cut short by a cancellation or timeout
func (l *ConfigLoader) degrade(ctx context.Context, err error) *Config {
	cfg := FallbackConfig(l.now())
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		l.log.WithError(err).Debug("Not caching fallback after an interrupted fetch")
		return cfg
	}
	l.slot.Set(ctx, configSlotKey, cfg)
	return cfg
}

// fetch builds a Config from the source. On error the caller decides
// between the cached copy and the fallback.
func (l *ConfigLoader) fetch(ctx context.Context) (*Config, error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "rbac.config.fetch")

	roles, err := l.fetchRoles(ctx)
	if err != nil {
		span.SetAttributes(attribute.String("rbac.config.source", string(SourceFallback)))
		endSpan(span, err)
		l.log.WithError(err).Warn("Group-role configuration unavailable")
		l.metrics.RecordConfigLoad(string(SourceFallback), time.Since(start))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("rbac.config.source", string(SourceRemote)),
		attribute.Int("rbac.config.rows", len(roles)),
	)
	endSpan(span, nil)

	cfg := NewConfig(roles, SourceRemote, l.now())
	l.metrics.RecordConfigLoad(string(SourceRemote), time.Since(start))
	l.log.WithFields(logrus.Fields{
		"rows":           len(roles),
		"allowed_groups": len(cfg.AllowedGroupIDs),
	}).Info("Loaded group-role configuration")

	return cfg, nil
}

// fetchRoles reads and validates the source rows, skipping malformed ones
func (l *ConfigLoader) fetchRoles(ctx context.Context) ([]GroupRole, error) {
	if l.source == nil {
		return nil, ErrNoSource
	}

	rows, err := l.source.FetchGroupRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch group roles: %w", err)
	}

	roles := make([]GroupRole, 0, len(rows))
	for _, row := range rows {
		role, err := row.ToGroupRole()
		if err != nil {
			l.log.WithError(err).Warn("Skipping malformed group-role row")
			continue
		}
		roles = append(roles, role)
	}

	return roles, nil
}
