package rbac

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultRefreshSchedule re-reads the configuration just inside each cache window
const DefaultRefreshSchedule = "@every 4m"

// Refresher re-reads the group-role configuration on a schedule so the
// first request after expiry does not pay for the fetch
type Refresher struct {
	loader  *ConfigLoader
	cron    *cron.Cron
	timeout time.Duration
	log     *logrus.Logger
}

// NewRefresher schedules loader refreshes. An empty schedule uses the default.
func NewRefresher(loader *ConfigLoader, schedule string, log *logrus.Logger) (*Refresher, error) {
	if log == nil {
		log = logrus.New()
	}
	if schedule == "" {
		schedule = DefaultRefreshSchedule
	}

	r := &Refresher{
		loader:  loader,
		cron:    cron.New(),
		timeout: 30 * time.Second,
		log:     log,
	}

	if _, err := r.cron.AddFunc(schedule, r.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}

	return r, nil
}

// RunOnce performs a single refresh
func (r *Refresher) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	cfg := r.loader.Refresh(ctx)
	r.log.WithFields(logrus.Fields{
		"source":         cfg.Source,
		"allowed_groups": len(cfg.AllowedGroupIDs),
	}).Debug("Scheduled group-role refresh completed")
}

// Start begins the schedule
func (r *Refresher) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}
