// Package async runs background tasks with panic recovery, per-task
// timeouts, and a drain on shutdown.
//
//	runner := async.NewRunner(logger)
//	runner.Go(ctx, 30*time.Second, "roles file reload", func(ctx context.Context) error {
//		return reload(ctx)
//	})
//	...
//	_ = runner.Wait(shutdownCtx)
package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Runner tracks background tasks so shutdown can wait for them
type Runner struct {
	log *logrus.Logger
	wg  sync.WaitGroup
}

// NewRunner creates a task runner
func NewRunner(log *logrus.Logger) *Runner {
	if log == nil {
		log = logrus.New()
	}
	return &Runner{log: log}
}

// Go runs fn in a goroutine with its own timeout. Errors and panics are
// logged and never propagate.
func (r *Runner) Go(parent context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		if err := r.run(ctx, fn); err != nil {
			r.log.WithError(err).WithField("task", taskName).Error("Background task failed")
		}
	}()
}

func (r *Runner) run(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
		}
	}()
	return fn(ctx)
}

// Wait blocks until every task started with Go has returned, or ctx ends
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background tasks still running: %w", ctx.Err())
	}
}
