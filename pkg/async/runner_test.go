package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Success(t *testing.T) {
	log, hook := test.NewNullLogger()
	runner := NewRunner(log)
	executed := atomic.Bool{}

	runner.Go(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})

	require.NoError(t, runner.Wait(context.Background()))
	assert.True(t, executed.Load())
	assert.Empty(t, hook.AllEntries())
}

func TestRunner_ErrorIsLogged(t *testing.T) {
	log, hook := test.NewNullLogger()
	runner := NewRunner(log)

	runner.Go(context.Background(), time.Second, "reload", func(ctx context.Context) error {
		return errors.New("list not found")
	})
	require.NoError(t, runner.Wait(context.Background()))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "reload", entry.Data["task"])
}

func TestRunner_Timeout(t *testing.T) {
	log, hook := test.NewNullLogger()
	runner := NewRunner(log)

	runner.Go(context.Background(), 20*time.Millisecond, "slow", func(ctx context.Context) error {
		select {
		case <-time.After(5 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	require.NoError(t, runner.Wait(context.Background()))

	err, _ := hook.LastEntry().Data[logrus.ErrorKey].(error)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunner_PanicRecovery(t *testing.T) {
	log, hook := test.NewNullLogger()
	runner := NewRunner(log)

	runner.Go(context.Background(), time.Second, "boom", func(ctx context.Context) error {
		panic("test panic")
	})
	require.NoError(t, runner.Wait(context.Background()))

	err, _ := hook.LastEntry().Data[logrus.ErrorKey].(error)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test panic")
}

func TestRunner_WaitHonorsContext(t *testing.T) {
	runner := NewRunner(nil)
	release := make(chan struct{})
	defer close(release)

	runner.Go(context.Background(), time.Minute, "blocked", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, runner.Wait(ctx))
}
