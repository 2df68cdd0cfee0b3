package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/helpdesk-rbac/pkg/contextkeys"
)

func TestNewEvent_FromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/config/invalidate", nil)
	req.RemoteAddr = "10.0.0.9:4431"
	ctx := contextkeys.WithUserID(req.Context(), "boss@example.com")
	ctx = contextkeys.WithRequestID(ctx, "req-1")

	event := NewEvent(ctx, req, EventTypeConfigInvalidate, EventStatusSuccess)

	assert.Equal(t, "boss@example.com", event.Actor)
	assert.Equal(t, "req-1", event.RequestID)
	assert.Equal(t, "10.0.0.9", event.IPAddress)
	assert.Equal(t, http.MethodPost, event.Method)
	assert.Equal(t, "/v1/admin/config/invalidate", event.Path)
	assert.False(t, event.Timestamp.IsZero())
}

func TestNewEvent_Background(t *testing.T) {
	event := NewEvent(context.Background(), nil, EventTypeConfigReload, EventStatusSuccess)

	assert.Equal(t, SystemActor, event.Actor)
	assert.Empty(t, event.Path)
}

func TestNewEvent_ForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	event := NewEvent(req.Context(), req, EventTypeAdminDenied, EventStatusDenied)
	assert.Equal(t, "203.0.113.5", event.IPAddress)
}

func TestLogrusLogger(t *testing.T) {
	log, hook := test.NewNullLogger()
	logger := NewLogrusLogger(log)

	event := NewEvent(context.Background(), nil, EventTypeSessionForget, EventStatusSuccess)
	event.ResourceType = ResourceTypeSession
	event.Message = "Session snapshot dropped"
	event.Metadata = map[string]interface{}{"source": "remote"}
	require.NoError(t, logger.Log(context.Background(), event))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, true, entry.Data["audit"])
	assert.Equal(t, EventTypeSessionForget, entry.Data["event_type"])
	assert.Equal(t, "remote", entry.Data["source"])
	assert.Equal(t, "Session snapshot dropped", entry.Message)

	denied := NewEvent(context.Background(), nil, EventTypeAdminDenied, EventStatusDenied)
	require.NoError(t, logger.Log(context.Background(), denied))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	assert.NoError(t, logger.Close())
}

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestFileLogger_AppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLogger(FileLoggerConfig{BasePath: dir})
	require.NoError(t, err)

	ctx := context.Background()
	for _, eventType := range []EventType{EventTypeConfigReload, EventTypeConfigInvalidate} {
		require.NoError(t, logger.Log(ctx, NewEvent(ctx, nil, eventType, EventStatusSuccess)))
	}
	require.NoError(t, logger.Close())

	events := readEvents(t, filepath.Join(dir, "audit.log"))
	require.Len(t, events, 2)
	assert.Equal(t, EventTypeConfigReload, events[0].EventType)
	assert.Equal(t, EventTypeConfigInvalidate, events[1].EventType)

	assert.Error(t, logger.Log(ctx, NewEvent(ctx, nil, EventTypeConfigReload, EventStatusSuccess)), "closed logger")
	assert.NoError(t, logger.Close(), "double close")
}

func TestFileLogger_Rotation(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLogger(FileLoggerConfig{BasePath: dir, MaxSize: 1, MaxFiles: 2})
	require.NoError(t, err)
	defer logger.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, logger.Log(ctx, NewEvent(ctx, nil, EventTypeConfigReload, EventStatusSuccess)))
	}

	rotated, err := filepath.Glob(filepath.Join(dir, "audit-*.log"))
	require.NoError(t, err)
	assert.Len(t, rotated, 2)
	assert.Len(t, readEvents(t, filepath.Join(dir, "audit.log")), 1)
}

func TestNewFileLogger_BadDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := NewFileLogger(FileLoggerConfig{BasePath: filepath.Join(file, "sub")})
	assert.Error(t, err)
}

type failingLogger struct{ err error }

func (f failingLogger) Log(context.Context, *Event) error { return f.err }
func (f failingLogger) Close() error                      { return f.err }

func TestMultiLogger(t *testing.T) {
	log, hook := test.NewNullLogger()
	boom := errors.New("disk full")
	multi := NewMultiLogger(failingLogger{err: boom}, NewLogrusLogger(log))

	err := multi.Log(context.Background(), NewEvent(context.Background(), nil, EventTypeConfigReload, EventStatusSuccess))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, hook.AllEntries(), 1, "later loggers still receive the event")

	assert.ErrorIs(t, multi.Close(), boom)
	assert.NoError(t, NewMultiLogger().Log(context.Background(), &Event{}))
}

func TestOrNoop(t *testing.T) {
	assert.IsType(t, NoopLogger{}, OrNoop(nil))
	assert.NoError(t, OrNoop(nil).Log(context.Background(), &Event{}))

	log, _ := test.NewNullLogger()
	l := NewLogrusLogger(log)
	assert.Same(t, l, OrNoop(l))
}
