package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/helpdesk-rbac/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases the destination
	Close() error
}

// NewEvent builds an event stamped with the request's actor, id and origin.
// r may be nil for background events.
func NewEvent(ctx context.Context, r *http.Request, eventType EventType, status EventStatus) *Event {
	event := &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		Actor:     contextkeys.GetUserID(ctx),
		RequestID: contextkeys.GetRequestID(ctx),
	}
	if event.Actor == "" {
		event.Actor = SystemActor
	}

	if r != nil {
		event.IPAddress = clientIP(r)
		event.Method = r.Method
		event.Path = r.URL.Path
	}
	return event
}

// NoopLogger discards every event
type NoopLogger struct{}

// Log implements Logger
func (NoopLogger) Log(context.Context, *Event) error { return nil }

// Close implements Logger
func (NoopLogger) Close() error { return nil }

// OrNoop returns l, or a NoopLogger when l is nil
func OrNoop(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
