package audit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogrusLogger writes audit events through the service logger, tagged with
// audit=true so they can be routed separately
type LogrusLogger struct {
	log *logrus.Logger
}

// NewLogrusLogger creates an audit logger backed by logrus
func NewLogrusLogger(log *logrus.Logger) *LogrusLogger {
	if log == nil {
		log = logrus.New()
	}
	return &LogrusLogger{log: log}
}

// Log records the event at info level, or warn when it was denied or failed
func (l *LogrusLogger) Log(_ context.Context, event *Event) error {
	entry := l.log.WithFields(logrus.Fields{
		"audit":      true,
		"event_type": event.EventType,
		"status":     event.Status,
		"actor":      event.Actor,
	})
	if event.ResourceType != "" {
		entry = entry.WithField("resource_type", event.ResourceType)
	}
	if event.ResourceID != "" {
		entry = entry.WithField("resource_id", event.ResourceID)
	}
	if event.RequestID != "" {
		entry = entry.WithField("request_id", event.RequestID)
	}
	if event.Path != "" {
		entry = entry.WithFields(logrus.Fields{"method": event.Method, "path": event.Path})
	}
	for k, v := range event.Metadata {
		entry = entry.WithField(k, v)
	}

	if event.Status == EventStatusSuccess {
		entry.Info(event.Message)
	} else {
		entry.Warn(event.Message)
	}
	return nil
}

// Close implements Logger
func (l *LogrusLogger) Close() error {
	return nil
}
