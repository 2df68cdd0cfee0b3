package audit

import "time"

// EventType represents the category of audit event
type EventType string

const (
	// Configuration events
	EventTypeConfigInvalidate EventType = "config.invalidate"
	EventTypeConfigReload     EventType = "config.reload"

	// Session events
	EventTypeSessionForget EventType = "session.forget"

	// Authorization events
	EventTypeAdminDenied EventType = "authz.admin_denied"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being acted on
type ResourceType string

const (
	ResourceTypeConfig  ResourceType = "group_roles"
	ResourceTypeSession ResourceType = "session"
	ResourceTypeRoute   ResourceType = "route"
)

// SystemActor is recorded for events no caller triggered
const SystemActor = "system"

// Event represents a single audit log entry
type Event struct {
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor is the caller's email, or SystemActor
	Actor string `json:"actor"`

	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	RequestID string `json:"request_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
