// Package audit records administrative and session actions on the access
// service: forced configuration reloads, sign-out snapshot drops, and callers
// turned away from admin routes.
//
// Destinations:
//
//	LogrusLogger  service log, fields tagged audit=true
//	FileLogger    JSON lines under a directory, rotated by size
//	MultiLogger   fan-out to several of the above
//
// Usage:
//
//	event := audit.NewEvent(ctx, r, audit.EventTypeConfigInvalidate, audit.EventStatusSuccess)
//	event.ResourceType = audit.ResourceTypeConfig
//	_ = logger.Log(ctx, event)
//
// NewEvent takes the actor from the caller email set by authentication and
// falls back to SystemActor for background work such as file reloads.
package audit
