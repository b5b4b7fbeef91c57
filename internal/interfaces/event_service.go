package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventSessionFinished EventType = "search_session_finished"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService is the in-process event bus, optionally mirrored to redis
type EventService interface {
	EventPublisher

	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers and the external channel
	Publish(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
