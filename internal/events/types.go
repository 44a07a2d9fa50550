// Package events provides an asynchronous in-process event bus. Services
// publish domain events (catch saved, weather updated) without knowing who
// consumes them, and a slow consumer never blocks the publisher.
package events

import (
	"time"
)

// Type identifies an event kind
type Type string

const (
	TypeCatchSaved      Type = "catch.saved"
	TypeCatchDeleted    Type = "catch.deleted"
	TypeWeatherUpdated  Type = "weather.updated"
	TypeLocationUpdated Type = "location.updated"
)

// Event is a single published occurrence. Payload carries the domain value,
// e.g. a datastore.CatchRecord or a weather.Snapshot; consumers type-assert it.
type Event struct {
	Type      Type
	Source    string
	Timestamp time.Time
	Payload   any
}

// New creates an event stamped with the current time
func New(t Type, source string, payload any) Event {
	return Event{
		Type:      t,
		Source:    source,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// Publisher is implemented by EventBus. Services accept it so they can run
// without a bus in tests and one-shot commands.
type Publisher interface {
	// TryPublish queues the event without blocking and reports whether it was accepted
	TryPublish(event Event) bool
}

// EventConsumer represents a consumer that processes events
type EventConsumer interface {
	// Name returns the consumer name for identification
	Name() string

	// Types returns the event types the consumer wants; nil means all
	Types() []Type

	// ProcessEvent processes a single event
	ProcessEvent(event Event) error
}

// EventBusStats contains runtime statistics for monitoring
type EventBusStats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}
