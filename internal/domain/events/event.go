package events

import (
	"context"
	"time"
)

// DomainEvent is implemented by every event a bounded context raises. Concrete events
// keep their data in exported fields so they can be serialized by the event bus.
type DomainEvent interface {
	EventType() EventType
	OccurredAt() time.Time
}

// EventMetadata carries transport position information for a received event.
type EventMetadata struct {
	Partition int32
	Offset    int64
}

// EventEnvelope encapsulates all event data flowing through the system, providing
// a standardized format for event processing and distribution.
type EventEnvelope struct {
	// Type identifies the category of this event for routing and handling.
	Type EventType

	// Key enables consistent event routing, typically containing a business identifier
	// like a RunID that events can be grouped or partitioned by.
	Key string

	// Timestamp records when this event was created.
	Timestamp time.Time

	// Payload contains the actual event data. The concrete type depends on the EventType.
	Payload any

	// Metadata is only populated for events read from a transport.
	Metadata EventMetadata
}

// AckFunc is invoked by a handler once it has finished with an event. A nil error
// acknowledges the event; a non-nil error reports a processing failure.
type AckFunc func(err error)

// HandlerFunc processes a single event envelope.
type HandlerFunc func(ctx context.Context, evt EventEnvelope, ack AckFunc) error
