package events

import "context"

// EventHandler is implemented by components that react to events consumed from the bus,
// such as run lifecycle notifications. The dispatcher routes each envelope to the
// handler registered for its type.
type EventHandler interface {
	// HandleEvent processes one envelope. The handler must call ack exactly once.
	HandleEvent(ctx context.Context, evt EventEnvelope, ack AckFunc) error

	// SupportedEvents returns the event types this handler can process.
	SupportedEvents() []EventType
}
