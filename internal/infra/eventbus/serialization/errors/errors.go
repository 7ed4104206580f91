// Package serializationerrors defines the errors raised while encoding and decoding
// event payloads.
package serializationerrors

import "fmt"

// ErrNilEvent indicates that a nil event was provided for serialization.
type ErrNilEvent struct{ EventType string }

func (e ErrNilEvent) Error() string { return fmt.Sprintf("nil %s event", e.EventType) }

// ErrPayloadType indicates that a payload does not match the type registered
// for its event type.
type ErrPayloadType struct {
	EventType string
	Got       any
}

func (e ErrPayloadType) Error() string {
	return fmt.Sprintf("unexpected payload %T for event %s", e.Got, e.EventType)
}

// ErrUnknownEventType indicates that no codec is registered for an event type.
type ErrUnknownEventType struct{ EventType string }

func (e ErrUnknownEventType) Error() string {
	return fmt.Sprintf("no codec registered for eventType=%s", e.EventType)
}
