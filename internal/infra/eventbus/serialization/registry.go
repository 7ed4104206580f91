// Package serialization provides a registry-based system for serializing and deserializing
// domain events in the event bus infrastructure. Every event type carried on the wire
// registers a codec; payloads are JSON so the reporting side can produce run lifecycle
// events without sharing Go types.
package serialization

import (
	"encoding/json"
	"fmt"

	"github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/internal/domain/events"
	"github.com/ahrav/logsift/internal/domain/reporting"
	serializationerrors "github.com/ahrav/logsift/internal/infra/eventbus/serialization/errors"
)

// SerializeFunc converts a domain object into a serialized byte slice.
type SerializeFunc func(payload any) ([]byte, error)

// DeserializeFunc converts a serialized byte slice back into a domain object.
type DeserializeFunc func(data []byte) (any, error)

var (
	serializerRegistry   = map[events.EventType]SerializeFunc{}
	deserializerRegistry = map[events.EventType]DeserializeFunc{}
)

// RegisterSerializeFunc registers a serialization function for a given event type.
func RegisterSerializeFunc(eventType events.EventType, fn SerializeFunc) {
	serializerRegistry[eventType] = fn
}

// RegisterDeserializeFunc registers a deserialization function for a given event type.
func RegisterDeserializeFunc(eventType events.EventType, fn DeserializeFunc) {
	deserializerRegistry[eventType] = fn
}

// SerializePayload converts a domain object into bytes using the registered serializer for its event type.
func SerializePayload(eventType events.EventType, payload any) ([]byte, error) {
	fn, ok := serializerRegistry[eventType]
	if !ok {
		return nil, serializationerrors.ErrUnknownEventType{EventType: string(eventType)}
	}
	return fn(payload)
}

// DeserializePayload converts bytes back into a domain object using the registered deserializer for its event type.
func DeserializePayload(eventType events.EventType, data []byte) (any, error) {
	fn, ok := deserializerRegistry[eventType]
	if !ok {
		return nil, serializationerrors.ErrUnknownEventType{EventType: string(eventType)}
	}
	return fn(data)
}

// universalEnvelope is the wire format of every message: the event type travels
// next to the payload so consumers can pick the codec before decoding.
type universalEnvelope struct {
	Type    events.EventType `json:"type"`
	Payload json.RawMessage  `json:"payload"`
}

// SerializeEventEnvelope encodes the payload with its registered codec and wraps it
// in the universal envelope.
func SerializeEventEnvelope(eventType events.EventType, payload any) ([]byte, error) {
	data, err := SerializePayload(eventType, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(universalEnvelope{Type: eventType, Payload: data})
}

// UnmarshalUniversalEnvelope splits a wire message into its event type and raw payload.
func UnmarshalUniversalEnvelope(data []byte) (events.EventType, []byte, error) {
	var env universalEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return "", nil, fmt.Errorf("unmarshal envelope: missing event type")
	}
	return env.Type, env.Payload, nil
}

func init() {
	RegisterEventSerializers()
}

// RegisterEventSerializers registers the codecs of every event type carried on the bus.
func RegisterEventSerializers() {
	registerJSON[reporting.RunFinishedEvent](reporting.EventTypeRunFinished)
	registerJSON[analysis.IssueReclassifiedEvent](analysis.EventTypeIssueReclassified)
	registerJSON[analysis.TicketLinkedEvent](analysis.EventTypeTicketLinked)
}

// registerJSON registers a JSON codec for T. Serialization accepts T or *T;
// deserialization always yields T.
func registerJSON[T any](eventType events.EventType) {
	RegisterSerializeFunc(eventType, func(payload any) ([]byte, error) {
		switch p := payload.(type) {
		case T:
			return json.Marshal(p)
		case *T:
			if p == nil {
				return nil, serializationerrors.ErrNilEvent{EventType: string(eventType)}
			}
			return json.Marshal(p)
		default:
			return nil, serializationerrors.ErrPayloadType{EventType: string(eventType), Got: payload}
		}
	})
	RegisterDeserializeFunc(eventType, func(data []byte) (any, error) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", eventType, err)
		}
		return v, nil
	})
}
