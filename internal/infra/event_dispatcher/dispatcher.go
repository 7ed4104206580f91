// Package eventdispatcher routes envelopes consumed from the event bus to the
// handler registered for their type.
package eventdispatcher

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/logsift/internal/domain/events"
	"github.com/ahrav/logsift/pkg/common/logger"
)

// Dispatcher manages event handlers and dispatches events to their registered handler.
// Each event type has exactly one handler responsible for processing events of that type.
//
// Typical usage:
//
//	dispatcher := eventdispatcher.New(tracer, logger)
//	if err := dispatcher.RegisterHandler(ctx, runFinishedHandler); err != nil { ... }
//	err := bus.Subscribe(ctx, dispatcher.EventTypes(), dispatcher.Dispatch)
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[events.EventType]events.HandlerFunc
	tracer   trace.Tracer
	logger   *logger.Logger
}

// New constructs a dispatcher with an empty registry; handlers must be
// registered before dispatching any events.
func New(tracer trace.Tracer, logger *logger.Logger) *Dispatcher {
	logger = logger.With("component", "event_dispatcher")
	return &Dispatcher{
		handlers: make(map[events.EventType]events.HandlerFunc),
		tracer:   tracer,
		logger:   logger,
	}
}

// HandlerAlreadyRegisteredError indicates that an event type already has a handler.
type HandlerAlreadyRegisteredError struct {
	EventType events.EventType
}

func (e *HandlerAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("handler already registered for event type: %s", e.EventType)
}

// RegisterHandler registers h for every event type it supports. Registration is
// all or nothing: when any of the types already has a handler nothing is
// registered and a HandlerAlreadyRegisteredError is returned.
//
// This method is safe to call concurrently.
func (d *Dispatcher) RegisterHandler(ctx context.Context, h events.EventHandler) error {
	supported := h.SupportedEvents()
	logger := d.logger.With("operation", "register_handler", "handler_type", fmt.Sprintf("%T", h))
	_, span := d.tracer.Start(ctx, "event_dispatcher.register_handler",
		trace.WithAttributes(
			attribute.String("handler_type", fmt.Sprintf("%T", h)),
			attribute.Int("event_type_count", len(supported)),
		),
	)
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, et := range supported {
		if _, exists := d.handlers[et]; exists {
			err := &HandlerAlreadyRegisteredError{EventType: et}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	for _, et := range supported {
		d.handlers[et] = h.HandleEvent
	}

	logger.Debug(ctx, "handler registered", "event_types", supported)
	span.SetStatus(codes.Ok, "handler registered")
	return nil
}

// EventTypes returns the registered event types in sorted order, suitable for
// subscribing to the event bus.
func (d *Dispatcher) EventTypes() []events.EventType {
	d.mu.RLock()
	defer d.mu.RUnlock()

	types := make([]events.EventType, 0, len(d.handlers))
	for et := range d.handlers {
		types = append(types, et)
	}
	slices.Sort(types)
	return types
}

// HandlerNotFoundError is an error type that indicates a handler was not found for an event type.
type HandlerNotFoundError struct {
	EventType events.EventType
	Partition int32
	Offset    int64
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("no handler registered for event type: %s (partition: %d, offset: %d)",
		e.EventType, e.Partition, e.Offset)
}

// Dispatch attempts to dispatch the provided event envelope to its registered handler.
// It creates a new trace span and executes the handler. If the handler returns an error,
// dispatch stops and returns that error.
//
// If no handler is found for the event type, an error is returned.
//
// Typical callsite usage:
//
//	err := dispatcher.Dispatch(ctx, envelope)
//	if err != nil {
//	    // handle or log error
//	}
func (d *Dispatcher) Dispatch(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
	logger := logger.NewLoggerContext(d.logger.With("operation", "dispatch",
		"event_type", evt.Type,
		"partition", evt.Metadata.Partition,
		"offset", evt.Metadata.Offset,
	))
	ctx, span := d.tracer.Start(ctx, "event_dispatcher.handle_event",
		trace.WithAttributes(
			attribute.String("event_type", string(evt.Type)),
			attribute.Int("partition", int(evt.Metadata.Partition)),
			attribute.Int64("offset", evt.Metadata.Offset),
		))
	defer span.End()

	d.mu.RLock()
	handler, exists := d.handlers[evt.Type]
	d.mu.RUnlock()
	if !exists {
		err := &HandlerNotFoundError{
			EventType: evt.Type,
			Partition: evt.Metadata.Partition,
			Offset:    evt.Metadata.Offset,
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	logger.Add("handler_type", fmt.Sprintf("%T", handler))

	if err := handler(ctx, evt, ack); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to dispatch event for handler %T with event type %s: %w",
			handler, evt.Type, err,
		)
	}

	span.SetStatus(codes.Ok, "event dispatched successfully")
	logger.Debug(ctx, "event dispatched successfully")
	return nil
}
