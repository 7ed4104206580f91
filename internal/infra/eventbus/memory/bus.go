// Package memory provides an in-process implementation of events.EventBus.
// It offers a lightweight, non-persistent bus suitable for running the service
// without a broker and for tests where durability is not required.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ahrav/logsift/internal/domain/events"
	"github.com/ahrav/logsift/pkg/common/logger"
)

var _ events.EventBus = (*Bus)(nil)

type subscription struct {
	id      uint64
	types   []events.EventType
	handler events.HandlerFunc
}

// Bus delivers published envelopes synchronously to every subscriber of the
// envelope's type. Subscriptions end when their context is cancelled.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
	closed bool

	logger *logger.Logger
}

// NewBus creates an empty in-memory event bus.
func NewBus(logger *logger.Logger) *Bus {
	return &Bus{logger: logger.With("component", "memory_event_bus")}
}

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("event bus closed")

// Publish delivers the envelope to each matching handler in subscription order.
// Handler errors are collected and returned together; acknowledgement failures
// are logged.
func (b *Bus) Publish(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := events.ApplyPublishOptions(opts)
	if params.Key != "" {
		event.Key = params.Key
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	handlers := make([]events.HandlerFunc, 0, len(b.subs))
	for _, s := range b.subs {
		if slices.Contains(s.types, event.Type) {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := ctx.Err(); err != nil {
			return err
		}
		ack := func(err error) {
			if err != nil {
				b.logger.Warn(ctx, "Event processing failed", "event_type", event.Type, "key", event.Key, "error", err)
			}
		}
		if err := h(ctx, event, ack); err != nil {
			errs = append(errs, fmt.Errorf("handler for %s: %w", event.Type, err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers handler for eventTypes until ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, eventTypes []events.EventType, handler events.HandlerFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, types: slices.Clone(eventTypes), handler: handler})
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(id)
	}()

	return nil
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = slices.DeleteFunc(b.subs, func(s subscription) bool { return s.id == id })
}

// Close drops every subscription; later calls fail with ErrClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = nil
	return nil
}
