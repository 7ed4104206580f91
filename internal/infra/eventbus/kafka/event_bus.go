// Package kafka provides a Kafka-based implementation of the event bus for asynchronous messaging.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/internal/domain/events"
	"github.com/ahrav/logsift/internal/domain/reporting"
	"github.com/ahrav/logsift/internal/infra/eventbus/kafka/tracing"
	"github.com/ahrav/logsift/internal/infra/eventbus/serialization"
	"github.com/ahrav/logsift/pkg/common/logger"
)

// EventBusMetrics defines metrics operations needed to monitor Kafka message handling.
type EventBusMetrics interface {
	IncMessagePublished(ctx context.Context, topic string)
	IncMessageConsumed(ctx context.Context, topic string)
	IncPublishError(ctx context.Context, topic string)
	IncConsumeError(ctx context.Context, topic string)
}

// EventBusConfig contains the topics and consumer group used by the event bus.
type EventBusConfig struct {
	// AnalysisEventsTopic receives issue reclassified and ticket linked events.
	AnalysisEventsTopic string
	// RunLifecycleTopic carries run finished notifications from the reporting side.
	RunLifecycleTopic string

	// GroupID identifies the consumer group for this instance.
	GroupID string
	// ClientID uniquely identifies this client to the Kafka cluster.
	ClientID string
}

// Validate reports missing topic or group settings.
func (c *EventBusConfig) Validate() error {
	if c.AnalysisEventsTopic == "" || c.RunLifecycleTopic == "" {
		return fmt.Errorf("analysis events and run lifecycle topics are required")
	}
	if c.GroupID == "" {
		return fmt.Errorf("consumer group id is required")
	}
	return nil
}

// commitInterval bounds how often offsets are committed while consuming.
const commitInterval = time.Second

var _ events.EventBus = (*EventBus)(nil)

// EventBus implements events.EventBus on top of a sarama producer and consumer group.
type EventBus struct {
	producer      sarama.SyncProducer
	consumerGroup sarama.ConsumerGroup

	// Maps domain event types to their Kafka topics.
	topicMap map[events.EventType]string

	consumers sync.WaitGroup

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics EventBusMetrics
}

// NewEventBus creates an event bus from an already connected producer and consumer group.
func NewEventBus(
	producer sarama.SyncProducer,
	consumerGroup sarama.ConsumerGroup,
	cfg *EventBusConfig,
	logger *logger.Logger,
	metrics EventBusMetrics,
	tracer trace.Tracer,
) (*EventBus, error) {
	if metrics == nil {
		return nil, fmt.Errorf("metrics are required for kafka event bus")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger = logger.With(
		"component", "kafka_event_bus",
		"client_id", cfg.ClientID,
		"group_id", cfg.GroupID,
	)

	topicMap := map[events.EventType]string{
		reporting.EventTypeRunFinished:      cfg.RunLifecycleTopic,   // reporting -> analysis
		analysis.EventTypeIssueReclassified: cfg.AnalysisEventsTopic, // analysis -> consumers
		analysis.EventTypeTicketLinked:      cfg.AnalysisEventsTopic, // analysis -> consumers
	}

	return &EventBus{
		producer:      producer,
		consumerGroup: consumerGroup,
		topicMap:      topicMap,
		logger:        logger,
		metrics:       metrics,
		tracer:        tracer,
	}, nil
}

// Publish serializes the envelope and sends it to the topic mapped for its event type.
func (b *EventBus) Publish(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	topic, ok := b.topicMap[event.Type]
	if !ok {
		return fmt.Errorf("unknown event type '%s', no topic mapped", event.Type)
	}

	ctx, span := tracing.StartProducerSpan(ctx, topic, b.tracer)
	defer span.End()

	params := events.ApplyPublishOptions(opts)
	if params.Key != "" {
		event.Key = params.Key
		span.SetAttributes(attribute.String("event.key", event.Key))
	}

	msgBytes, err := serialization.SerializeEventEnvelope(event.Type, event.Payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize event")
		b.metrics.IncPublishError(ctx, topic)
		return fmt.Errorf("failed to serialize payload for event %s: %w", event.Type, err)
	}

	if err := b.publishToTopic(ctx, topic, event.Key, msgBytes, params.Headers); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish event")
		return err
	}
	return nil
}

// publishToTopic handles the actual publishing of a message to a single Kafka topic.
func (b *EventBus) publishToTopic(
	ctx context.Context,
	topic, key string,
	msgBytes []byte,
	headers map[string]string,
) error {
	kafkaMsg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(msgBytes),
	}
	if key != "" {
		kafkaMsg.Key = sarama.StringEncoder(key)
	}
	for k, v := range headers {
		kafkaMsg.Headers = append(kafkaMsg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	tracing.InjectTraceContext(ctx, kafkaMsg)

	partition, offset, err := b.producer.SendMessage(kafkaMsg)
	if err != nil {
		b.metrics.IncPublishError(ctx, topic)
		return fmt.Errorf("failed to send message to kafka topic %s: %w", topic, err)
	}
	b.metrics.IncMessagePublished(ctx, topic)

	b.logger.Debug(ctx, "Published message to Kafka",
		"topic", topic,
		"partition", partition,
		"offset", offset,
		"key", key,
	)
	return nil
}

// Subscribe registers a handler for the given event types. Consumption runs in a
// separate goroutine until ctx is cancelled.
func (b *EventBus) Subscribe(
	ctx context.Context,
	eventTypes []events.EventType,
	handler events.HandlerFunc,
) error {
	_, span := b.tracer.Start(ctx, "kafka_event_bus.subscribe",
		trace.WithAttributes(attribute.String("component", "kafka_event_bus")),
	)
	defer span.End()

	topicSet := make(map[string]struct{})
	var topics []string
	for _, et := range eventTypes {
		topic, ok := b.topicMap[et]
		if !ok {
			err := fmt.Errorf("subscribe: unknown event type %s", et)
			span.RecordError(err)
			span.SetStatus(codes.Error, "unknown event type")
			return err
		}
		if _, seen := topicSet[topic]; seen {
			continue
		}
		topicSet[topic] = struct{}{}
		topics = append(topics, topic)
	}
	span.AddEvent("topics_collected", trace.WithAttributes(attribute.StringSlice("topics", topics)))

	b.consumers.Add(1)
	go func() {
		defer b.consumers.Done()
		b.consumeLoop(ctx, topics, handler)
	}()
	b.logger.Info(ctx, "Subscribed to events", "event_types", eventTypes, "topics", topics)

	return nil
}

// consumeLoop maintains a continuous consumer group session for processing messages.
func (b *EventBus) consumeLoop(ctx context.Context, topics []string, handler events.HandlerFunc) {
	cgHandler := &domainEventHandler{
		userHandler: handler,
		logger:      b.logger,
		tracer:      b.tracer,
		metrics:     b.metrics,
	}

	for {
		if err := b.consumerGroup.Consume(ctx, topics, cgHandler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			b.logger.Error(ctx, "Error from consumer group", "error", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// domainEventHandler implements sarama.ConsumerGroupHandler to process Kafka messages
// and convert them into domain events for the application.
type domainEventHandler struct {
	userHandler events.HandlerFunc

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics EventBusMetrics
}

func (h *domainEventHandler) Setup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info(sess.Context(),
		"Consumer group session setup",
		"generation_id", sess.GenerationID(),
		"member_id", sess.MemberID(),
	)
	return nil
}

func (h *domainEventHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info(sess.Context(),
		"Consumer group session cleanup",
		"generation_id", sess.GenerationID(),
		"member_id", sess.MemberID(),
	)
	return nil
}

// ConsumeClaim processes messages from an assigned partition, deserializing them into
// domain events and invoking the user-provided handler. Messages that cannot be
// decoded are marked so they are not redelivered forever.
func (h *domainEventHandler) ConsumeClaim(
	sess sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	consumeLogger := h.logger.With("operation", "consume_claim", "partition", claim.Partition())
	consumeLogger.Info(sess.Context(), "Starting to consume from partition", "member_id", sess.MemberID())

	lastCommit := time.Now()

	for msg := range claim.Messages() {
		h.consumeMessage(sess, claim, msg, consumeLogger, &lastCommit)
	}

	sess.Commit()
	return nil
}

func (h *domainEventHandler) consumeMessage(
	sess sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
	msg *sarama.ConsumerMessage,
	consumeLogger *logger.Logger,
	lastCommit *time.Time,
) {
	msgCtx := tracing.ExtractTraceContext(sess.Context(), msg)
	msgCtx, span := tracing.StartConsumerSpan(msgCtx, msg, h.tracer)
	defer span.End()

	evtType, payloadBytes, err := serialization.UnmarshalUniversalEnvelope(msg.Value)
	if err != nil {
		h.discard(msgCtx, sess, msg, span, consumeLogger, err)
		return
	}

	payload, err := serialization.DeserializePayload(evtType, payloadBytes)
	if err != nil {
		h.discard(msgCtx, sess, msg, span, consumeLogger, err)
		return
	}

	evt := events.EventEnvelope{
		Type:      evtType,
		Key:       string(msg.Key),
		Timestamp: msg.Timestamp,
		Payload:   payload,
		Metadata: events.EventMetadata{
			Partition: claim.Partition(),
			Offset:    msg.Offset,
		},
	}

	consumeLogger.Debug(msgCtx, "Received Kafka message",
		"topic", msg.Topic,
		"offset", msg.Offset,
		"event_type", evtType,
		"key", evt.Key,
	)

	ack := func(err error) {
		ackCtx, ackSpan := h.tracer.Start(msgCtx, "kafka_consumer.acknowledge",
			trace.WithLinks(trace.LinkFromContext(msgCtx)),
		)
		defer ackSpan.End()

		if err != nil {
			consumeLogger.Error(ackCtx, "Event processing failed", "error", err, "offset", msg.Offset)
			h.metrics.IncConsumeError(ackCtx, msg.Topic)
			ackSpan.RecordError(err)
			ackSpan.SetStatus(codes.Error, "event processing failed")
			return
		}
		h.metrics.IncMessageConsumed(ackCtx, msg.Topic)
		sess.MarkMessage(msg, "")

		if time.Since(*lastCommit) > commitInterval {
			sess.Commit()
			*lastCommit = time.Now()
			consumeLogger.Debug(ackCtx, "Committed offsets", "topic", msg.Topic, "offset", msg.Offset)
		}
	}

	if err := h.userHandler(msgCtx, evt, ack); err != nil {
		consumeLogger.Error(msgCtx, "Failed to handle message", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to handle message")
		return
	}
	consumeLogger.Debug(msgCtx, "Successfully processed message", "topic", msg.Topic)
}

func (h *domainEventHandler) discard(
	ctx context.Context,
	sess sarama.ConsumerGroupSession,
	msg *sarama.ConsumerMessage,
	span trace.Span,
	consumeLogger *logger.Logger,
	err error,
) {
	consumeLogger.Warn(ctx, "Discarding undecodable message", "error", err, "offset", msg.Offset)
	span.RecordError(err)
	span.SetStatus(codes.Error, "undecodable message")
	h.metrics.IncConsumeError(ctx, msg.Topic)
	sess.MarkMessage(msg, "")
}

// Close shuts down the producer and consumer group and waits for running
// consume loops to return.
func (b *EventBus) Close() error {
	logger := b.logger.With("operation", "close")
	ctx, span := b.tracer.Start(context.Background(), "kafka_event_bus.close")
	defer span.End()

	if err := b.producer.Close(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to close producer")
		logger.Error(ctx, "Failed to close producer", "error", err)
		return err
	}
	if err := b.consumerGroup.Close(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to close consumer group")
		logger.Error(ctx, "Failed to close consumer group", "error", err)
		return err
	}
	b.consumers.Wait()

	span.SetStatus(codes.Ok, "closed event bus")
	logger.Info(ctx, "Closed event bus")
	return nil
}
