package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/internal/domain/events"
	"github.com/ahrav/logsift/internal/domain/reporting"
	"github.com/ahrav/logsift/internal/infra/eventbus/serialization"
	"github.com/ahrav/logsift/pkg/common/logger"
)

type recordingMetrics struct {
	mu            sync.Mutex
	published     map[string]int
	consumed      map[string]int
	publishErrors map[string]int
	consumeErrors map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		published:     map[string]int{},
		consumed:      map[string]int{},
		publishErrors: map[string]int{},
		consumeErrors: map[string]int{},
	}
}

func (m *recordingMetrics) inc(counter map[string]int, topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counter[topic]++
}

func (m *recordingMetrics) IncMessagePublished(_ context.Context, t string) { m.inc(m.published, t) }
func (m *recordingMetrics) IncMessageConsumed(_ context.Context, t string)  { m.inc(m.consumed, t) }
func (m *recordingMetrics) IncPublishError(_ context.Context, t string)     { m.inc(m.publishErrors, t) }
func (m *recordingMetrics) IncConsumeError(_ context.Context, t string)     { m.inc(m.consumeErrors, t) }

type fakeConsumerGroup struct{ closed bool }

func (f *fakeConsumerGroup) Consume(ctx context.Context, _ []string, _ sarama.ConsumerGroupHandler) error {
	<-ctx.Done()
	return ctx.Err()
}
func (f *fakeConsumerGroup) Errors() <-chan error { return nil }
func (f *fakeConsumerGroup) Close() error {
	f.closed = true
	return nil
}
func (f *fakeConsumerGroup) Pause(map[string][]int32)  {}
func (f *fakeConsumerGroup) Resume(map[string][]int32) {}
func (f *fakeConsumerGroup) PauseAll()                 {}
func (f *fakeConsumerGroup) ResumeAll()                {}

var testConfig = &EventBusConfig{
	AnalysisEventsTopic: "analysis-events",
	RunLifecycleTopic:   "run-lifecycle",
	GroupID:             "logsift",
	ClientID:            "logsift-test",
}

func newTestBus(t *testing.T, producer sarama.SyncProducer, metrics EventBusMetrics) (*EventBus, *fakeConsumerGroup) {
	t.Helper()

	cg := &fakeConsumerGroup{}
	bus, err := NewEventBus(
		producer,
		cg,
		testConfig,
		logger.New(io.Discard, logger.LevelDebug, "test", nil),
		metrics,
		noop.NewTracerProvider().Tracer("test"),
	)
	require.NoError(t, err)
	return bus, cg
}

func TestNewEventBus_Validation(t *testing.T) {
	log := logger.Noop()
	tracer := noop.NewTracerProvider().Tracer("test")

	_, err := NewEventBus(nil, nil, testConfig, log, nil, tracer)
	require.Error(t, err, "metrics are required")

	_, err = NewEventBus(nil, nil, &EventBusConfig{GroupID: "g"}, log, newRecordingMetrics(), tracer)
	require.Error(t, err, "topics are required")
}

func TestEventBus_PublishRoutesByEventType(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	metrics := newRecordingMetrics()
	bus, cg := newTestBus(t, producer, metrics)

	evt := analysis.NewIssueReclassifiedEvent(1, 2, 3, "auto-analyzer",
		analysis.IssueSnapshot{Locator: reporting.LocatorToInvestigate},
		analysis.IssueSnapshot{Locator: reporting.LocatorProductBug, AutoAnalyzed: true},
	)

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		typ, payload, err := serialization.UnmarshalUniversalEnvelope(val)
		if err != nil {
			return err
		}
		if typ != analysis.EventTypeIssueReclassified {
			return errors.New("unexpected event type " + string(typ))
		}
		var decoded analysis.IssueReclassifiedEvent
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return err
		}
		if decoded.After.Locator != reporting.LocatorProductBug {
			return errors.New("unexpected locator " + decoded.After.Locator)
		}
		return nil
	})

	err := NewDomainEventPublisher(bus).PublishDomainEvent(context.Background(), evt, events.WithKey("3"))
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.published["analysis-events"])

	require.NoError(t, bus.Close())
	assert.True(t, cg.closed)
}

func TestEventBus_PublishErrors(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	metrics := newRecordingMetrics()
	bus, _ := newTestBus(t, producer, metrics)
	ctx := context.Background()

	err := bus.Publish(ctx, events.EventEnvelope{Type: "Unknown"})
	require.Error(t, err)

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	err = bus.Publish(ctx, events.EventEnvelope{
		Type:    reporting.EventTypeRunFinished,
		Payload: reporting.NewRunFinishedEvent(1, 1),
	})
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	assert.Equal(t, 1, metrics.publishErrors["run-lifecycle"])

	err = bus.Publish(ctx, events.EventEnvelope{Type: reporting.EventTypeRunFinished, Payload: "not an event"})
	require.Error(t, err)
	assert.Equal(t, 2, metrics.publishErrors["run-lifecycle"])

	require.NoError(t, bus.Close())
}

func TestEventBus_SubscribeUnknownType(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	bus, _ := newTestBus(t, producer, newRecordingMetrics())

	err := bus.Subscribe(context.Background(), []events.EventType{"Unknown"}, nil)
	require.Error(t, err)
	require.NoError(t, bus.Close())
}

type fakeSession struct {
	ctx     context.Context
	mu      sync.Mutex
	marked  []int64
	commits int
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "member-1" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }
func (s *fakeSession) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
}
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct{ msgs chan *sarama.ConsumerMessage }

func (c *fakeClaim) Topic() string                            { return "run-lifecycle" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func TestDomainEventHandler_ConsumeClaim(t *testing.T) {
	metrics := newRecordingMetrics()

	var (
		mu       sync.Mutex
		received []events.EventEnvelope
	)
	h := &domainEventHandler{
		userHandler: func(_ context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
			mu.Lock()
			received = append(received, evt)
			mu.Unlock()

			finished := evt.Payload.(reporting.RunFinishedEvent)
			if finished.RunID == 2 {
				ack(errors.New("analysis failed"))
				return nil
			}
			ack(nil)
			return nil
		},
		logger:  logger.Noop(),
		tracer:  noop.NewTracerProvider().Tracer("test"),
		metrics: metrics,
	}

	encode := func(runID int64) []byte {
		data, err := serialization.SerializeEventEnvelope(reporting.EventTypeRunFinished, reporting.NewRunFinishedEvent(runID, 1))
		require.NoError(t, err)
		return data
	}

	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 3)}
	claim.msgs <- &sarama.ConsumerMessage{Topic: "run-lifecycle", Offset: 10, Key: []byte("1"), Value: encode(1)}
	claim.msgs <- &sarama.ConsumerMessage{Topic: "run-lifecycle", Offset: 11, Value: []byte("garbage")}
	claim.msgs <- &sarama.ConsumerMessage{Topic: "run-lifecycle", Offset: 12, Value: encode(2)}
	close(claim.msgs)

	sess := &fakeSession{ctx: context.Background()}
	require.NoError(t, h.ConsumeClaim(sess, claim))

	require.Len(t, received, 2)
	assert.Equal(t, "1", received[0].Key)
	assert.Equal(t, int64(10), received[0].Metadata.Offset)

	assert.Equal(t, []int64{10, 11}, sess.marked, "failed events are not marked")
	assert.GreaterOrEqual(t, sess.commits, 1)
	assert.Equal(t, 1, metrics.consumed["run-lifecycle"])
	assert.Equal(t, 2, metrics.consumeErrors["run-lifecycle"])
}
