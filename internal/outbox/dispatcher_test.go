package outbox

import (
	"context"
	"encoding/binary"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/roster/internal/events"
)

func TestDispatcherPublishesMessages(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	dispatcher := newTestDispatcher(t, producer, registry)

	beforeDelivered := testutil.ToFloat64(deliveredCounter)

	envelope := testEnvelope(t, events.TypeParticipantEnrolled, "Chess Club")
	require.NoError(t, dispatcher.Publish(context.Background(), envelope))
	require.Equal(t, 1, dispatcher.Pending())

	require.NoError(t, dispatcher.processBatch(context.Background()))
	require.Zero(t, dispatcher.Pending())

	require.Len(t, producer.writes, 1)
	write := producer.writes[0]
	require.Equal(t, "enrollment_events", write.topic)
	require.Len(t, write.messages, 1)

	msg := write.messages[0]
	require.Equal(t, "Chess Club", string(msg.Key))
	require.Equal(t, byte(0), msg.Value[0])
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(msg.Value[1:5]))
	require.JSONEq(t, string(envelope.Payload), string(msg.Value[5:]))
	require.Equal(t, events.TypeParticipantEnrolled, headerOf(msg, "event_type"))
	require.Equal(t, envelope.EventID, headerOf(msg, "event_id"))
	require.Equal(t, "enrollment_events-ParticipantEnrolled", headerOf(msg, "schema_subject"))

	require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(deliveredCounter), 0.0001)
}

func TestDispatcherCachesSchemaIDs(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 7}
	dispatcher := newTestDispatcher(t, producer, registry)

	for i := 0; i < 3; i++ {
		require.NoError(t, dispatcher.Publish(context.Background(), testEnvelope(t, events.TypeParticipantWithdrawn, "Drama Club")))
	}
	require.NoError(t, dispatcher.processBatch(context.Background()))

	require.Equal(t, 1, registry.calls)
	require.Len(t, producer.writes[0].messages, 3)
}

func TestDispatcherRequeuesOnFailure(t *testing.T) {
	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := newTestDispatcher(t, producer, &stubRegistry{id: 1}, WithMaxAttempts(3))

	beforeFailed := testutil.ToFloat64(failedCounter)
	require.NoError(t, dispatcher.Publish(context.Background(), testEnvelope(t, events.TypeParticipantEnrolled, "Soccer Team")))

	require.Error(t, dispatcher.processBatch(context.Background()))
	require.Equal(t, 1, dispatcher.Pending())
	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter), 0.0001)

	producer.setErr(nil)
	require.NoError(t, dispatcher.processBatch(context.Background()))
	require.Zero(t, dispatcher.Pending())
	require.Len(t, producer.writes, 1)
}

func TestDispatcherDropsAfterMaxAttempts(t *testing.T) {
	producer := &stubProducer{err: errors.New("broker unavailable")}
	dispatcher := newTestDispatcher(t, producer, &stubRegistry{id: 1}, WithMaxAttempts(2))

	beforeDropped := testutil.ToFloat64(droppedCounter.WithLabelValues(dropReasonMaxAttempts))
	require.NoError(t, dispatcher.Publish(context.Background(), testEnvelope(t, events.TypeParticipantEnrolled, "Soccer Team")))

	require.Error(t, dispatcher.processBatch(context.Background()))
	require.Equal(t, 1, dispatcher.Pending())
	require.Error(t, dispatcher.processBatch(context.Background()))
	require.Zero(t, dispatcher.Pending())

	require.InDelta(t, beforeDropped+1, testutil.ToFloat64(droppedCounter.WithLabelValues(dropReasonMaxAttempts)), 0.0001)
}

func TestDispatcherRetriesKeepOrder(t *testing.T) {
	producer := &stubProducer{err: errors.New("transient")}
	dispatcher := newTestDispatcher(t, producer, &stubRegistry{id: 1})

	first := testEnvelope(t, events.TypeParticipantEnrolled, "Art Studio")
	second := testEnvelope(t, events.TypeParticipantWithdrawn, "Art Studio")
	require.NoError(t, dispatcher.Publish(context.Background(), first))
	require.Error(t, dispatcher.processBatch(context.Background()))
	require.NoError(t, dispatcher.Publish(context.Background(), second))

	producer.setErr(nil)
	require.NoError(t, dispatcher.processBatch(context.Background()))

	msgs := producer.writes[0].messages
	require.Len(t, msgs, 2)
	require.Equal(t, first.EventID, headerOf(msgs[0], "event_id"))
	require.Equal(t, second.EventID, headerOf(msgs[1], "event_id"))
}

func TestDispatcherRejectsWhenQueueFull(t *testing.T) {
	dispatcher := newTestDispatcher(t, &stubProducer{}, &stubRegistry{}, WithQueueCapacity(1))

	require.NoError(t, dispatcher.Publish(context.Background(), testEnvelope(t, events.TypeParticipantEnrolled, "Gym Class")))
	err := dispatcher.Publish(context.Background(), testEnvelope(t, events.TypeParticipantEnrolled, "Gym Class"))
	require.ErrorIs(t, err, ErrQueueFull)
	require.Equal(t, 1, dispatcher.Pending())
}

func TestDispatcherDropsUnknownEventTypes(t *testing.T) {
	producer := &stubProducer{}
	dispatcher := newTestDispatcher(t, producer, &stubRegistry{})

	require.NoError(t, dispatcher.Publish(context.Background(), events.Envelope{EventID: "x", EventType: "enrollment.unknown"}))
	require.NoError(t, dispatcher.processBatch(context.Background()))

	require.Zero(t, dispatcher.Pending())
	require.Empty(t, producer.writes)
}

func TestDispatcherFlushesOnShutdown(t *testing.T) {
	producer := &stubProducer{}
	dispatcher := NewDispatcher(producer, &stubRegistry{id: 3}, "enrollment_events", time.Hour, 10,
		WithLogger(log.New(testWriter{t}, "", 0)))

	ctx, cancel := context.WithCancel(context.Background())
	go dispatcher.Start(ctx)

	require.NoError(t, dispatcher.Publish(context.Background(), testEnvelope(t, events.TypeParticipantEnrolled, "Science Club")))
	cancel()
	dispatcher.Wait()

	require.Zero(t, dispatcher.Pending())
	require.Len(t, producer.snapshot(), 1)
}

func newTestDispatcher(t *testing.T, producer *stubProducer, registry *stubRegistry, opts ...Option) *Dispatcher {
	t.Helper()
	opts = append([]Option{WithLogger(log.New(testWriter{t}, "", 0))}, opts...)
	return NewDispatcher(producer, registry, "enrollment_events", 10*time.Millisecond, 10, opts...)
}

func testEnvelope(t *testing.T, eventType, activity string) events.Envelope {
	t.Helper()
	now := time.Now().UTC()
	envelope, err := events.NewEnvelope(eventType, activity, now, func(id string) any {
		return events.ParticipantEnrolled{
			EventID:       id,
			Activity:      activity,
			ParticipantID: "student@mergington.edu",
			Participants:  3,
			OccurredAt:    now,
		}
	})
	require.NoError(t, err)
	return envelope
}

func headerOf(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

type producedWrite struct {
	topic    string
	messages []kafka.Message
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []producedWrite
}

func (p *stubProducer) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.writes = append(p.writes, producedWrite{topic: topic, messages: append([]kafka.Message(nil), msgs...)})
	return nil
}

func (p *stubProducer) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *stubProducer) snapshot() []producedWrite {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]producedWrite(nil), p.writes...)
}

type stubRegistry struct {
	id    int
	calls int
}

func (r *stubRegistry) EnsureSchema(context.Context, string, string) (int, error) {
	r.calls++
	return r.id, nil
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
