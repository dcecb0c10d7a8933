// Package outbox buffers enrollment events in memory and delivers them to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/roster/internal/events"
)

// ErrQueueFull is returned by Publish when the pending queue is at capacity.
var ErrQueueFull = errors.New("outbox queue full")

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// SchemaRegistrar resolves the registry id for a subject's schema.
type SchemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

type pendingEvent struct {
	envelope events.Envelope
	attempts int
}

// Option configures optional Dispatcher behaviour.
type Option func(*Dispatcher)

// WithLogger overrides the logger used to report delivery problems.
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMaxAttempts bounds how many times a batch is retried before its events are dropped.
func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithQueueCapacity bounds the number of undelivered events held in memory.
func WithQueueCapacity(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.capacity = n
		}
	}
}

// Dispatcher queues enrollment events and delivers them to Kafka on a fixed interval.
type Dispatcher struct {
	producer     messageWriter
	registry     SchemaRegistrar
	topic        string
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	capacity     int
	logger       *log.Logger

	mu      sync.Mutex
	pending []pendingEvent

	schemaIDCache    sync.Map
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(producer messageWriter, registry SchemaRegistrar, topic string, pollInterval time.Duration, batchSize int, opts ...Option) *Dispatcher {
	if registry == nil {
		registry = StaticRegistry{}
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	d := &Dispatcher{
		producer:         producer,
		registry:         registry,
		topic:            topic,
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		maxAttempts:      5,
		capacity:         1000,
		logger:           log.New(log.Writer(), "[outbox] ", log.LstdFlags|log.Lshortfile),
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish queues an envelope for delivery. It never blocks on Kafka.
func (d *Dispatcher) Publish(_ context.Context, envelope events.Envelope) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) >= d.capacity {
		droppedCounter.WithLabelValues(dropReasonQueueFull).Inc()
		return ErrQueueFull
	}
	d.pending = append(d.pending, pendingEvent{envelope: envelope})
	pendingGauge.Set(float64(len(d.pending)))
	return nil
}

// Pending reports how many events are waiting for delivery.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Start launches the delivery loop. It should be called in a goroutine.
// When ctx is cancelled one last flush is attempted before Wait returns.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case <-ticker.C:
		}

		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Printf("dispatch error: %v", err)
		}
	}
}

// Wait blocks until the delivery loop has stopped.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for d.Pending() > 0 {
		if err := d.processBatch(ctx); err != nil {
			d.logger.Printf("final flush abandoned with %d pending: %v", d.Pending(), err)
			return
		}
	}
}

func (d *Dispatcher) claim() []pendingEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := min(len(d.pending), d.batchSize)
	if n == 0 {
		return nil
	}
	batch := make([]pendingEvent, n)
	copy(batch, d.pending[:n])
	d.pending = d.pending[n:]
	pendingGauge.Set(float64(len(d.pending)))
	return batch
}

// requeue puts retryable events back at the head of the queue, ahead of newer ones.
func (d *Dispatcher) requeue(batch []pendingEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = append(batch, d.pending...)
	pendingGauge.Set(float64(len(d.pending)))
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	batch := d.claim()
	if len(batch) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	messages := make([]kafka.Message, 0, len(batch))
	deliverable := make([]pendingEvent, 0, len(batch))
	for i, item := range batch {
		msg, err := d.encode(ctx, item.envelope)
		if errors.Is(err, errUnknownEventType) {
			d.logger.Printf("dropping event %s: %v", item.envelope.EventID, err)
			droppedCounter.WithLabelValues(dropReasonUnknownType).Inc()
			continue
		}
		if err != nil {
			d.retryOrDrop(append(deliverable, batch[i:]...))
			return err
		}
		messages = append(messages, msg)
		deliverable = append(deliverable, item)
	}
	if len(messages) == 0 {
		return nil
	}

	if err := d.producer.WriteMessages(ctx, d.topic, messages...); err != nil {
		failedCounter.Add(float64(len(messages)))
		d.retryOrDrop(deliverable)
		return fmt.Errorf("write %d events: %w", len(messages), err)
	}

	deliveredCounter.Add(float64(len(messages)))
	return nil
}

func (d *Dispatcher) retryOrDrop(batch []pendingEvent) {
	retry := make([]pendingEvent, 0, len(batch))
	for _, item := range batch {
		item.attempts++
		if item.attempts >= d.maxAttempts {
			d.logger.Printf("dropping event %s (type=%s, activity=%s) after %d attempts",
				item.envelope.EventID, item.envelope.EventType, item.envelope.Activity, item.attempts)
			droppedCounter.WithLabelValues(dropReasonMaxAttempts).Inc()
			continue
		}
		retry = append(retry, item)
	}
	if len(retry) > 0 {
		d.requeue(retry)
	}
}

var errUnknownEventType = errors.New("no schema metadata for event type")

func (d *Dispatcher) encode(ctx context.Context, envelope events.Envelope) (kafka.Message, error) {
	meta, ok := schemaCatalog[envelope.EventType]
	if !ok {
		return kafka.Message{}, fmt.Errorf("%w: %s", errUnknownEventType, envelope.EventType)
	}

	subject := meta.Subject(d.topic)
	schemaID, err := d.schemaID(ctx, subject, meta.Schema)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("resolve schema %s: %w", subject, err)
	}

	return kafka.Message{
		Key:   []byte(envelope.Activity),
		Value: encodeWireFormat(schemaID, envelope.Payload),
		Time:  envelope.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(envelope.EventType)},
			{Key: "event_id", Value: []byte(envelope.EventID)},
			{Key: "schema_subject", Value: []byte(subject)},
		},
	}, nil
}

func (d *Dispatcher) schemaID(ctx context.Context, subject, schema string) (int, error) {
	cacheKey := subject + "::" + schema
	if id, ok := d.schemaIDCache.Load(cacheKey); ok {
		return id.(int), nil
	}
	id, err := d.registry.EnsureSchema(ctx, subject, schema)
	if err != nil {
		return 0, err
	}
	d.schemaIDCache.Store(cacheKey, id)
	return id, nil
}

// encodeWireFormat applies Confluent framing: magic byte 0 followed by a big-endian schema id.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}
