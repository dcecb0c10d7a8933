// Package consumer reads enrollment events from Kafka and hands them to a Handler.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded representation of a record written by the outbox dispatcher.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	EventID       string
	Activity      string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithHandlerRetries retries a failing Handle call up to attempts times, doubling delay between tries.
func WithHandlerRetries(attempts int, delay time.Duration) Option {
	return func(p *Processor) {
		if attempts > 0 {
			p.handlerAttempts = attempts
		}
		if delay > 0 {
			p.retryDelay = delay
		}
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader          Reader
	handler         Handler
	logger          *log.Logger
	handlerAttempts int
	retryDelay      time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:          reader,
		handler:         handler,
		logger:          log.New(log.Writer(), "[consumer] ", log.LstdFlags|log.Lshortfile),
		handlerAttempts: 1,
		retryDelay:      200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a blocking loop that processes Kafka messages until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Printf("fetch error: %v", err)
			if sleepErr := sleepCtx(ctx, p.retryDelay); sleepErr != nil {
				return sleepErr
			}
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.Printf("decode error (topic=%s, partition=%d, offset=%d): %v", msg.Topic, msg.Partition, msg.Offset, decodeErr)
			recordRejected(decodeErr)
			// Commit malformed messages to avoid poison-pill loops.
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Printf("commit error after decode failure: %v", commitErr)
			}
			continue
		}

		attempts, handleErr := p.handle(ctx, event)
		if handleErr != nil {
			if errors.Is(handleErr, context.Canceled) {
				return handleErr
			}
			p.logger.Printf("handler error after %d attempts (event_type=%s, event_id=%s, activity=%s): %v",
				attempts, event.EventType, event.EventID, event.Activity, handleErr)
			recordStoreFailure(event)
			continue
		}
		recordStored(event, attempts, time.Now())

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Printf("commit error: %v", commitErr)
		}
	}
}

// handle runs the handler, retrying with exponential backoff. The message stays
// uncommitted when every attempt fails so a restarted consumer sees it again.
func (p *Processor) handle(ctx context.Context, event Message) (int, error) {
	delay := p.retryDelay
	var err error
	for attempt := 1; ; attempt++ {
		if err = p.handler.Handle(ctx, event); err == nil {
			return attempt, nil
		}
		if attempt == p.handlerAttempts {
			return attempt, err
		}
		if sleepErr := sleepCtx(ctx, delay); sleepErr != nil {
			return attempt, sleepErr
		}
		delay *= 2
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func decodeMessage(msg kafka.Message) (Message, error) {
	if len(msg.Value) < 5 {
		return Message{}, fmt.Errorf("%w: %d bytes", errShortFrame, len(msg.Value))
	}
	if msg.Value[0] != 0 {
		return Message{}, fmt.Errorf("%w %d", errMagicByte, msg.Value[0])
	}

	eventType, ok := headerValue(msg, "event_type")
	if !ok || len(eventType) == 0 {
		return Message{}, errNoEventType
	}
	eventID, ok := headerValue(msg, "event_id")
	if !ok || len(eventID) == 0 {
		return Message{}, errNoEventID
	}
	schemaSubject, _ := headerValue(msg, "schema_subject")

	schemaID := int(binary.BigEndian.Uint32(msg.Value[1:5]))
	payload := json.RawMessage(append([]byte(nil), msg.Value[5:]...))

	return Message{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Timestamp:     msg.Time,
		EventType:     string(eventType),
		EventID:       string(eventID),
		Activity:      string(msg.Key),
		SchemaSubject: string(schemaSubject),
		SchemaID:      schemaID,
		Payload:       payload,
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
