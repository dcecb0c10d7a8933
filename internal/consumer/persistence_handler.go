package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/roster/internal/persistence"
)

// EventStore appends enrollment events to durable storage.
type EventStore interface {
	Append(ctx context.Context, entry persistence.EventLogEntry) error
}

// PersistenceHandler writes consumed enrollment events into the audit log.
type PersistenceHandler struct {
	store EventStore
}

// NewPersistenceHandler constructs a handler backed by the provided store.
func NewPersistenceHandler(store EventStore) *PersistenceHandler {
	return &PersistenceHandler{store: store}
}

// Handle extracts the participant from the payload and appends the event.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	var body struct {
		Activity      string `json:"activity"`
		ParticipantID string `json:"participant_id"`
	}
	if err := json.Unmarshal(msg.Payload, &body); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}

	activity := body.Activity
	if activity == "" {
		activity = msg.Activity
	}

	return h.store.Append(ctx, persistence.EventLogEntry{
		EventID:       msg.EventID,
		EventType:     msg.EventType,
		Activity:      activity,
		ParticipantID: body.ParticipantID,
		SchemaID:      msg.SchemaID,
		SchemaSubject: msg.SchemaSubject,
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Payload:       msg.Payload,
		OccurredAt:    msg.Timestamp,
	})
}
