// Package events defines the enrollment event payloads emitted by the roster service.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published to Kafka.
const (
	TypeParticipantEnrolled  = "enrollment.signed_up"
	TypeParticipantWithdrawn = "enrollment.withdrawn"
)

// ParticipantEnrolled is emitted after a student signs up for an activity.
type ParticipantEnrolled struct {
	EventID       string    `json:"event_id"`
	Activity      string    `json:"activity"`
	ParticipantID string    `json:"participant_id"`
	Participants  int       `json:"participants"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ParticipantWithdrawn is emitted after a student leaves an activity.
type ParticipantWithdrawn struct {
	EventID       string    `json:"event_id"`
	Activity      string    `json:"activity"`
	ParticipantID string    `json:"participant_id"`
	Participants  int       `json:"participants"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Envelope carries an encoded payload together with its routing metadata.
type Envelope struct {
	EventID    string
	EventType  string
	Activity   string
	OccurredAt time.Time
	Payload    json.RawMessage
}

// NewEnvelope marshals payload and stamps a fresh event id.
func NewEnvelope(eventType, activity string, occurredAt time.Time, build func(eventID string) any) (Envelope, error) {
	id := uuid.NewString()
	body, err := json.Marshal(build(id))
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:    id,
		EventType:  eventType,
		Activity:   activity,
		OccurredAt: occurredAt.UTC(),
		Payload:    body,
	}, nil
}
