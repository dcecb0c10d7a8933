package persistence

import (
	"encoding/json"
	"time"
)

// EventLogEntry is one enrollment event as stored in the audit log.
type EventLogEntry struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Activity      string          `json:"activity"`
	ParticipantID string          `json:"participant_id"`
	SchemaID      int             `json:"schema_id"`
	SchemaSubject string          `json:"schema_subject"`
	Topic         string          `json:"topic"`
	Partition     int             `json:"partition"`
	Offset        int64           `json:"offset"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
	ReceivedAt    time.Time       `json:"received_at"`
}
