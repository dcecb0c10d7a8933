package outbox

import (
	"fmt"

	"example.com/roster/internal/events"
)

const participantEnrolledSchema = `{
  "type": "object",
  "title": "ParticipantEnrolled",
  "properties": {
    "event_id": {"type": "string"},
    "activity": {"type": "string"},
    "participant_id": {"type": "string"},
    "participants": {"type": "integer", "minimum": 0},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["event_id", "activity", "participant_id", "participants", "occurred_at"],
  "additionalProperties": false
}`

const participantWithdrawnSchema = `{
  "type": "object",
  "title": "ParticipantWithdrawn",
  "properties": {
    "event_id": {"type": "string"},
    "activity": {"type": "string"},
    "participant_id": {"type": "string"},
    "participants": {"type": "integer", "minimum": 0},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["event_id", "activity", "participant_id", "participants", "occurred_at"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps an event type to its record name and JSON schema.
type SchemaCatalogEntry struct {
	Record string
	Schema string
}

// Subject follows the topic-record naming strategy.
func (e SchemaCatalogEntry) Subject(topic string) string {
	return fmt.Sprintf("%s-%s", topic, e.Record)
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeParticipantEnrolled: {
		Record: "ParticipantEnrolled",
		Schema: participantEnrolledSchema,
	},
	events.TypeParticipantWithdrawn: {
		Record: "ParticipantWithdrawn",
		Schema: participantWithdrawnSchema,
	},
}
