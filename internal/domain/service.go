// Package domain defines the activity roster and the enrollment workflows around it.
package domain

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"example.com/roster/internal/events"
	"example.com/roster/internal/observability"
)

// EventPublisher receives enrollment events after the roster has changed.
type EventPublisher interface {
	Publish(ctx context.Context, envelope events.Envelope) error
}

// NoopPublisher discards events.
type NoopPublisher struct{}

// Publish performs no action.
func (NoopPublisher) Publish(context.Context, events.Envelope) error { return nil }

// Service orchestrates roster mutations, event emission and metrics.
type Service struct {
	roster    *Roster
	publisher EventPublisher
	now       func() time.Time

	// writeMu orders each mutation together with its gauge update and event,
	// so both follow the same sequence as the roster itself.
	writeMu sync.Mutex
}

// NewService constructs a Service around an existing roster.
func NewService(roster *Roster, publisher EventPublisher) *Service {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	for _, activity := range roster.ListActivities() {
		observability.SetParticipants(activity.Name, len(activity.Participants))
	}
	return &Service{roster: roster, publisher: publisher, now: time.Now}
}

// ListActivities returns the current roster snapshot.
func (s *Service) ListActivities(ctx context.Context) []Activity {
	return s.roster.ListActivities()
}

// SignUp enrolls participantID in the named activity.
func (s *Service) SignUp(ctx context.Context, activityName, participantID string) (Enrollment, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	enrollment, err := s.roster.Enroll(activityName, participantID)
	observability.RecordOperation("enroll", outcomeFor(err))
	if err != nil {
		return Enrollment{}, err
	}
	s.afterChange(ctx, enrollment)
	return enrollment, nil
}

// Unregister withdraws participantID from the named activity.
func (s *Service) Unregister(ctx context.Context, activityName, participantID string) (Enrollment, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	enrollment, err := s.roster.Withdraw(activityName, participantID)
	observability.RecordOperation("withdraw", outcomeFor(err))
	if err != nil {
		return Enrollment{}, err
	}
	s.afterChange(ctx, enrollment)
	return enrollment, nil
}

func (s *Service) afterChange(ctx context.Context, enrollment Enrollment) {
	now := s.now().UTC()
	observability.SetParticipants(enrollment.Activity, enrollment.Participants)
	observability.RecordRosterChange(now)

	envelope, err := enrollmentEnvelope(enrollment, now)
	if err != nil {
		log.Printf("enrollment event encode failed (activity=%s): %v", enrollment.Activity, err)
		return
	}
	// The roster change already happened; a publish failure must not undo it.
	if err := s.publisher.Publish(ctx, envelope); err != nil {
		log.Printf("enrollment event publish failed (event_id=%s): %v", envelope.EventID, err)
	}
}

func enrollmentEnvelope(e Enrollment, now time.Time) (events.Envelope, error) {
	if e.Action == ActionWithdrawn {
		return events.NewEnvelope(events.TypeParticipantWithdrawn, e.Activity, now, func(id string) any {
			return events.ParticipantWithdrawn{
				EventID:       id,
				Activity:      e.Activity,
				ParticipantID: e.ParticipantID,
				Participants:  e.Participants,
				OccurredAt:    now,
			}
		})
	}
	return events.NewEnvelope(events.TypeParticipantEnrolled, e.Activity, now, func(id string) any {
		return events.ParticipantEnrolled{
			EventID:       id,
			Activity:      e.Activity,
			ParticipantID: e.ParticipantID,
			Participants:  e.Participants,
			OccurredAt:    now,
		}
	})
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.Is(err, ErrActivityNotFound):
		return observability.OutcomeActivityNotFound
	case errors.Is(err, ErrAlreadyEnrolled):
		return observability.OutcomeAlreadyEnrolled
	case errors.Is(err, ErrParticipantNotFound):
		return observability.OutcomeParticipantNotFound
	default:
		return "error"
	}
}
