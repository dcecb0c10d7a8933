package domain

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Roster holds every activity keyed by name. The set of activities is fixed at
// construction; only participant lists change afterwards.
//
// A single RWMutex guards the whole mapping so Enroll and Withdraw run their
// membership check and list mutation as one step.
type Roster struct {
	mu         sync.RWMutex
	order      []string
	activities map[string]*Activity
}

// NewRoster builds a roster from seed activities, keeping their order for listing.
func NewRoster(seed []Activity) (*Roster, error) {
	if err := validateSeed(seed); err != nil {
		return nil, err
	}

	r := &Roster{
		order:      make([]string, 0, len(seed)),
		activities: make(map[string]*Activity, len(seed)),
	}
	for _, activity := range seed {
		copied := activity.clone()
		r.order = append(r.order, copied.Name)
		r.activities[copied.Name] = &copied
	}
	return r, nil
}

func validateSeed(seed []Activity) error {
	var errs []error
	seen := make(map[string]struct{}, len(seed))
	for i, activity := range seed {
		if strings.TrimSpace(activity.Name) == "" {
			errs = append(errs, fmt.Errorf("seed activity %d: name is required", i))
			continue
		}
		if _, dup := seen[activity.Name]; dup {
			errs = append(errs, fmt.Errorf("seed activity %q: duplicate name", activity.Name))
		}
		seen[activity.Name] = struct{}{}
		if activity.MaxParticipants <= 0 {
			errs = append(errs, fmt.Errorf("seed activity %q: max_participants must be > 0", activity.Name))
		}
		participants := make(map[string]struct{}, len(activity.Participants))
		for _, p := range activity.Participants {
			if _, dup := participants[p]; dup {
				errs = append(errs, fmt.Errorf("seed activity %q: duplicate participant %q", activity.Name, p))
			}
			participants[p] = struct{}{}
		}
	}
	return errors.Join(errs...)
}

// ListActivities returns a copy of every activity in seed order.
func (r *Roster) ListActivities() []Activity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Activity, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.activities[name].clone())
	}
	return out
}

// Get returns a copy of the named activity.
func (r *Roster) Get(name string) (Activity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	activity, ok := r.activities[name]
	if !ok {
		return Activity{}, false
	}
	return activity.clone(), true
}

// Len reports how many activities the roster holds.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Enroll appends participantID to the named activity.
func (r *Roster) Enroll(activityName, participantID string) (Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	activity, ok := r.activities[activityName]
	if !ok {
		return Enrollment{}, ErrActivityNotFound
	}
	if indexOf(activity.Participants, participantID) >= 0 {
		return Enrollment{}, ErrAlreadyEnrolled
	}

	activity.Participants = append(activity.Participants, participantID)
	return Enrollment{
		Activity:      activityName,
		ParticipantID: participantID,
		Action:        ActionSignedUp,
		Participants:  len(activity.Participants),
	}, nil
}

// Withdraw removes participantID from the named activity.
func (r *Roster) Withdraw(activityName, participantID string) (Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	activity, ok := r.activities[activityName]
	if !ok {
		return Enrollment{}, ErrActivityNotFound
	}
	idx := indexOf(activity.Participants, participantID)
	if idx < 0 {
		return Enrollment{}, ErrParticipantNotFound
	}

	// Callers only ever hold clones of this slice.
	activity.Participants = append(activity.Participants[:idx], activity.Participants[idx+1:]...)
	return Enrollment{
		Activity:      activityName,
		ParticipantID: participantID,
		Action:        ActionWithdrawn,
		Participants:  len(activity.Participants),
	}, nil
}
