package domain

import "errors"

var (
	// ErrActivityNotFound is returned when the referenced activity is not part of the roster.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrAlreadyEnrolled is returned when the participant is already signed up for the activity.
	ErrAlreadyEnrolled = errors.New("student already signed up for this activity")
	// ErrParticipantNotFound is returned when a withdrawal targets someone not on the activity's list.
	ErrParticipantNotFound = errors.New("participant not found in this activity")
)

// Activity is an extracurricular activity and its current participant list.
type Activity struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	Schedule        string   `yaml:"schedule"`
	MaxParticipants int      `yaml:"max_participants"`
	Participants    []string `yaml:"participants"`
}

// HasParticipant reports whether participantID is on the activity's list.
func (a Activity) HasParticipant(participantID string) bool {
	return indexOf(a.Participants, participantID) >= 0
}

func (a Activity) clone() Activity {
	out := a
	out.Participants = append(make([]string, 0, len(a.Participants)), a.Participants...)
	return out
}

// EnrollmentAction distinguishes the two roster mutations.
type EnrollmentAction string

const (
	ActionSignedUp  EnrollmentAction = "signed_up"
	ActionWithdrawn EnrollmentAction = "withdrawn"
)

// Enrollment confirms a successful Enroll or Withdraw.
type Enrollment struct {
	Activity      string
	ParticipantID string
	Action        EnrollmentAction
	// Participants is the list length after the mutation.
	Participants int
}

// Message renders the confirmation shown to callers.
func (e Enrollment) Message() string {
	if e.Action == ActionWithdrawn {
		return "Unregistered " + e.ParticipantID + " from " + e.Activity
	}
	return "Signed up " + e.ParticipantID + " for " + e.Activity
}

func indexOf(list []string, value string) int {
	for i, item := range list {
		if item == value {
			return i
		}
	}
	return -1
}
