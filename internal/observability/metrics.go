// Package observability holds the Prometheus collectors for roster state.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for enrollment operations.
const (
	OutcomeSuccess             = "success"
	OutcomeActivityNotFound    = "activity_not_found"
	OutcomeAlreadyEnrolled     = "already_enrolled"
	OutcomeParticipantNotFound = "participant_not_found"
)

var (
	operationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster_service",
		Subsystem: "roster",
		Name:      "enrollment_operations_total",
		Help:      "Enroll and withdraw calls grouped by operation and outcome.",
	}, []string{"operation", "outcome"})

	participantsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "roster_service",
		Subsystem: "roster",
		Name:      "participants",
		Help:      "Current number of participants per activity.",
	}, []string{"activity"})

	lastChangeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "roster_service",
		Subsystem: "roster",
		Name:      "last_roster_change_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful enroll or withdraw.",
	})
)

func init() {
	prometheus.MustRegister(operationCounter, participantsGauge, lastChangeGauge)
}

// RecordOperation counts an enroll/withdraw attempt.
func RecordOperation(operation, outcome string) {
	operationCounter.WithLabelValues(operation, outcome).Inc()
}

// SetParticipants publishes the participant count for an activity.
func SetParticipants(activity string, count int) {
	participantsGauge.WithLabelValues(activity).Set(float64(count))
}

// RecordRosterChange updates the last-change watermark.
func RecordRosterChange(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastChangeGauge.Set(float64(ts.Unix()))
}

// OperationCount exposes the current counter value for tests and diagnostics.
func OperationCount(operation, outcome string) prometheus.Counter {
	return operationCounter.WithLabelValues(operation, outcome)
}

// Participants exposes the gauge for an activity.
func Participants(activity string) prometheus.Gauge {
	return participantsGauge.WithLabelValues(activity)
}
