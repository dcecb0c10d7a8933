package consumer

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Rejection reasons for records the event log cannot accept.
const (
	rejectShortFrame     = "short_frame"
	rejectMagicByte      = "magic_byte"
	rejectNoEventType    = "missing_event_type"
	rejectNoEventID      = "missing_event_id"
	rejectUnknownFailure = "other"
)

var (
	errShortFrame  = errors.New("frame shorter than wire header")
	errMagicByte   = errors.New("unexpected magic byte")
	errNoEventType = errors.New("missing event_type header")
	errNoEventID   = errors.New("missing event_id header")
)

var (
	storedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster_service",
		Subsystem: "event_log",
		Name:      "events_stored_total",
		Help:      "Enrollment events appended to the event log, by event type.",
	}, []string{"event_type"})

	storeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster_service",
		Subsystem: "event_log",
		Name:      "store_failures_total",
		Help:      "Enrollment events left uncommitted after every store attempt failed.",
	}, []string{"event_type"})

	rejectedRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster_service",
		Subsystem: "event_log",
		Name:      "rejected_records_total",
		Help:      "Kafka records skipped because they are not well-formed enrollment events.",
	}, []string{"reason"})

	storeAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "roster_service",
		Subsystem: "event_log",
		Name:      "store_attempts",
		Help:      "Attempts needed to store one enrollment event.",
		Buckets:   prometheus.LinearBuckets(1, 1, 5),
	})

	enrollmentDelay = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "roster_service",
		Subsystem: "event_log",
		Name:      "enrollment_to_store_seconds",
		Help:      "Delay between a roster change and its event reaching the event log.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(storedEvents, storeFailures, rejectedRecords, storeAttempts, enrollmentDelay)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, errShortFrame):
		return rejectShortFrame
	case errors.Is(err, errMagicByte):
		return rejectMagicByte
	case errors.Is(err, errNoEventType):
		return rejectNoEventType
	case errors.Is(err, errNoEventID):
		return rejectNoEventID
	default:
		return rejectUnknownFailure
	}
}

func recordRejected(err error) {
	rejectedRecords.WithLabelValues(rejectReason(err)).Inc()
}

func recordStored(msg Message, attempts int, now time.Time) {
	storedEvents.WithLabelValues(msg.EventType).Inc()
	storeAttempts.Observe(float64(attempts))
	if !msg.Timestamp.IsZero() {
		enrollmentDelay.Observe(now.Sub(msg.Timestamp).Seconds())
	}
}

func recordStoreFailure(msg Message) {
	storeFailures.WithLabelValues(msg.EventType).Inc()
}
