package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "roster_service",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Number of enrollment events successfully published to Kafka.",
	})

	failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "roster_service",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Number of enrollment event delivery attempts that failed.",
	})

	droppedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster_service",
		Subsystem: "outbox",
		Name:      "events_dropped_total",
		Help:      "Number of enrollment events abandoned, labeled by reason.",
	}, []string{"reason"})

	pendingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "roster_service",
		Subsystem: "outbox",
		Name:      "events_pending",
		Help:      "Enrollment events waiting for delivery.",
	})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "roster_service",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent encoding and delivering outbox batches.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})
)

const (
	dropReasonQueueFull   = "queue_full"
	dropReasonMaxAttempts = "max_attempts"
	dropReasonUnknownType = "unknown_event_type"
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, droppedCounter, pendingGauge, batchDuration)
}
