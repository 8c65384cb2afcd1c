package events

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "events",
		Name:      "delivered_total",
		Help:      "Number of roster change events published to Kafka.",
	})

	failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "events",
		Name:      "failed_total",
		Help:      "Number of roster change events that failed to publish.",
	})

	droppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Number of roster change events dropped because the dispatch queue was full.",
	})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "signup_service",
		Subsystem: "events",
		Name:      "batch_duration_seconds",
		Help:      "Time spent delivering a batch of events.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, droppedCounter, batchDuration)
}
