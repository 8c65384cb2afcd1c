// Package observability holds the prometheus collectors shared across the service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// Operations recorded by RecordSignupRequest.
const (
	OperationSignup     = "signup"
	OperationUnregister = "unregister"
)

// Outcomes recorded by RecordSignupRequest.
const (
	OutcomeSuccess           = "success"
	OutcomeNotFound          = "not_found"
	OutcomeAlreadyRegistered = "already_registered"
	OutcomeActivityFull      = "activity_full"
	OutcomeError             = "error"
)

var (
	signupRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "directory",
		Name:      "requests_total",
		Help:      "Roster mutation requests, labeled by operation and outcome.",
	}, []string{"operation", "outcome"})

	rosterSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "signup_service",
		Subsystem: "directory",
		Name:      "participants",
		Help:      "Current number of participants per activity.",
	}, []string{"activity"})
)

func init() {
	prometheus.MustRegister(signupRequests, rosterSize)
}

// RecordSignupRequest counts a signup or unregister attempt.
func RecordSignupRequest(operation, outcome string) {
	signupRequests.WithLabelValues(operation, outcome).Inc()
}

// RecordRoster sets the participant gauge for an activity.
func RecordRoster(activity string, participants int) {
	rosterSize.WithLabelValues(activity).Set(float64(participants))
}
