package zosmf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors live in the default registry. Serving or pushing them is left to
// the program embedding this package.
var (
	// RequestsTotal counts completed HTTP exchanges by method and status code.
	// Transport failures are recorded with status "0".
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zosmf_requests_total",
			Help: "Total number of z/OSMF requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration tracks round-trip latency per method.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zosmf_request_duration_seconds",
			Help:    "z/OSMF request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// ErrorsTotal counts classified failures by kind.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zosmf_errors_total",
			Help: "Total number of classified z/OSMF errors",
		},
		[]string{"kind"},
	)

	// ReauthTotal counts re-authentications triggered by a rejected session.
	ReauthTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zosmf_reauth_total",
			Help: "Total number of session re-authentications",
		},
	)

	// JobPollsTotal counts job status requests issued by pollers.
	JobPollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zosmf_job_polls_total",
			Help: "Total number of job status polls",
		},
	)
)

func recordError(err *Error) {
	if err != nil {
		ErrorsTotal.WithLabelValues(string(err.Kind)).Inc()
	}
}
