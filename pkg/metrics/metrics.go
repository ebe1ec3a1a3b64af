package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Loads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docform_loads_total",
			Help: "Form loads by doctype, mode and result",
		},
		[]string{"doctype", "mode", "result"},
	)
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docform_submissions_total",
			Help: "Create, update and delete submissions by result",
		},
		[]string{"doctype", "op", "result"},
	)
	PermissionDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docform_permission_denials_total",
			Help: "Operations blocked by the permission check",
		},
		[]string{"doctype", "action"},
	)
	ConditionErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docform_condition_errors_total",
			Help: "depends_on evaluations that failed and hid their field",
		},
	)
	ValidationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docform_validation_errors_total",
			Help: "Rejected mutations and saves by validator",
		},
		[]string{"validator"},
	)
	ChildSchemaFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docform_child_schema_failures_total",
			Help: "Child table schemas that could not be resolved",
		},
		[]string{"doctype"},
	)
	ProgramCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docform_condition_cache_hits_total",
			Help: "Parsed depends_on programs served from cache",
		},
	)
	ProgramCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docform_condition_cache_misses_total",
			Help: "depends_on expressions compiled on demand",
		},
	)
	TransportLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docform_transport_seconds",
			Help:    "Latency of transport calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		Loads,
		Submissions,
		PermissionDenials,
		ConditionErrors,
		ValidationErrors,
		ChildSchemaFailures,
		ProgramCacheHits,
		ProgramCacheMisses,
		TransportLatency,
	)
}

// ObserveTransport records the latency of a transport call started at start.
func ObserveTransport(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	TransportLatency.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

// Result maps an error onto the "ok"/"error" label used by the counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
