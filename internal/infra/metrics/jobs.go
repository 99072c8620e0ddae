package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobTransitionsTotal, jobRetriesTotal, healthVerdictsTotal, pollLatencyMs) }

var jobTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "processing_job_transitions_total",
		Help: "Job status transitions, labeled by target status.",
	},
	[]string{"status"},
)

var jobRetriesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "processing_job_retries_total",
		Help: "Successor jobs created through retry.",
	},
)

var healthVerdictsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "worker_health_verdicts_total",
		Help: "Normalized liveness verdicts, labeled by classification.",
	},
	[]string{"verdict"}, // 'alive', 'success', 'worker_died', 'never_ran', 'timeout', 'remote_failure', 'cancelled'
)

var pollLatencyMs = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "status_poll_latency_ms",
		Help:    "Remote status poll round-trip latency in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
	},
)

func IncJobTransition(status string) {
	jobTransitionsTotal.WithLabelValues(norm(status)).Inc()
}

func IncJobRetry() { jobRetriesTotal.Inc() }

func IncHealthVerdict(verdict string) {
	healthVerdictsTotal.WithLabelValues(norm(verdict)).Inc()
}

func ObservePollLatency(ms float64) { pollLatencyMs.Observe(ms) }
