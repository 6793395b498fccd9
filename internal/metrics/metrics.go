package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SendAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notiflow_send_attempts_total",
			Help: "Delivery attempts by channel, provider and outcome",
		},
		[]string{"channel", "provider", "outcome"},
	)

	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notiflow_provider_latency_seconds",
			Help:    "Transport round-trip time per provider",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notiflow_jobs_processed_total",
			Help: "Queue jobs finished by lane and result",
		},
		[]string{"lane", "result"},
	)

	JobRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notiflow_job_retries_total",
			Help: "Jobs rescheduled after a failed attempt",
		},
		[]string{"lane"},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notiflow_queue_depth",
			Help: "Jobs currently in each state per lane",
		},
		[]string{"lane", "state"},
	)

	StalledRecovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notiflow_stalled_jobs_recovered_total",
			Help: "Active jobs returned to waiting by the stall sweeper",
		},
	)
)

func Init() {
	prometheus.MustRegister(
		SendAttempts,
		ProviderLatency,
		JobsProcessed,
		JobRetries,
		QueueDepth,
		StalledRecovered,
	)
}
