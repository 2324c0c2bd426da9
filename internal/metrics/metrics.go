package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "styletransfer_jobs_submitted_total",
		Help: "Total number of transformation jobs submitted",
	})

	JobsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "styletransfer_jobs_completed_total",
		Help: "Total number of transformation jobs completed successfully",
	})

	JobsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "styletransfer_jobs_failed_total",
		Help: "Total number of transformation jobs that failed",
	})

	JobsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "styletransfer_jobs_rejected_total",
		Help: "Total number of submissions rejected before a job was created",
	})

	ProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "styletransfer_processing_duration_seconds",
		Help:    "Wall-clock time of one engine invocation in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "styletransfer_active_workers",
		Help: "Current number of workers in the transformation pool",
	})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "styletransfer_websocket_clients",
		Help: "Current number of connected websocket clients",
	})
)
