package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	ObligationsGenerated prometheus.Counter
	ObligationsSkipped   prometheus.Counter
	ObligationsCompleted prometheus.Counter
	ObligationsOverdue   prometheus.Counter
	SweepRuns            prometheus.Counter
	JobsEnqueued         prometheus.Counter
	EmailsSent           prometheus.Counter
	EmailsFailed         prometheus.Counter
	DispatchTime         prometheus.Histogram
	ActiveRules          prometheus.Gauge
}

// New creates new Prometheus metrics
func New() *Metrics {
	return &Metrics{
		ObligationsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "logistiko_obligations_generated_total",
			Help: "Total number of obligations created by month generation",
		}),
		ObligationsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "logistiko_obligations_skipped_total",
			Help: "Total number of generation attempts skipped on the idempotence key",
		}),
		ObligationsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "logistiko_obligations_completed_total",
			Help: "Total number of obligations completed",
		}),
		ObligationsOverdue: promauto.NewCounter(prometheus.CounterOpts{
			Name: "logistiko_obligations_overdue_total",
			Help: "Total number of obligations moved to overdue by the sweep",
		}),
		SweepRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "logistiko_sweep_runs_total",
			Help: "Total number of background sweep cycles",
		}),
		JobsEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "logistiko_email_jobs_enqueued_total",
			Help: "Total number of notification jobs enqueued by rule evaluation",
		}),
		EmailsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "logistiko_emails_sent_total",
			Help: "Total number of successfully sent emails",
		}),
		EmailsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "logistiko_emails_failed_total",
			Help: "Total number of failed email sends",
		}),
		DispatchTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "logistiko_dispatch_duration_seconds",
			Help:    "Time spent draining and sending due notification jobs",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveRules: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "logistiko_active_automation_rules",
			Help: "Number of currently active email automation rules",
		}),
	}
}
