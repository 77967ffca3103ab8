package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	commands       *prometheus.CounterVec
	failures       *prometheus.CounterVec
	groups_created prometheus.Counter
	merged_rows    prometheus.Counter
	duration       *prometheus.HistogramVec
}

// A nil registerer creates unregistered metrics.
func newMetrics(r prometheus.Registerer) *metrics {
	return &metrics{
		commands: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "vgroup_commands_total",
			Help: "Total number of commands executed.",
		}, []string{"command"}),
		failures: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "vgroup_command_failures_total",
			Help: "Total number of failed commands.",
		}, []string{"command"}),
		groups_created: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Name: "vgroup_groups_created_total",
			Help: "Total number of groups created by new lineage generations.",
		}),
		merged_rows: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Name: "vgroup_merged_rows_total",
			Help: "Total number of combined rows produced by merge iteration.",
		}),
		duration: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vgroup_command_duration_seconds",
			Help:    "Time taken to execute a command.",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
	}
}
