package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	JobsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "guildsync_jobs_processed_total", Help: "Sync jobs completed successfully"},
	)
	JobsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "guildsync_jobs_failed_total", Help: "Sync job executions that errored"},
	)
	JobsCoalesced = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "guildsync_jobs_coalesced_total", Help: "Pending sync jobs superseded by a newer trigger"},
	)
	JobsDeadLettered = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "guildsync_jobs_dead_lettered_total", Help: "Sync jobs dropped after exhausting retries"},
	)
	EmbedsPosted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "guildsync_embeds_posted_total", Help: "First-time presence messages posted"},
	)
	RemoteDriftRepaired = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "guildsync_remote_drift_repaired_total", Help: "Scheduled events found deleted out-of-band and repaired"},
	)
)

func Register() {
	prometheus.MustRegister(
		JobsProcessed, JobsFailed, JobsCoalesced, JobsDeadLettered,
		EmbedsPosted, RemoteDriftRepaired,
	)
}
