package offchain

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts the worker protocol's progress. All failures are local
// and best-effort, so counters are the only visibility into dropped work.
type Metrics struct {
	Scheduled prometheus.Counter
	Epochs    prometheus.Counter
	Submitted prometheus.Counter
	Dropped   prometheus.Counter
	InFlight  prometheus.Gauge
}

// NewMetrics builds the worker metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Scheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kittychain_offchain_scheduled_total",
			Help: "Pending-work records written by transition handlers.",
		}),
		Epochs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kittychain_offchain_epochs_total",
			Help: "Worker epochs that found a pending-work record.",
		}),
		Submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kittychain_offchain_callbacks_submitted_total",
			Help: "update_kitty callbacks accepted by the mempool.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kittychain_offchain_callbacks_dropped_total",
			Help: "Callbacks abandoned after a failed or cancelled attempt.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kittychain_offchain_jobs_inflight",
			Help: "Worker jobs currently in their simulated computation.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Scheduled, m.Epochs, m.Submitted, m.Dropped, m.InFlight)
	}
	return m
}
