// Package metrics holds the Prometheus collectors for the monitoring
// engine. Collectors are registered on an injected registry so tests
// can run engines in isolation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the engine records into.
type Metrics struct {
	CyclesTotal        *prometheus.CounterVec
	CycleDuration      prometheus.Histogram
	ChecksTotal        *prometheus.CounterVec
	ProjectBalance     *prometheus.GaugeVec
	AlarmsTotal        prometheus.Counter
	NotificationsTotal *prometheus.CounterVec
}

// New creates the collector set and registers it on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "balance_alert_cycles_total",
			Help: "Completed check cycles by trigger source.",
		}, []string{"trigger"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "balance_alert_cycle_duration_seconds",
			Help:    "Wall-clock duration of a full check cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "balance_alert_checks_total",
			Help: "Individual provider checks by outcome.",
		}, []string{"provider", "status"}),
		ProjectBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "balance_alert_project_balance",
			Help: "Last successfully fetched balance per project.",
		}, []string{"project"}),
		AlarmsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "balance_alert_alarms_total",
			Help: "Low-balance alarm transitions.",
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "balance_alert_notifications_total",
			Help: "Notification dispatch outcomes by event kind.",
		}, []string{"kind", "status"}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.ChecksTotal,
		m.ProjectBalance,
		m.AlarmsTotal,
		m.NotificationsTotal,
	)
	return m
}
