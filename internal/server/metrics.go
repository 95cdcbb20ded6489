package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	syncsTotal            prometheus.Counter
	depositsCreditedTotal prometheus.Counter
	duplicateCallbacks    prometheus.Counter
	withdrawalResolutions *prometheus.CounterVec
	panelFailuresTotal    prometheus.Counter
	pollerRunsTotal       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		syncsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "vpn_ledger",
				Subsystem: "accounts",
				Name:      "syncs_total",
				Help:      "Total account sync requests served.",
			},
		),
		depositsCreditedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "vpn_ledger",
				Subsystem: "deposits",
				Name:      "credited_total",
				Help:      "Total deposits credited to a balance.",
			},
		),
		duplicateCallbacks: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "vpn_ledger",
				Subsystem: "deposits",
				Name:      "duplicate_callbacks_total",
				Help:      "Gateway notifications that matched an already settled transaction.",
			},
		),
		withdrawalResolutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vpn_ledger",
				Subsystem: "withdrawals",
				Name:      "resolutions_total",
				Help:      "Withdrawal resolutions partitioned by outcome.",
			},
			[]string{"outcome"},
		),
		panelFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "vpn_ledger",
				Subsystem: "provisioning",
				Name:      "panel_failures_total",
				Help:      "Failed reconciliation attempts against the provisioning panel.",
			},
		),
		pollerRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vpn_ledger",
				Subsystem: "poller",
				Name:      "runs_total",
				Help:      "Pending-deposit poller runs partitioned by result.",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) ObserveSync() {
	if m == nil {
		return
	}
	m.syncsTotal.Inc()
}

func (m *Metrics) ObserveReconcile(credited bool) {
	if m == nil {
		return
	}
	if credited {
		m.depositsCreditedTotal.Inc()
	} else {
		m.duplicateCallbacks.Inc()
	}
}

func (m *Metrics) ObserveWithdrawalResolution(outcome string) {
	if m == nil {
		return
	}
	m.withdrawalResolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePanelFailure() {
	if m == nil {
		return
	}
	m.panelFailuresTotal.Inc()
}

func (m *Metrics) ObservePollerRun(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.pollerRunsTotal.WithLabelValues("error").Inc()
		return
	}
	m.pollerRunsTotal.WithLabelValues("success").Inc()
}
