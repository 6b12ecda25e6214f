// Package metrics exposes Prometheus collectors for the settlement engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the engine-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_engine",
			Subsystem: "transfer",
			Name:      "operations_total",
			Help:      "Total number of orchestrated transfer operations.",
		},
		[]string{"type", "status"},
	)

	debtSettlements = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ledger_engine",
			Subsystem: "debts",
			Name:      "settlements_total",
			Help:      "Total number of cascade debt settlements.",
		},
	)

	contributions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_engine",
			Subsystem: "tontine",
			Name:      "contributions_total",
			Help:      "Total number of tontine contribution validations.",
		},
		[]string{"status"},
	)

	distributions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_engine",
			Subsystem: "tontine",
			Name:      "distributions_total",
			Help:      "Total number of tontine round distributions.",
		},
		[]string{"status"},
	)

	penalties = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_engine",
			Subsystem: "tontine",
			Name:      "penalties_total",
			Help:      "Total number of penalties assessed and paid.",
		},
		[]string{"event"},
	)
)

func init() {
	Registry.MustRegister(transfers, debtSettlements, contributions, distributions, penalties)
}

// RecordTransfer counts one orchestrated operation.
func RecordTransfer(entryType, status string) {
	transfers.WithLabelValues(entryType, status).Inc()
}

// RecordDebtSettlement counts one cascade repayment.
func RecordDebtSettlement() {
	debtSettlements.Inc()
}

// RecordContribution counts one contribution validation attempt.
func RecordContribution(status string) {
	contributions.WithLabelValues(status).Inc()
}

// RecordDistribution counts one round distribution attempt.
func RecordDistribution(status string) {
	distributions.WithLabelValues(status).Inc()
}

// RecordPenalty counts a penalty lifecycle event.
func RecordPenalty(event string) {
	penalties.WithLabelValues(event).Inc()
}

// Handler serves the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
