package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	applyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gsa_filter_apply_total",
			Help: "Filter apply transitions by outcome (applied, superseded, cancelled).",
		},
		[]string{"outcome"},
	)
	dataLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gsa_data_load_total",
			Help: "Data document loads by outcome (ok, error).",
		},
		[]string{"outcome"},
	)
	exportTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gsa_csv_export_total",
		Help: "CSV exports served.",
	})
	persistErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gsa_persist_errors_total",
			Help: "Best-effort persistence failures by operation (read, write, decode).",
		},
		[]string{"op"},
	)
	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gsa_active_sessions",
		Help: "Dashboard sessions held in memory.",
	})

	registerOnce sync.Once
)

// Register adds the collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(applyTotal, dataLoadTotal, exportTotal, persistErrors, activeSessions)
	})
}

func RecordApply(outcome string) {
	applyTotal.WithLabelValues(outcome).Inc()
}

func RecordDataLoad(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	dataLoadTotal.WithLabelValues(outcome).Inc()
}

func RecordExport() {
	exportTotal.Inc()
}

func RecordPersistError(op string) {
	persistErrors.WithLabelValues(op).Inc()
}

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
