// Package metrics exposes the batch run's counters through Prometheus so a
// long run can be watched without stopping it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the Prometheus collectors for one engine process.
type Registry struct {
	registry *prometheus.Registry

	SignalsTotal   *prometheus.CounterVec
	CellsComputed  *prometheus.CounterVec
	CellsDropped   *prometheus.CounterVec
	RowsLoaded     *prometheus.CounterVec
	SignalDuration *prometheus.HistogramVec
}

// NewRegistry creates and registers all engine collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		SignalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crosssignals_signals_total",
				Help: "Signals finished, by result",
			},
			[]string{"result"},
		),
		CellsComputed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crosssignals_cells_computed_total",
				Help: "Non-missing (entity, period) cells written, by signal",
			},
			[]string{"signal"},
		),
		CellsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crosssignals_cells_dropped_total",
				Help: "Cells dropped as missing at output, by signal",
			},
			[]string{"signal"},
		),
		RowsLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crosssignals_rows_loaded_total",
				Help: "Panel rows loaded, by source table",
			},
			[]string{"table"},
		),
		SignalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crosssignals_signal_duration_seconds",
				Help:    "Wall time per signal computation",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1200},
			},
			[]string{"signal"},
		),
	}

	r.registry.MustRegister(
		r.SignalsTotal,
		r.CellsComputed,
		r.CellsDropped,
		r.RowsLoaded,
		r.SignalDuration,
	)
	return r
}

// Handler serves the registry in Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
