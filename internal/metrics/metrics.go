// Package metrics provides Prometheus metrics for query parsing and search.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Selection outcomes.
const (
	OutcomeApplied = "applied"
	OutcomeDropped = "dropped"
)

// Metrics holds the deskquery collectors.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
type Metrics struct {
	ParsesTotal       *prometheus.CounterVec
	ParseRetriesTotal *prometheus.CounterVec
	SelectionsTotal   *prometheus.CounterVec

	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ParsesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskquery_parses_total",
				Help: "Total number of query parses",
			},
			[]string{"syntax", "result"},
		),
		ParseRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskquery_parse_retries_total",
				Help: "Total number of parse retries after a syntax error",
			},
			[]string{"syntax"},
		),
		SelectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskquery_selections_total",
				Help: "Total number of selections received by query builders",
			},
			[]string{"kind", "outcome"},
		),
		StoreOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskquery_store_operations_total",
				Help: "Total number of document store operations",
			},
			[]string{"operation", "status"},
		),
		StoreOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deskquery_store_operation_duration_seconds",
				Help:    "Duration of document store operations in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
	}
}

// RecordParse records one parse of the given syntax.
func (m *Metrics) RecordParse(syntax string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.ParsesTotal.WithLabelValues(syntax, result).Inc()
}

// RecordRetry records one best-effort retry.
func (m *Metrics) RecordRetry(syntax string) {
	if m == nil {
		return
	}
	m.ParseRetriesTotal.WithLabelValues(syntax).Inc()
}

// RecordSelection records a selection and whether it reached the query.
func (m *Metrics) RecordSelection(kind string, applied bool) {
	if m == nil {
		return
	}
	outcome := OutcomeApplied
	if !applied {
		outcome = OutcomeDropped
	}
	m.SelectionsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordStoreOperation records a store operation with its status.
func (m *Metrics) RecordStoreOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
	m.StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
