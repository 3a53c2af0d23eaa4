// Package telemetry exposes batch counters in Prometheus format.
//
// The batch is a short-lived process, so metrics are written to a textfile
// (for node_exporter's textfile collector) instead of being served.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the run's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
//
// Metrics:
//   - asmgallery_items_total{status} - resolved items by status
//   - asmgallery_items_cached - items satisfied by earlier runs
//   - asmgallery_remote_calls_total{endpoint,outcome} - remote calls by result
//   - asmgallery_remote_call_duration_seconds{endpoint} - remote call latency
//   - asmgallery_retries_total{endpoint} - retried transient failures
//   - asmgallery_events_dropped - progress events skipped by slow observers
type Metrics struct {
	registry *prometheus.Registry

	Items         *prometheus.CounterVec
	Cached        prometheus.Gauge
	Calls         *prometheus.CounterVec
	CallDuration  *prometheus.HistogramVec
	Retries       *prometheus.CounterVec
	EventsDropped prometheus.Gauge
}

// NewMetrics creates the collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Items: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "asmgallery_items_total",
			Help: "Work items resolved in this run, by status",
		}, []string{"status"}),
		Cached: factory.NewGauge(prometheus.GaugeOpts{
			Name: "asmgallery_items_cached",
			Help: "Work items satisfied by earlier runs",
		}),
		Calls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "asmgallery_remote_calls_total",
			Help: "Remote calls by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "asmgallery_remote_call_duration_seconds",
			Help:    "Latency of remote calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"endpoint"}),
		Retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "asmgallery_retries_total",
			Help: "Transient failures that were retried",
		}, []string{"endpoint"}),
		EventsDropped: factory.NewGauge(prometheus.GaugeOpts{
			Name: "asmgallery_events_dropped",
			Help: "Progress events skipped because an observer was full",
		}),
	}
}

// ObserveItem counts one resolved item.
func (m *Metrics) ObserveItem(status string) {
	if m == nil {
		return
	}
	m.Items.WithLabelValues(status).Inc()
}

// SetCached records the number of cache hits.
func (m *Metrics) SetCached(n int) {
	if m == nil {
		return
	}
	m.Cached.Set(float64(n))
}

// ObserveCall records one remote call attempt.
func (m *Metrics) ObserveCall(endpoint string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Calls.WithLabelValues(endpoint, outcome).Inc()
	m.CallDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveRetry counts one retry.
func (m *Metrics) ObserveRetry(endpoint string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(endpoint).Inc()
}

// SetEventsDropped records the event bus drop counter.
func (m *Metrics) SetEventsDropped(n int64) {
	if m == nil {
		return
	}
	m.EventsDropped.Set(float64(n))
}

// WriteTextfile writes every collector to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
