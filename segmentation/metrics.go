// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package segmentation

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes reported by Metrics.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeError   = "error"
)

// Metrics holds the Prometheus collectors of the segmentation server.
type Metrics struct {
	registry *prometheus.Registry

	Runs        *prometheus.CounterVec
	RunDuration prometheus.Histogram
	Records     prometheus.Counter
	Merges      prometheus.Counter
}

// NewMetrics creates the collectors under namespace on a private registry.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "segmentation_runs_total",
				Help:      "Total number of segmentation runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "segmentation_duration_seconds",
				Help:      "Segmentation duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
			},
		),
		Records: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "segmentation_records_total",
				Help:      "Total number of records segmented",
			},
		),
		Merges: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "segmentation_merges_total",
				Help:      "Total number of cluster merges performed",
			},
		),
	}

	m.registry.MustRegister(m.Runs, m.RunDuration, m.Records, m.Merges)

	return m
}

// Observe records the outcome of a Segment call.
func (m *Metrics) Observe(res *Result, err error) {
	outcome := OutcomeOK

	switch {
	case res != nil && res.Disconnected:
		outcome = OutcomePartial
	case err != nil:
		outcome = OutcomeError
	}

	m.Runs.WithLabelValues(outcome).Inc()

	if res == nil {
		return
	}

	m.RunDuration.Observe(res.Duration.Seconds())
	m.Records.Add(float64(len(res.Labels)))
	m.Merges.Add(float64(len(res.Merges)))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
