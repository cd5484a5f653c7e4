// Package metrics provides Prometheus metrics for the scraper.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "juicer"

// Metrics is safe to use as a nil pointer, in which case nothing is recorded.
type Metrics struct {
	// CyclesTotal counts cycles by how they ended.
	CyclesTotal *prometheus.CounterVec

	// CycleDuration measures a whole cycle, sleep excluded.
	CycleDuration prometheus.Histogram

	// RenderDuration measures successful and failed renders alike.
	RenderDuration prometheus.Histogram

	// HeadlinesTotal counts stored headlines by what happened to them.
	HeadlinesTotal *prometheus.CounterVec
}

// New registers the metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		CyclesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Total number of scrape cycles by outcome",
			},
			[]string{"outcome"},
		),
		CycleDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of scrape cycles in seconds",
				Buckets:   []float64{5, 10, 15, 20, 30, 45, 60, 90, 120, 180},
			},
		),
		RenderDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_duration_seconds",
				Help:      "Duration of page renders in seconds",
				Buckets:   []float64{5, 10, 15, 20, 30, 45, 60, 90, 120, 180},
			},
		),
		HeadlinesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "headlines_total",
				Help:      "Total number of headlines written by result",
			},
			[]string{"result"},
		),
	}
}

// RecordCycle records how a cycle ended and how long it took.
func (m *Metrics) RecordCycle(outcome string, d time.Duration) {
	if m == nil {
		return
	}

	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordRender(d time.Duration) {
	if m == nil {
		return
	}

	m.RenderDuration.Observe(d.Seconds())
}

// RecordHeadlines adds the inserted and updated counts of a cycle.
func (m *Metrics) RecordHeadlines(inserted, updated int) {
	if m == nil {
		return
	}

	m.HeadlinesTotal.WithLabelValues("inserted").Add(float64(inserted))
	m.HeadlinesTotal.WithLabelValues("updated").Add(float64(updated))
}
