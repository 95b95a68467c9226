// Package metrics exposes task counts to Prometheus. Gauges are read from
// the store at scrape time rather than maintained incrementally, so they
// can never drift from the database.
package metrics

import (
	"context"
	"net/http"

	"github.com/nimbusworks/taskhive/internal/tasks/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	store store.Store

	total      *prometheus.Desc
	pending    *prometheus.Desc
	inProgress *prometheus.Desc
	completed  *prometheus.Desc
}

func NewCollector(s store.Store) *Collector {
	return &Collector{
		store: s,
		total: prometheus.NewDesc(
			"taskhive_tasks_total",
			"Total number of tasks.",
			nil, nil,
		),
		pending: prometheus.NewDesc(
			"taskhive_tasks_pending",
			"Number of tasks in the pending state.",
			nil, nil,
		),
		inProgress: prometheus.NewDesc(
			"taskhive_tasks_in_progress",
			"Number of tasks in the in_progress state.",
			nil, nil,
		),
		completed: prometheus.NewDesc(
			"taskhive_tasks_completed",
			"Number of tasks in the completed state.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.pending
	ch <- c.inProgress
	ch <- c.completed
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats, err := c.store.Tasks().Stats(context.Background())
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.total, err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(stats.Total))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(stats.Pending))
	ch <- prometheus.MustNewConstMetric(c.inProgress, prometheus.GaugeValue, float64(stats.InProgress))
	ch <- prometheus.MustNewConstMetric(c.completed, prometheus.GaugeValue, float64(stats.Completed))
}

// Handler returns a /metrics handler over a registry holding the task
// collector plus the standard Go runtime and process collectors.
func Handler(s store.Store) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(s),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
