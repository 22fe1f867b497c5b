package stats

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/obs"
)

var (
	incidentsDesc = prometheus.NewDesc(
		"capwa_incidents",
		"Current number of incident reports by dimension and value.",
		[]string{"dimension", "value"}, nil,
	)
	criticalDesc = prometheus.NewDesc(
		"capwa_incidents_critical",
		"Current number of critical or emergency incident reports.",
		nil, nil,
	)
	activeUsersDesc = prometheus.NewDesc(
		"capwa_active_users",
		"Users whose last login falls inside the active window.",
		nil, nil,
	)
)

// Collector exports the dashboard as gauges, recomputed on every scrape.
type Collector struct {
	agg     *Aggregator
	timeout time.Duration
}

func NewCollector(agg *Aggregator) *Collector {
	return &Collector{agg: agg, timeout: 5 * time.Second}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- incidentsDesc
	ch <- criticalDesc
	ch <- activeUsersDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	d, err := c.agg.Compute(ctx)
	if err != nil {
		obs.Warn("stats.collect_failed", map[string]any{"error": err.Error()})
		return
	}
	for t, n := range d.ReportsByType {
		ch <- prometheus.MustNewConstMetric(incidentsDesc, prometheus.GaugeValue, float64(n), "type", string(t))
	}
	for s, n := range d.ReportsByStatus {
		ch <- prometheus.MustNewConstMetric(incidentsDesc, prometheus.GaugeValue, float64(n), "status", string(s))
	}
	for s, n := range d.ReportsBySeverity {
		ch <- prometheus.MustNewConstMetric(incidentsDesc, prometheus.GaugeValue, float64(n), "severity", string(s))
	}
	for r, n := range d.ReportsByRegion {
		ch <- prometheus.MustNewConstMetric(incidentsDesc, prometheus.GaugeValue, float64(n), "region", r)
	}
	ch <- prometheus.MustNewConstMetric(criticalDesc, prometheus.GaugeValue, float64(d.CriticalReports))
	ch <- prometheus.MustNewConstMetric(activeUsersDesc, prometheus.GaugeValue, float64(d.ActiveUsers))
}
