package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ServiceStats provides the metrics collector access to pipeline state.
type ServiceStats interface {
	ActiveWorkspaces() int
	DefaultModelLoaded() bool
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	stats ServiceStats

	workspacesActive   *prometheus.Desc
	defaultModelLoaded *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// stats may be nil (metrics will report 0).
func NewCollector(stats ServiceStats) *Collector {
	return &Collector{
		stats: stats,
		workspacesActive: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "workspaces_active"),
			"Scoped request workspaces currently on disk.",
			nil, nil,
		),
		defaultModelLoaded: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "default_model_loaded"),
			"1 if the shared default model has been initialized.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.workspacesActive
	ch <- c.defaultModelLoaded
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var active, loaded float64
	if c.stats != nil {
		active = float64(c.stats.ActiveWorkspaces())
		if c.stats.DefaultModelLoaded() {
			loaded = 1
		}
	}
	ch <- prometheus.MustNewConstMetric(c.workspacesActive, prometheus.GaugeValue, active)
	ch <- prometheus.MustNewConstMetric(c.defaultModelLoaded, prometheus.GaugeValue, loaded)
}
