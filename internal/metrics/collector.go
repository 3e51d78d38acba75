// Package metrics exposes engine execution statistics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shiftlane/automation/automation"
)

// SourceFunc returns the current execution stats per organization.
type SourceFunc func() map[string]automation.ExecutionStats

// Collector is a pull-based prometheus.Collector: stats are read from the
// engines at scrape time, never pushed.
type Collector struct {
	source SourceFunc

	executions  *prometheus.Desc
	successRate *prometheus.Desc
	avgDuration *prometheus.Desc
}

// NewCollector creates a collector over the given stats source.
func NewCollector(source SourceFunc) *Collector {
	return &Collector{
		source: source,
		executions: prometheus.NewDesc(
			"automation_executions_total",
			"Rule executions by organization and result.",
			[]string{"organization", "result"}, nil,
		),
		successRate: prometheus.NewDesc(
			"automation_success_rate",
			"Fraction of successful rule executions by organization.",
			[]string{"organization"}, nil,
		),
		avgDuration: prometheus.NewDesc(
			"automation_execution_duration_ms_avg",
			"Mean rule execution duration in milliseconds by organization.",
			[]string{"organization"}, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.executions
	ch <- c.successRate
	ch <- c.avgDuration
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for org, stats := range c.source() {
		ch <- prometheus.MustNewConstMetric(c.executions, prometheus.CounterValue,
			float64(stats.Succeeded), org, string(automation.ResultSuccess))
		ch <- prometheus.MustNewConstMetric(c.executions, prometheus.CounterValue,
			float64(stats.Failed), org, string(automation.ResultFailed))
		ch <- prometheus.MustNewConstMetric(c.executions, prometheus.CounterValue,
			float64(stats.Partial), org, string(automation.ResultPartial))
		ch <- prometheus.MustNewConstMetric(c.successRate, prometheus.GaugeValue,
			stats.SuccessRate, org)
		ch <- prometheus.MustNewConstMetric(c.avgDuration, prometheus.GaugeValue,
			stats.AvgDurationMS, org)
	}
}
