package db

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	connectionsOpenDesc = prometheus.NewDesc(
		"mailman_exporter_db_connections_open",
		"Open connections in the exporter's database pool",
		nil, nil,
	)
	connectionsInUseDesc = prometheus.NewDesc(
		"mailman_exporter_db_connections_in_use",
		"Database pool connections currently in use",
		nil, nil,
	)
	connectionsIdleDesc = prometheus.NewDesc(
		"mailman_exporter_db_connections_idle",
		"Idle connections in the exporter's database pool",
		nil, nil,
	)
)

// StatsCollector reports connection pool statistics for the exporter itself.
// It reads sql.DB.Stats on each pull, so it needs no cross-scrape state.
type StatsCollector struct {
	pool *sql.DB
}

// NewStatsCollector creates a pool stats collector for the given pool.
func NewStatsCollector(pool *sql.DB) *StatsCollector {
	return &StatsCollector{pool: pool}
}

// Describe sends the descriptors for the connection pool metrics.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- connectionsOpenDesc
	ch <- connectionsInUseDesc
	ch <- connectionsIdleDesc
}

// Collect reads the current pool stats and sends them as gauges.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.pool == nil {
		return
	}
	stats := c.pool.Stats()

	ch <- prometheus.MustNewConstMetric(connectionsOpenDesc, prometheus.GaugeValue, float64(stats.OpenConnections))
	ch <- prometheus.MustNewConstMetric(connectionsInUseDesc, prometheus.GaugeValue, float64(stats.InUse))
	ch <- prometheus.MustNewConstMetric(connectionsIdleDesc, prometheus.GaugeValue, float64(stats.Idle))
}
