// Package metrics assembles the Prometheus registry served by the exporter.
// Registration happens on an explicit registry passed to the HTTP layer at
// startup, not on the global default, so wiring stays visible in main.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// NewRegistry creates the exporter's registry, pre-populated with the Go
// runtime and process collectors. The scrape collector and the DB pool stats
// collector are registered by the caller.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}
