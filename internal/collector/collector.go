// Package collector implements the scrape engine of the exporter: a fixed
// catalog of SQL queries run inside one read-only transaction per scrape,
// mapped to gauge families and exposed through a prometheus.Collector.
package collector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"mailman-exporter/internal/resilience/circuitbreaker"
)

var upDesc = prometheus.NewDesc(upName, upHelp, nil, nil)

// Collector is the boundary object registered with the Prometheus registry.
// On each pull it delegates to the Scraper and forwards the produced families
// verbatim; any failure is logged and collapsed into a single
// mailman_exporter_up 0 sample so the exposition layer always gets a
// well-formed metric set.
type Collector struct {
	scraper *Scraper
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// New creates a collector around the given scraper. breaker may be nil to
// scrape without circuit breaker protection.
func New(scraper *Scraper, breaker *circuitbreaker.CircuitBreaker, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{scraper: scraper, breaker: breaker, logger: logger}
}

// Describe intentionally sends nothing, making this an unchecked collector:
// the exposed metric set depends on the scrape outcome.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {}

// Collect runs one scrape and streams the result to the registry.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	families, err := c.scrape(context.Background())
	if err != nil {
		c.logger.Error("scrape failed", slog.Any("error", err))
		ch <- prometheus.MustNewConstMetric(upDesc, prometheus.GaugeValue, 0)
		return
	}
	for _, fam := range families {
		desc := prometheus.NewDesc(fam.Name, fam.Help, fam.Labels, nil)
		for _, s := range fam.Samples {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, s.Value, s.Labels...)
		}
	}
}

func (c *Collector) scrape(ctx context.Context) (families []Family, err error) {
	defer func() {
		if r := recover(); r != nil {
			families = nil
			err = &scrapePanicError{value: r}
		}
	}()

	if c.breaker == nil {
		return c.scraper.Scrape(ctx)
	}
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.scraper.Scrape(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Family), nil
}

type scrapePanicError struct {
	value any
}

func (e *scrapePanicError) Error() string {
	return fmt.Sprintf("scrape panicked: %v", e.value)
}
