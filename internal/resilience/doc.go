// Package resilience provides fault tolerance patterns for the exporter.
//
// The only subpackage is circuitbreaker, which shields the Mailman database
// from repeated connection attempts while it is unreachable. There is
// deliberately no retry helper: a failed scrape is surfaced immediately as
// mailman_exporter_up 0, and retrying is the job of the external polling
// cadence.
package resilience
