// Package prometheus exposes engine counters through client_golang. An
// [Exporter] is a collector that reads a fresh engine snapshot on every
// scrape; the server mounts [Exporter.Handler] at /metrics.
//
// Each exporter owns a private registry, so nothing lands in the global
// default registry, and collecting never mutates engine state.
package prometheus
