// Package otel publishes engine counters through an OpenTelemetry meter.
//
// Counters become observable counters; the latency histogram is exposed
// as one observable gauge per cumulative bucket plus a count gauge,
// because the engine only keeps bucket totals. Values are read from the
// engine snapshot inside a single registered callback.
package otel
