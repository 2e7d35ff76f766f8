package prometheus

import (
	"net/http"

	stayAuth "github.com/MrEthical07/stayAuth"
	"github.com/MrEthical07/stayAuth/metrics/export/internaldefs"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source is what the exporter reads; *stayAuth.Engine satisfies it.
type Source interface {
	MetricsSnapshot() stayAuth.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter implements prom.Collector over a Source.
type Exporter struct {
	source   Source
	counters []*prom.Desc // aligned with internaldefs.Counters
	latency  *prom.Desc
	dropped  *prom.Desc
	registry *prom.Registry
}

var _ prom.Collector = (*Exporter)(nil)

// New registers the exporter and any extra collectors, such as the Go
// runtime collector, on a private registry.
func New(source Source, extra ...prom.Collector) *Exporter {
	e := &Exporter{
		source:   source,
		counters: make([]*prom.Desc, len(internaldefs.Counters)),
		latency: prom.NewDesc(internaldefs.ValidateLatency.Name,
			internaldefs.ValidateLatency.Help, nil, nil),
		dropped: prom.NewDesc(internaldefs.AuditDroppedName,
			internaldefs.AuditDroppedHelp, nil, nil),
		registry: prom.NewRegistry(),
	}
	for i, def := range internaldefs.Counters {
		e.counters[i] = prom.NewDesc(def.Name, def.Help, nil, nil)
	}
	e.registry.MustRegister(e)
	e.registry.MustRegister(extra...)
	return e
}

// Handler serves the registry. Disabled engine metrics yield no stayauth
// series.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Gatherer returns the private registry for callers that merge it with
// their own.
func (e *Exporter) Gatherer() prom.Gatherer {
	return e.registry
}

func (e *Exporter) Describe(ch chan<- *prom.Desc) {
	for _, d := range e.counters {
		ch <- d
	}
	ch <- e.latency
	ch <- e.dropped
}

func (e *Exporter) Collect(ch chan<- prom.Metric) {
	if e.source == nil {
		return
	}
	snap := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return
	}

	for i, def := range internaldefs.Counters {
		ch <- prom.MustNewConstMetric(e.counters[i], prom.CounterValue, float64(snap.Counters[def.ID]))
	}

	if raw, ok := snap.Histograms[internaldefs.ValidateLatency.ID]; ok {
		cumulative := internaldefs.Cumulative(raw)
		last := len(internaldefs.Bounds) - 1
		buckets := make(map[float64]uint64, last)
		for i, bound := range internaldefs.Bounds[:last] {
			buckets[bound.Upper] = cumulative[i]
		}
		// The engine keeps bucket counts only, so the sum stays 0.
		ch <- prom.MustNewConstHistogram(e.latency, cumulative[last], 0, buckets)
	}

	ch <- prom.MustNewConstMetric(e.dropped, prom.CounterValue, float64(dropped))
}
