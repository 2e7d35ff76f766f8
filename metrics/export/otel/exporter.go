package otel

import (
	"context"
	"errors"
	"fmt"

	stayAuth "github.com/MrEthical07/stayAuth"
	"github.com/MrEthical07/stayAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("otel exporter: nil meter")
	ErrNilSource = errors.New("otel exporter: nil metrics source")
)

// Source is what the exporter reads; *stayAuth.Engine satisfies it.
type Source interface {
	MetricsSnapshot() stayAuth.MetricsSnapshot
	AuditDropped() uint64
}

type counterInstrument struct {
	id  stayAuth.MetricID
	ins metric.Int64ObservableCounter
}

// Exporter keeps the callback registration alive until Close.
type Exporter struct {
	source       Source
	counters     []counterInstrument
	buckets      []metric.Int64ObservableGauge
	count        metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
	registration metric.Registration
}

// Register creates every instrument on meter and a callback that observes
// source on each collection.
func Register(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.Counters {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterInstrument{id: def.ID, ins: ins})
		observables = append(observables, ins)
	}

	latency := internaldefs.ValidateLatency
	for _, bound := range internaldefs.Bounds {
		name := latency.Name + "_bucket_le_" + bound.Suffix
		ins, err := meter.Int64ObservableGauge(name,
			metric.WithDescription("Cumulative count of validations at or under "+bound.Label+"s."),
			metric.WithUnit("{validation}"),
		)
		if err != nil {
			return nil, fmt.Errorf("gauge %s: %w", name, err)
		}
		e.buckets = append(e.buckets, ins)
		observables = append(observables, ins)
	}

	count, err := meter.Int64ObservableGauge(latency.Name+"_count", metric.WithDescription(latency.Help))
	if err != nil {
		return nil, fmt.Errorf("gauge %s_count: %w", latency.Name, err)
	}
	e.count = count
	observables = append(observables, count)

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.ins, int64(snap.Counters[c.id]))
	}

	if raw, ok := snap.Histograms[internaldefs.ValidateLatency.ID]; ok {
		cumulative := internaldefs.Cumulative(raw)
		for i, ins := range e.buckets {
			o.ObserveInt64(ins, int64(cumulative[i]))
		}
		o.ObserveInt64(e.count, int64(cumulative[len(cumulative)-1]))
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback. Instruments stay on the meter but stop
// reporting.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
