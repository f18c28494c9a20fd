package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is what the exporter reads on every collection. *goSession.Client
// implements it.
type Source interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	Gauges() goSession.Gauges
	AuditDropped() uint64
}

// view is one consistent read of a Source taken per collection.
type view struct {
	snap    goSession.MetricsSnapshot
	gauges  goSession.Gauges
	dropped uint64
}

type observation struct {
	instrument metric.Int64Observable
	read       func(view) int64
}

// OTelExporter publishes client metrics through an OpenTelemetry meter.
type OTelExporter struct {
	source       Source
	observations []observation
	registration metric.Registration
}

// NewOTelExporter registers observable instruments on meter that read from client.
func NewOTelExporter(meter metric.Meter, client *goSession.Client) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, client)
}

// NewOTelExporterFromSource registers observable instruments on meter that
// read from source.
func NewOTelExporterFromSource(meter metric.Meter, source Source) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}

	counter := func(name, help string, read func(view) int64) error {
		ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(help))
		if err != nil {
			return fmt.Errorf("create counter %s: %w", name, err)
		}
		e.observations = append(e.observations, observation{instrument: ins, read: read})
		return nil
	}
	gauge := func(name, help string, read func(view) int64) error {
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(help))
		if err != nil {
			return fmt.Errorf("create gauge %s: %w", name, err)
		}
		e.observations = append(e.observations, observation{instrument: ins, read: read})
		return nil
	}

	for _, def := range internaldefs.CounterDefs {
		id := def.ID
		if err := counter(def.Name, def.Help, func(v view) int64 { return int64(v.snap.Counters[id]) }); err != nil {
			return nil, err
		}
	}
	err := counter("gosession_audit_dropped_total", "Audit events dropped on a full dispatcher queue.",
		func(v view) int64 { return int64(v.dropped) })
	if err != nil {
		return nil, err
	}

	for _, def := range internaldefs.GaugeDefs {
		value := def.Value
		if err := gauge(def.Name, def.Help, func(v view) int64 { return value(v.gauges) }); err != nil {
			return nil, err
		}
	}

	// Histograms are bucketed counters without a sum, so each cumulative
	// bucket is published as its own gauge.
	for _, def := range internaldefs.HistogramDefs {
		id := def.ID
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			i := i
			err := gauge(def.Name+"_bucket_le_"+suffix, "Cumulative histogram bucket count.", func(v view) int64 {
				return int64(internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(v.snap.Histograms[id]))[i])
			})
			if err != nil {
				return nil, err
			}
		}
		err := gauge(def.Name+"_count", "Histogram total sample count.", func(v view) int64 {
			buckets := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(v.snap.Histograms[id]))
			return int64(buckets[len(buckets)-1])
		})
		if err != nil {
			return nil, err
		}
	}

	instruments := make([]metric.Observable, 0, len(e.observations))
	for _, o := range e.observations {
		instruments = append(instruments, o.instrument)
	}
	reg, err := meter.RegisterCallback(e.collect, instruments...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *OTelExporter) collect(_ context.Context, observer metric.Observer) error {
	v := view{
		snap:    e.source.MetricsSnapshot(),
		gauges:  e.source.Gauges(),
		dropped: e.source.AuditDropped(),
	}
	for _, o := range e.observations {
		observer.ObserveInt64(o.instrument, o.read(v))
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
