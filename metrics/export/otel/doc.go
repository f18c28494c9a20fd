// Package otel binds client metrics to an OpenTelemetry meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per counter and an
// Int64ObservableGauge per live gauge and per histogram bucket. One callback
// reads the client once per collection. Callers own the MeterProvider.
package otel
