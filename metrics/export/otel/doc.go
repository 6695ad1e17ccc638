// Package otel publishes goSession engine metrics through an OpenTelemetry
// meter.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter
// and a bucket gauge with one series per "le" bound. A single callback reads
// [goSession.Engine.MetricsSnapshot] on each collection cycle. Callers own the
// MeterProvider.
package otel
