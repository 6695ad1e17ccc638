// Package prometheus exposes goSession engine metrics as a
// [prometheus.Collector].
//
// Counters are named gosession_*_total and the validation latency histogram
// is gosession_validate_latency_seconds. The collector reads
// [goSession.Engine.MetricsSnapshot] on every scrape; callers register it
// with their own registry.
package prometheus
