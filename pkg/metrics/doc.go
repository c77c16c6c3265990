/*
Package metrics exposes Prometheus instrumentation for the indexer: event
ingress/writer-pool throughput, authenticated state engine watermark and
root-divergence counters, and brief generation/submission latency.

All metrics are package-level vars registered in init(); Collector polls a
small set of source interfaces (StateSource, PoolSource, SubmitterSource) on
a ticker and keeps the corresponding gauges current. Handler() serves the
usual /metrics endpoint, and HealthHandler/ReadyHandler/LivenessHandler back
/health, /ready, /live.
*/
package metrics
