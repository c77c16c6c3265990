/*
Package reconciler runs a ticker-driven background loop that asks the
authenticated state engine to re-check its durable root against its
in-memory shadow root, independent of the startup reconciliation the state
engine already performs once. A mismatch increments
metrics.RootDivergenceTotal and is logged; it does not crash the process
since the state engine's own write path already refuses to apply further
updates once it detects divergence.
*/
package reconciler
