// Package events defines the payloads published on the internal event bus.
// Subscribers include sinks and the gossip layer; delivery is best-effort
// and never blocks the control cycle.
package events
