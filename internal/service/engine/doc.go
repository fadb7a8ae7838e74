// Package engine implements the decision core of the supervisor: a
// per-sensor finite-state alert machine with debounced triggering,
// branch-based corrective-action routing, cycle-limited escalation and
// hysteresis-based recovery, gated by a one-shot outdoor air-quality
// advisory and a per-timestamp mechanical filter alarm.
//
// The engine replays the tidy input tables timestamp by timestamp and emits
// an append-only log of EventRecord values; it never actuates hardware.
package engine
