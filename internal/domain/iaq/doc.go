// Package iaq holds the domain model of the building-control supervisor:
// sensor readings and actuator tables, the per-sensor alert state machine's
// data, and the structured event records the engine emits.
//
// The package is pure data; all behavior lives in the engine service.
package iaq
