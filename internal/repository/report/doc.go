// Package report writes a simulation run's event log to CSV: a detailed
// per-record log plus a per-sensor event frequency summary.
package report
