// Package psi fetches the 24-hour Pollutant Standards Index from the public
// air-quality feed. The simulation uses it once per run to decide whether an
// outdoor haze advisory should be issued before any indoor evaluation.
package psi
