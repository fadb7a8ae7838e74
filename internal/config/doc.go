// Package config defines the supervisor's threshold, action and mapping
// settings and provides helpers to load and validate them from YAML.
//
// Validation is eager and complete: the simulation refuses to start with a
// partially-filled configuration, and every failure names the exact missing
// YAML path.
package config
