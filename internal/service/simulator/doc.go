// Package simulator orchestrates a full control-logic run: configuration,
// data ingestion, the decision engine replay, CSV reporting and optional
// MQTT event streaming.
package simulator
