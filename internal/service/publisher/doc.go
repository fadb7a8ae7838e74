// Package publisher streams simulation event records to an MQTT broker so
// dashboards and downstream consumers can follow a run without parsing the
// CSV reports. Publishing is optional and enabled by configuring a broker.
package publisher
