// Package dataset loads the tidy CSV exports (IAQ sensors, VAV terminal
// units, AHU status) into the in-memory tables the simulation replays.
package dataset
