package iaq

import "time"

// AlertType classifies an active alert episode; it decides which
// normalization predicate applies and which corrective branch is routed to.
type AlertType uint8

// The closed set of alert classifications.
const (
	AlertNone AlertType = iota
	AlertPollutant
	AlertComfortHot
	AlertComfortCold
	AlertComfortHumid
)

// String returns the report-facing name of the alert type.
func (t AlertType) String() string {
	switch t {
	case AlertPollutant:
		return "pollutant"
	case AlertComfortHot:
		return "comfort_hot"
	case AlertComfortCold:
		return "comfort_cold"
	case AlertComfortHumid:
		return "comfort_humid"
	case AlertNone:
		return "none"
	default:
		return "none"
	}
}

// AlertState tracks one sensor's alert machine across the whole replay.
// States are created lazily on a sensor's first sighting, mutated in place
// by the engine, and never deleted.
type AlertState struct {
	// IsTriggered marks the sensor as ALERTING.
	IsTriggered bool
	// AlertStartTime is when the current persistence window opened.
	AlertStartTime time.Time
	// HasFired marks that a corrective action was already dispatched for
	// the current persistence window.
	HasFired bool
	// DilutionCycleCount counts escalation attempts in this alert episode.
	DilutionCycleCount int
	// AlertType classifies the episode; AlertNone when NORMAL.
	AlertType AlertType
}

// Reset returns the state to NORMAL with all flags and counters cleared.
func (s *AlertState) Reset() {
	*s = AlertState{}
}

// Clone returns a copy of the state to avoid leaking internal references.
func (s *AlertState) Clone() *AlertState {
	cloned := *s

	return &cloned
}
