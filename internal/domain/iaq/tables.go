package iaq

import (
	"sort"
	"time"
)

// FilterStatusTripped is the AHU filter status value signalling a clogged filter.
const FilterStatusTripped = 1

// VAVState is one terminal unit's actuator state at one timestamp.
type VAVState struct {
	// VAVID identifies the terminal unit.
	VAVID string
	// Timestamp is the minute the state was sampled.
	Timestamp time.Time
	// FlowSetpoint is the current supply flow setpoint.
	FlowSetpoint float64
	// MaxFlowSetpoint is the configured maximum flow.
	MaxFlowSetpoint float64
	// MinFlowSetpoint is the configured occupied minimum flow.
	MinFlowSetpoint float64
}

// AHUState is the air-handling unit's mechanical state at one timestamp.
// Fields are pointers because individual signals may be absent from a row;
// an absent filter status is treated as "no alarm", while an absent damper
// signal halts any branch that needs it.
type AHUState struct {
	// Timestamp is the minute the state was sampled.
	Timestamp time.Time
	// PrimaryFilterStatus is the primary filter alarm flag (1 = tripped).
	PrimaryFilterStatus *float64
	// SecondaryFilterStatus is the secondary filter alarm flag (1 = tripped).
	SecondaryFilterStatus *float64
	// DamperFeedback is the fresh-air damper position feedback in percent.
	DamperFeedback *float64
	// DamperMaxSetpoint is the fresh-air damper maximum setpoint in percent.
	DamperMaxSetpoint *float64
}

// FilterAlarmActive reports whether either filter status flag is tripped.
func (s *AHUState) FilterAlarmActive() bool {
	return ValueOr(s.PrimaryFilterStatus, 0) == FilterStatusTripped ||
		ValueOr(s.SecondaryFilterStatus, 0) == FilterStatusTripped
}

// vavKey addresses a VAV row by timestamp and terminal unit.
type vavKey struct {
	ts    int64
	vavID string
}

// Dataset is the engine's read-only view of the three tidy input tables,
// indexed for exact-timestamp lookups. It is built once by the ingestion
// side and never mutated during a run.
type Dataset struct {
	timestamps []time.Time
	readings   map[int64][]Reading
	vav        map[vavKey]VAVState
	ahu        map[int64]AHUState
}

// NewDataset indexes the tidy tables. IAQ timestamps are deduplicated and
// sorted ascending; readings keep their input order within a timestamp so
// replays are reproducible.
func NewDataset(iaq []Reading, vav []VAVState, ahu []AHUState) *Dataset {
	d := &Dataset{
		readings: make(map[int64][]Reading, len(iaq)),
		vav:      make(map[vavKey]VAVState, len(vav)),
		ahu:      make(map[int64]AHUState, len(ahu)),
	}

	for _, r := range iaq {
		key := r.Timestamp.UnixNano()
		if _, seen := d.readings[key]; !seen {
			d.timestamps = append(d.timestamps, r.Timestamp)
		}

		d.readings[key] = append(d.readings[key], r)
	}

	sort.Slice(d.timestamps, func(i, j int) bool {
		return d.timestamps[i].Before(d.timestamps[j])
	})

	for _, v := range vav {
		d.vav[vavKey{ts: v.Timestamp.UnixNano(), vavID: v.VAVID}] = v
	}

	for _, a := range ahu {
		d.ahu[a.Timestamp.UnixNano()] = a
	}

	return d
}

// Empty reports whether the IAQ table holds no readings at all.
func (d *Dataset) Empty() bool {
	return len(d.timestamps) == 0
}

// Timestamps returns the unique IAQ timestamps in ascending order.
func (d *Dataset) Timestamps() []time.Time {
	return d.timestamps
}

// ReadingsAt returns all sensor readings taken at the exact timestamp.
func (d *Dataset) ReadingsAt(ts time.Time) []Reading {
	return d.readings[ts.UnixNano()]
}

// VAVAt returns the VAV row for the terminal unit at the exact timestamp.
func (d *Dataset) VAVAt(ts time.Time, vavID string) (VAVState, bool) {
	v, ok := d.vav[vavKey{ts: ts.UnixNano(), vavID: vavID}]

	return v, ok
}

// AHUAt returns the AHU row at the exact timestamp.
func (d *Dataset) AHUAt(ts time.Time) (AHUState, bool) {
	a, ok := d.ahu[ts.UnixNano()]

	return a, ok
}
