package iaq

import "time"

// Event names emitted by the decision engine. These strings are the output
// contract consumed by the report writer and downstream tooling.
const (
	EventPSIAlert       = "PSI Alert"
	EventBMSFilterAlarm = "BMS Filter Alarm"
	EventBranchRouting  = "Branch Routing"
	EventConflictAlert  = "Conflict Alert"
	EventNormalization  = "Normalization"

	EventDilutionStarted = "Dilution Cycle Started"
	EventDilutionFailed  = "Dilution Failed"
	EventVAVAction       = "VAV Action"
	EventPADAction       = "PAD Action"
	EventAlert           = "Alert"
	EventBranchASkipped  = "Branch A Skipped"
	EventBranchAHalted   = "Branch A Halted"

	EventCoolingStarted   = "Cooling Cycle Started"
	EventCoolingFailed    = "Cooling Failed"
	EventVAVActionCooling = "VAV Action (Cooling)"
	EventCHWActionCooling = "CHW Valve Action (Cooling)"
	EventBranchBSkipped   = "Branch B Skipped"
	EventBranchBHalted    = "Branch B Halted"

	EventWarmingStarted   = "Warming Cycle Started"
	EventWarmingFailed    = "Warming Failed"
	EventVAVActionWarming = "VAV Action (Warming)"
	EventCHWActionWarming = "CHW Valve Action (Warming)"
	EventBranchCSkipped   = "Branch C Skipped"
	EventBranchCHalted    = "Branch C Halted"

	EventDehumidStarted   = "Dehumidification Cycle Started"
	EventDehumidFailed    = "Dehumidification Failed"
	EventCHWActionDehumid = "CHW Valve Action (Dehumidifying)"
)

// Sensor identifiers used for system-level records.
const (
	// SystemSensorID marks simulation-wide records such as PSI advisories.
	SystemSensorID = "SYSTEM"
	// SystemBMSSensorID marks building-level mechanical alarm records.
	SystemBMSSensorID = "SYSTEM_BMS"
)

// EventRecord is one structured decision in the append-only event log, the
// engine's sole output. Records are ordered by occurrence; system-level
// records carry the zero Timestamp.
type EventRecord struct {
	// Timestamp is the simulation minute the decision was made.
	Timestamp time.Time `json:"timestamp"`
	// SensorID names the sensor the decision concerns, or a SYSTEM id.
	SensorID string `json:"sensor_id"`
	// Event is the decision name from the closed vocabulary above.
	Event string `json:"event"`
	// Details is the free-text explanation for the operator.
	Details string `json:"details"`
	// Reasons lists the violated thresholds, in fixed evaluation order.
	Reasons []string `json:"reasons"`
	// DilutionCycle is the escalation attempt this record belongs to,
	// zero when not cycle-specific.
	DilutionCycle int `json:"dilution_cycle"`
}
