package engine

import (
	"context"
	"fmt"
	"time"

	domain "github.com/oshokin/iaq-supervisor/internal/domain/iaq"
)

// branchKind is the closed enumeration of corrective-action branches.
type branchKind uint8

const (
	branchA branchKind = iota // pollutant dilution
	branchB                   // cooling for hot and dry zones
	branchC                   // warming for cold and dry zones
	branchD                   // dehumidification
)

// branchVocab carries the per-branch event names so the shared guard and
// lookup steps stay identical across branches.
type branchVocab struct {
	started string
	failed  string
	skipped string
	halted  string
}

// vocab returns the event vocabulary for the branch.
func (k branchKind) vocab() branchVocab {
	switch k {
	case branchA:
		return branchVocab{
			started: domain.EventDilutionStarted,
			failed:  domain.EventDilutionFailed,
			skipped: domain.EventBranchASkipped,
			halted:  domain.EventBranchAHalted,
		}
	case branchB:
		return branchVocab{
			started: domain.EventCoolingStarted,
			failed:  domain.EventCoolingFailed,
			skipped: domain.EventBranchBSkipped,
			halted:  domain.EventBranchBHalted,
		}
	case branchC:
		return branchVocab{
			started: domain.EventWarmingStarted,
			failed:  domain.EventWarmingFailed,
			skipped: domain.EventBranchCSkipped,
			halted:  domain.EventBranchCHalted,
		}
	case branchD:
		return branchVocab{
			started: domain.EventDehumidStarted,
			failed:  domain.EventDehumidFailed,
		}
	default:
		return branchVocab{}
	}
}

// routeAlert partitions the trigger reasons and dispatches the matching
// corrective branch. Pollutant reasons take precedence over comfort ones.
// The routing decision is recorded before the branch executes.
func (e *Engine) routeAlert(
	ctx context.Context,
	ts time.Time,
	reading domain.Reading,
	reasons []string,
	ds *domain.Dataset,
	state *domain.AlertState,
) {
	if hasPollutantReason(reasons) {
		state.AlertType = domain.AlertPollutant
		e.log(ctx, ts, reading.SensorID, domain.EventBranchRouting,
			"Pollutant alert. Routing to Branch A.", reasons, 0)
		e.executeBranchA(ctx, ts, reading.SensorID, ds, reasons, state)

		return
	}

	switch e.classifyComfort(reading) {
	case domain.AlertComfortHot:
		state.AlertType = domain.AlertComfortHot
		e.log(ctx, ts, reading.SensorID, domain.EventBranchRouting,
			"Comfort alert (Too Hot). Routing to Branch B.", reasons, 0)
		e.executeBranchB(ctx, ts, reading.SensorID, ds, reasons, state)
	case domain.AlertComfortCold:
		state.AlertType = domain.AlertComfortCold
		e.log(ctx, ts, reading.SensorID, domain.EventBranchRouting,
			"Comfort alert (Too Cold). Routing to Branch C.", reasons, 0)
		e.executeBranchC(ctx, ts, reading.SensorID, ds, reasons, state)
	case domain.AlertComfortHumid:
		state.AlertType = domain.AlertComfortHumid
		e.log(ctx, ts, reading.SensorID, domain.EventBranchRouting,
			"Comfort alert (Too Humid). Routing to Branch D.", reasons, 0)
		e.executeBranchD(ctx, ts, reading.SensorID, reasons, state)
	case domain.AlertNone, domain.AlertPollutant:
		// Conflicting humidity/temperature signals: no safe corrective
		// action exists, so facilities get an alert instead.
		e.log(ctx, ts, reading.SensorID, domain.EventConflictAlert,
			"Ambiguous comfort triggers. Sending alert to FM team", reasons, 0)
	}
}

// consumeCycle applies the shared cycle-limit guard. When the budget is
// exhausted it emits the branch's Failed record and reports false; otherwise
// it consumes one cycle. The increment deliberately precedes the mapping and
// data-presence checks, so Skipped/Halted outcomes still spend a cycle.
func (e *Engine) consumeCycle(
	ctx context.Context,
	ts time.Time,
	sensorID string,
	kind branchKind,
	reasons []string,
	state *domain.AlertState,
) bool {
	maxCycles := e.cfg.Triggering.MaxDilutionCycles
	if state.DilutionCycleCount >= maxCycles {
		e.log(ctx, ts, sensorID, kind.vocab().failed,
			fmt.Sprintf("Max cycles (%d) reached", maxCycles), reasons, 0)

		return false
	}

	state.DilutionCycleCount++

	return true
}

// lookupVAV performs the shared mapping and row lookup for branches A-C.
// It emits Skipped/Started/Halted records and reports whether a VAV row is
// available to act on.
func (e *Engine) lookupVAV(
	ctx context.Context,
	ts time.Time,
	sensorID string,
	kind branchKind,
	ds *domain.Dataset,
	reasons []string,
	cycle int,
) (domain.VAVState, bool) {
	vocab := kind.vocab()

	vavID, ok := e.cfg.SensorToVAVMap[sensorID]
	if !ok || vavID == "" {
		e.log(ctx, ts, sensorID, vocab.skipped, "No VAV mapping found", reasons, cycle)

		return domain.VAVState{}, false
	}

	e.log(ctx, ts, sensorID, vocab.started,
		fmt.Sprintf("Cycle #%d for VAV '%s'", cycle, vavID), reasons, cycle)

	vav, ok := ds.VAVAt(ts, vavID)
	if !ok {
		e.log(ctx, ts, sensorID, vocab.halted,
			fmt.Sprintf("VAV mapping exists for '%s', but no data found at this timestamp", vavID),
			reasons, cycle)

		return domain.VAVState{}, false
	}

	return vav, true
}

// executeBranchA runs dilution mode for pollutant alerts: raise the zone's
// VAV flow first, then widen the fresh-air damper, then alert facilities
// once both are saturated.
func (e *Engine) executeBranchA(
	ctx context.Context,
	ts time.Time,
	sensorID string,
	ds *domain.Dataset,
	reasons []string,
	state *domain.AlertState,
) {
	if !e.consumeCycle(ctx, ts, sensorID, branchA, reasons, state) {
		return
	}

	cycle := state.DilutionCycleCount

	vav, ok := e.lookupVAV(ctx, ts, sensorID, branchA, ds, reasons, cycle)
	if !ok {
		return
	}

	if vav.FlowSetpoint < vav.MaxFlowSetpoint {
		e.log(ctx, ts, sensorID, domain.EventVAVAction,
			fmt.Sprintf("VAV '%s' airflow not at max. Setting to maximum", vav.VAVID), reasons, cycle)

		return
	}

	ahu, ok := ds.AHUAt(ts)
	if !ok || ahu.DamperFeedback == nil || ahu.DamperMaxSetpoint == nil {
		e.log(ctx, ts, sensorID, domain.EventBranchAHalted,
			"VAV at max, but no AHU damper data found at this timestamp", reasons, cycle)

		return
	}

	if *ahu.DamperFeedback < *ahu.DamperMaxSetpoint {
		e.log(ctx, ts, sensorID, domain.EventPADAction,
			fmt.Sprintf("VAV at max. PAD/FAD not at max. Increasing opening by %g%%",
				e.cfg.Triggering.PADIncreasePercent), reasons, cycle)

		return
	}

	e.log(ctx, ts, sensorID, domain.EventAlert,
		"VAV and PAD/FAD are both at maximum. Sending alert to FM team", reasons, cycle)
}

// executeBranchB runs cooling mode for hot and dry comfort alerts.
func (e *Engine) executeBranchB(
	ctx context.Context,
	ts time.Time,
	sensorID string,
	ds *domain.Dataset,
	reasons []string,
	state *domain.AlertState,
) {
	if !e.consumeCycle(ctx, ts, sensorID, branchB, reasons, state) {
		return
	}

	cycle := state.DilutionCycleCount

	vav, ok := e.lookupVAV(ctx, ts, sensorID, branchB, ds, reasons, cycle)
	if !ok {
		return
	}

	if vav.FlowSetpoint < vav.MaxFlowSetpoint {
		e.log(ctx, ts, sensorID, domain.EventVAVActionCooling,
			fmt.Sprintf("VAV '%s' not at max. Increasing flow setpoint by %g%%",
				vav.VAVID, e.cfg.Actions.BranchB.VAVFlowIncreasePct), reasons, cycle)

		return
	}

	e.log(ctx, ts, sensorID, domain.EventCHWActionCooling,
		fmt.Sprintf("VAV at max. Increasing Chilled Water Valve position by %g%%",
			e.cfg.Actions.BranchB.CHWValveIncreasePct), reasons, cycle)
}

// executeBranchC runs warming mode for cold and dry comfort alerts.
func (e *Engine) executeBranchC(
	ctx context.Context,
	ts time.Time,
	sensorID string,
	ds *domain.Dataset,
	reasons []string,
	state *domain.AlertState,
) {
	if !e.consumeCycle(ctx, ts, sensorID, branchC, reasons, state) {
		return
	}

	cycle := state.DilutionCycleCount

	vav, ok := e.lookupVAV(ctx, ts, sensorID, branchC, ds, reasons, cycle)
	if !ok {
		return
	}

	if vav.FlowSetpoint > vav.MinFlowSetpoint {
		e.log(ctx, ts, sensorID, domain.EventVAVActionWarming,
			fmt.Sprintf("VAV '%s' not at min. Decreasing flow setpoint by %g%%",
				vav.VAVID, e.cfg.Actions.BranchC.VAVFlowDecreasePct), reasons, cycle)

		return
	}

	e.log(ctx, ts, sensorID, domain.EventCHWActionWarming,
		fmt.Sprintf("VAV at min. Decreasing Chilled Water Valve position by %g%%",
			e.cfg.Actions.BranchC.CHWValveDecreasePct), reasons, cycle)
}

// executeBranchD runs dehumidification mode for humid comfort alerts. It
// needs no VAV lookup: the chilled-water valve is opened unconditionally.
func (e *Engine) executeBranchD(
	ctx context.Context,
	ts time.Time,
	sensorID string,
	reasons []string,
	state *domain.AlertState,
) {
	if !e.consumeCycle(ctx, ts, sensorID, branchD, reasons, state) {
		return
	}

	cycle := state.DilutionCycleCount

	e.log(ctx, ts, sensorID, domain.EventDehumidStarted,
		fmt.Sprintf("Cycle #%d", cycle), reasons, cycle)
	e.log(ctx, ts, sensorID, domain.EventCHWActionDehumid,
		fmt.Sprintf("Increasing Chilled Water Valve position by %g%%",
			e.cfg.Actions.BranchD.CHWValveIncreasePct), reasons, cycle)
}
