package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/iaq-supervisor/internal/config"
	domain "github.com/oshokin/iaq-supervisor/internal/domain/iaq"
	"github.com/oshokin/iaq-supervisor/internal/logger"
)

// PSIFetcher supplies the 24-hour outdoor pollution index for a calendar
// date. An unavailable feed returns ok=false or an error; neither is fatal
// to the simulation.
type PSIFetcher interface {
	Fetch24HourIndex(ctx context.Context, date time.Time) (value float64, ok bool, err error)
}

// Engine replays the tidy tables minute by minute and emits the decisions a
// building-management system would have made. It owns the per-sensor alert
// state map and the append-only event log; both are single-writer and never
// shared during a run.
type Engine struct {
	// cfg is the validated, immutable run configuration.
	cfg *config.Config
	// psi supplies the one-shot outdoor air-quality index; may be nil.
	psi PSIFetcher
	// states maps sensor id to its alert machine, created lazily.
	states map[string]*domain.AlertState
	// records is the ordered event log, the engine's sole output.
	records []domain.EventRecord
}

var (
	// errConfigRequired is returned when the engine is built without configuration.
	errConfigRequired = errors.New("configuration is required")
	// errDatasetRequired is returned when Run is invoked without a dataset.
	errDatasetRequired = errors.New("dataset is required")
)

// New constructs an engine from an already-validated configuration. The
// fetcher may be nil, in which case no outdoor advisory is ever emitted.
func New(cfg *config.Config, psi PSIFetcher) (*Engine, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}

	return &Engine{
		cfg:    cfg,
		psi:    psi,
		states: make(map[string]*domain.AlertState),
	}, nil
}

// Run replays every timestamp in ascending order and returns the ordered
// event log. Once started, no per-event failure aborts the loop; data gaps
// and exhausted escalations are recorded, not returned.
func (e *Engine) Run(ctx context.Context, ds *domain.Dataset) ([]domain.EventRecord, error) {
	if ds == nil {
		return nil, errDatasetRequired
	}

	ctx = logger.WithName(ctx, "engine")

	e.checkPSIAdvisory(ctx, ds)

	persistence := time.Duration(e.cfg.Triggering.PersistenceMinutes) * time.Minute

	for _, ts := range ds.Timestamps() {
		// A building-level mechanical fault invalidates any downstream
		// pollutant or comfort action for this minute.
		if e.checkBMSFilterAlarm(ctx, ts, ds) {
			continue
		}

		for _, reading := range ds.ReadingsAt(ts) {
			e.evaluateSensor(ctx, ts, reading, ds, persistence)
		}
	}

	logger.InfoKV(ctx, "Simulation finished", "events", len(e.records), "sensors", len(e.states))

	return e.records, nil
}

// checkPSIAdvisory runs once per simulation, before the per-timestamp loop,
// using the calendar date of the first IAQ timestamp. An unavailable feed
// degrades to "no advisory".
func (e *Engine) checkPSIAdvisory(ctx context.Context, ds *domain.Dataset) {
	if e.psi == nil || ds.Empty() {
		return
	}

	date := ds.Timestamps()[0]

	index, ok, err := e.psi.Fetch24HourIndex(ctx, date)
	if err != nil {
		logger.Warnf(ctx, "PSI feed unavailable, proceeding without advisory: %v", err)

		return
	}

	if !ok {
		return
	}

	// HEPA takes precedence when the configured bands overlap.
	switch {
	case index >= e.cfg.PSI.VeryUnhealthyMin:
		e.log(ctx, time.Time{}, domain.SystemSensorID, domain.EventPSIAlert,
			"PSI is Very Unhealthy/Hazardous. Recommending HEPA Filters.", nil, 0)
	case index >= e.cfg.PSI.UnhealthyMin && index <= e.cfg.PSI.UnhealthyMax:
		e.log(ctx, time.Time{}, domain.SystemSensorID, domain.EventPSIAlert,
			"PSI is Unhealthy. Haze Mode Protocol triggered. Recommending Carbon Filters.", nil, 0)
	}
}

// checkBMSFilterAlarm reports whether a filter alarm suppresses all
// per-sensor evaluation for this timestamp. A missing AHU row is no alarm.
func (e *Engine) checkBMSFilterAlarm(ctx context.Context, ts time.Time, ds *domain.Dataset) bool {
	if !e.cfg.EnableBMSFilterCheck {
		return false
	}

	ahu, ok := ds.AHUAt(ts)
	if !ok || !ahu.FilterAlarmActive() {
		return false
	}

	details := fmt.Sprintf(
		"AHU filter clog detected (Primary Status: %s, Secondary Status: %s). FM team to inspect.",
		statusString(ahu.PrimaryFilterStatus), statusString(ahu.SecondaryFilterStatus))
	e.log(ctx, ts, domain.SystemBMSSensorID, domain.EventBMSFilterAlarm, details, nil, 0)

	return true
}

// evaluateSensor advances one sensor's alert machine by one timestamp:
// recovery check first, then trigger evaluation, then the state transition.
func (e *Engine) evaluateSensor(
	ctx context.Context,
	ts time.Time,
	reading domain.Reading,
	ds *domain.Dataset,
	persistence time.Duration,
) {
	state, ok := e.states[reading.SensorID]
	if !ok {
		state = &domain.AlertState{}
		e.states[reading.SensorID] = state
	}

	// A sensor cannot trigger and normalize in the same tick.
	if state.IsTriggered && e.tryNormalize(ctx, ts, reading, state) {
		return
	}

	reasons := e.checkTriggers(reading)
	violating := len(reasons) > 0

	switch {
	case violating && !state.IsTriggered:
		state.IsTriggered = true
		state.AlertStartTime = ts
		state.HasFired = false
		state.DilutionCycleCount = 0
		state.AlertType = e.classifyAlert(reasons, reading)

	case violating && state.IsTriggered:
		// Debounce: transient violations below the persistence window
		// never escalate.
		if ts.Sub(state.AlertStartTime) >= persistence && !state.HasFired {
			e.routeAlert(ctx, ts, reading, reasons, ds, state)
			state.HasFired = true
		}

	case !violating && state.IsTriggered:
		// Readings dropped below the trigger band but not below the
		// stricter normalization band: the alert stays active, and a
		// fresh persistence window must elapse before re-escalation.
		state.HasFired = false
		state.AlertStartTime = ts
	}
}

// log appends a structured record to the event log and mirrors it to the
// console, warning on failed escalations.
func (e *Engine) log(
	ctx context.Context,
	ts time.Time,
	sensorID, event, details string,
	reasons []string,
	cycle int,
) {
	message := fmt.Sprintf("[%s] Sensor %s: %s. Details: %s", timestampString(ts), sensorID, event, details)
	if strings.HasSuffix(event, "Failed") {
		logger.Warn(ctx, message)
	} else {
		logger.Info(ctx, message)
	}

	e.records = append(e.records, domain.EventRecord{
		Timestamp:     ts,
		SensorID:      sensorID,
		Event:         event,
		Details:       details,
		Reasons:       reasons,
		DilutionCycle: cycle,
	})
}

// timestampString renders a record timestamp, using N/A for system-level
// records that carry the zero time.
func timestampString(ts time.Time) string {
	if ts.IsZero() {
		return "N/A"
	}

	return ts.Format(time.DateTime)
}

// statusString renders an optional AHU status flag for operator messages.
func statusString(v *float64) string {
	if v == nil {
		return "n/a"
	}

	return strconv.FormatFloat(*v, 'f', -1, 64)
}
