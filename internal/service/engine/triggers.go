package engine

import (
	"context"
	"time"

	domain "github.com/oshokin/iaq-supervisor/internal/domain/iaq"
)

// Trigger reason labels, in the fixed evaluation order. The order makes the
// reasons list of every record reproducible across runs.
const (
	reasonCO2  = "co2"
	reasonTVOC = "tvoc"
	reasonPM25 = "pm2_5"
	reasonPM10 = "pm10"
	reasonHCHO = "hcho"
	reasonRH   = "rh"
	reasonTemp = "temp"
)

// pollutantReasons marks the reasons that route to Branch A.
var pollutantReasons = map[string]struct{}{
	reasonCO2:  {},
	reasonTVOC: {},
	reasonPM25: {},
	reasonPM10: {},
	reasonHCHO: {},
}

// checkTriggers returns the ordered list of violated trigger thresholds for
// one reading. Absent pollutant and humidity values substitute the sensor
// default; an absent temperature never trips the thermal band.
func (e *Engine) checkTriggers(r domain.Reading) []string {
	var (
		t       = e.cfg.Triggering
		def     = e.cfg.SensorDefault
		reasons []string
	)

	if domain.ValueOr(r.CO2, def) > e.cfg.OutdoorCO2PPM+t.CO2PPMAboveOutdoor {
		reasons = append(reasons, reasonCO2)
	}

	if domain.ValueOr(r.TVOC, def) > t.TVOCUgM3 {
		reasons = append(reasons, reasonTVOC)
	}

	if domain.ValueOr(r.PM25, def) > t.PM25UgM3 {
		reasons = append(reasons, reasonPM25)
	}

	if domain.ValueOr(r.PM10, def) > t.PM10UgM3 {
		reasons = append(reasons, reasonPM10)
	}

	if domain.ValueOr(r.HCHO, def) > t.HCHOUgM3 {
		reasons = append(reasons, reasonHCHO)
	}

	if domain.ValueOr(r.Humidity, def) > t.RHPercentMax {
		reasons = append(reasons, reasonRH)
	}

	if r.Temperature != nil && (*r.Temperature < t.TempCMin || *r.Temperature > t.TempCMax) {
		reasons = append(reasons, reasonTemp)
	}

	return reasons
}

// hasPollutantReason reports whether any reason routes to Branch A.
func hasPollutantReason(reasons []string) bool {
	for _, reason := range reasons {
		if _, ok := pollutantReasons[reason]; ok {
			return true
		}
	}

	return false
}

// pollutantsNormalized reports whether every pollutant reading sits strictly
// below the normalization thresholds. These sit below the trigger thresholds
// so a recovered alert cannot immediately re-trigger.
func (e *Engine) pollutantsNormalized(r domain.Reading) bool {
	var (
		n   = e.cfg.Normalization
		def = e.cfg.SensorDefault
	)

	return domain.ValueOr(r.CO2, def) < e.cfg.OutdoorCO2PPM+n.CO2PPMAboveOutdoor &&
		domain.ValueOr(r.TVOC, def) < n.TVOCUgM3 &&
		domain.ValueOr(r.PM25, def) < n.PM25UgM3 &&
		domain.ValueOr(r.PM10, def) < n.PM10UgM3 &&
		domain.ValueOr(r.HCHO, def) < n.HCHOUgM3
}

// comfortNormalized reports whether the temperature is back inside the
// comfort band. A missing temperature never resolves a thermal alert.
func (e *Engine) comfortNormalized(r domain.Reading) bool {
	if r.Temperature == nil {
		return false
	}

	return *r.Temperature >= e.cfg.Triggering.TempCMin && *r.Temperature <= e.cfg.Triggering.TempCMax
}

// dehumidNormalized reports whether both temperature and humidity have
// recovered after a dehumidification episode.
func (e *Engine) dehumidNormalized(r domain.Reading) bool {
	rhRecovered := domain.ValueOr(r.Humidity, e.cfg.SensorDefault) < e.cfg.Normalization.RHPercentMax

	return e.comfortNormalized(r) && rhRecovered
}

// tryNormalize runs the recovery predicate matching the stored alert type.
// On success it emits a Normalization record, fully resets the state to
// NORMAL, and ends this sensor's evaluation for the timestamp.
func (e *Engine) tryNormalize(ctx context.Context, ts time.Time, r domain.Reading, state *domain.AlertState) bool {
	var details string

	switch state.AlertType {
	case domain.AlertPollutant:
		if !e.pollutantsNormalized(r) {
			return false
		}

		details = "Dilution Successful! Pollutant levels normalized."
	case domain.AlertComfortHot, domain.AlertComfortCold:
		if !e.comfortNormalized(r) {
			return false
		}

		details = "Comfort Restored! Temperature is normal."
	case domain.AlertComfortHumid:
		if !e.dehumidNormalized(r) {
			return false
		}

		details = "Dehumidification Successful! RH and Temp are normal."
	case domain.AlertNone:
		return false
	default:
		return false
	}

	e.log(ctx, ts, r.SensorID, domain.EventNormalization, details, nil, 0)
	state.Reset()

	return true
}

// classifyAlert resolves the alert type at trigger time: pollutant when any
// pollutant threshold fired, otherwise a comfort sub-type from the humidity
// and temperature signs.
func (e *Engine) classifyAlert(reasons []string, r domain.Reading) domain.AlertType {
	if hasPollutantReason(reasons) {
		return domain.AlertPollutant
	}

	return e.classifyComfort(r)
}

// classifyComfort applies the comfort sign rules to the current reading.
// AlertNone means the combination is an unresolved conflict.
func (e *Engine) classifyComfort(r domain.Reading) domain.AlertType {
	var (
		t    = e.cfg.Triggering
		rh   = domain.ValueOr(r.Humidity, e.cfg.SensorDefault)
		temp = r.Temperature
	)

	switch {
	case rh < t.RHPercentMax && temp != nil && *temp > t.TempCMax:
		return domain.AlertComfortHot
	case rh < t.RHPercentMax && temp != nil && *temp < t.TempCMin:
		return domain.AlertComfortCold
	case rh >= t.RHPercentMax:
		return domain.AlertComfortHumid
	default:
		return domain.AlertNone
	}
}
