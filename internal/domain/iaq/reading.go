package iaq

import "time"

// Reading is one sensor's measurements at one timestamp. Metric fields are
// pointers so that a missing reading is never conflated with a zero value:
// pollutant and humidity checks substitute the configured default for nil,
// while a nil temperature never triggers or resolves a thermal condition.
type Reading struct {
	// SensorID identifies the zone sensor that produced the reading.
	SensorID string
	// Timestamp is the minute the reading was taken.
	Timestamp time.Time
	// CO2 is the carbon dioxide concentration in ppm.
	CO2 *float64
	// TVOC is the total volatile organic compounds in µg/m³.
	TVOC *float64
	// PM25 is fine particulate matter in µg/m³.
	PM25 *float64
	// PM10 is coarse particulate matter in µg/m³.
	PM10 *float64
	// HCHO is formaldehyde in µg/m³.
	HCHO *float64
	// Humidity is relative humidity in percent.
	Humidity *float64
	// Temperature is air temperature in °C.
	Temperature *float64
}

// ValueOr returns the pointed-to value, or def when the reading is absent.
func ValueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}

	return *v
}

// Float returns a pointer to v; a convenience for building readings.
func Float(v float64) *float64 {
	return &v
}
