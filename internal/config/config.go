package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the validated, immutable view of the supervisor configuration.
// It is resolved from the raw YAML document once at load time; every field
// below is guaranteed to be present after Load returns without error.
type Config struct {
	// DataFiles names the three tidy input tables relative to the data directory.
	DataFiles DataFiles
	// PSIURL is the endpoint of the outdoor air-quality (PSI) feed.
	PSIURL string
	// OutdoorCO2PPM is the assumed outdoor CO2 concentration in ppm.
	OutdoorCO2PPM float64
	// EnableBMSFilterCheck toggles the per-timestamp AHU filter alarm gate.
	EnableBMSFilterCheck bool
	// SensorDefault is substituted for absent pollutant and humidity readings.
	// Temperature is never defaulted.
	SensorDefault float64
	// Triggering holds the thresholds that start an alert.
	Triggering TriggerThresholds
	// Normalization holds the stricter thresholds that resolve an alert.
	Normalization NormalizationThresholds
	// PSI holds the outdoor air-quality advisory bands.
	PSI PSIThresholds
	// SensorToVAVMap maps sensor identifiers to their VAV terminal units.
	// Sensors without a mapping are allowed; branch actions skip them.
	SensorToVAVMap map[string]string
	// Actions holds percentage adjustments for the corrective branches.
	Actions ActionsConfig
	// MQTT configures the optional event publisher. An empty broker disables it.
	MQTT MQTTConfig
}

// DataFiles names the tidy CSV tables consumed by the simulation.
type DataFiles struct {
	// IAQ is the per-sensor indoor air-quality readings table.
	IAQ string
	// VAV is the per-terminal-unit actuator state table.
	VAV string
	// AHU is the air-handling-unit mechanical state table.
	AHU string
}

// TriggerThresholds are the ceilings/floors that start an alert.
type TriggerThresholds struct {
	// CO2PPMAboveOutdoor is the allowed CO2 offset above the outdoor level.
	CO2PPMAboveOutdoor float64
	// TVOCUgM3 is the TVOC ceiling in µg/m³.
	TVOCUgM3 float64
	// PM25UgM3 is the PM2.5 ceiling in µg/m³.
	PM25UgM3 float64
	// PM10UgM3 is the PM10 ceiling in µg/m³.
	PM10UgM3 float64
	// HCHOUgM3 is the formaldehyde ceiling in µg/m³.
	HCHOUgM3 float64
	// RHPercentMax is the relative humidity ceiling in percent.
	RHPercentMax float64
	// TempCMin and TempCMax bound the thermal comfort band in °C.
	TempCMin float64
	TempCMax float64
	// PersistenceMinutes is the debounce window before an alert escalates.
	PersistenceMinutes int
	// PADIncreasePercent is the fresh-air damper step used by Branch A.
	PADIncreasePercent float64
	// MaxDilutionCycles bounds escalation attempts per alert episode.
	MaxDilutionCycles int
}

// NormalizationThresholds are the stricter bounds an alert must undercut to
// resolve. They sit below the trigger thresholds to form a hysteresis band.
type NormalizationThresholds struct {
	CO2PPMAboveOutdoor float64
	TVOCUgM3           float64
	PM25UgM3           float64
	PM10UgM3           float64
	HCHOUgM3           float64
	RHPercentMax       float64
}

// PSIThresholds are the outdoor air-quality advisory bands.
type PSIThresholds struct {
	UnhealthyMin     float64
	UnhealthyMax     float64
	VeryUnhealthyMin float64
}

// BranchBActions holds the cooling branch adjustments.
type BranchBActions struct {
	VAVFlowIncreasePct  float64
	CHWValveIncreasePct float64
}

// BranchCActions holds the warming branch adjustments.
type BranchCActions struct {
	VAVFlowDecreasePct  float64
	CHWValveDecreasePct float64
}

// BranchDActions holds the dehumidification branch adjustments.
type BranchDActions struct {
	CHWValveIncreasePct float64
}

// ActionsConfig groups the per-branch percentage adjustments.
type ActionsConfig struct {
	BranchB BranchBActions
	BranchC BranchCActions
	BranchD BranchDActions
}

// MQTTConfig configures the optional event-log publisher.
type MQTTConfig struct {
	// Broker is the MQTT broker URL (e.g. tcp://localhost:1883). Empty disables publishing.
	Broker string `yaml:"broker"`
	// Topic is the topic events are published to.
	Topic string `yaml:"topic"`
	// ClientID identifies this publisher to the broker.
	ClientID string `yaml:"client_id"`
}

const (
	// DefaultConfigFilename is the default filename for supervisor settings.
	DefaultConfigFilename = "config.yaml"

	// DefaultMQTTTopic is used when a broker is configured without a topic.
	DefaultMQTTTopic = "iaq/events"

	// DefaultMQTTClientID identifies the publisher when none is configured.
	DefaultMQTTClientID = "iaq-supervisor"

	// DefaultFilePermissions is the default file permission for written files.
	DefaultFilePermissions = 0o600

	// EnvPSIURL optionally overrides api_urls.psi (loaded from the environment or .env).
	EnvPSIURL = "IAQ_PSI_URL"

	// EnvMQTTBroker optionally overrides mqtt.broker.
	EnvMQTTBroker = "IAQ_MQTT_BROKER"
)

// ErrMissingKey is wrapped by every missing-configuration error; the wrapped
// message names the exact YAML path that was absent.
var ErrMissingKey = errors.New("required configuration key is missing")

// rawConfig mirrors the YAML document with pointer fields so that an absent
// key is distinguishable from a zero value. It is resolved into Config by
// Validate; nothing outside this package sees partially-filled data.
type rawConfig struct {
	DataFiles      *rawDataFiles     `yaml:"data_files"`
	APIURLs        *rawAPIURLs       `yaml:"api_urls"`
	Parameters     *rawParameters    `yaml:"parameters"`
	Defaults       *rawDefaults      `yaml:"defaults"`
	Thresholds     *rawThresholds    `yaml:"thresholds"`
	SensorToVAVMap map[string]string `yaml:"sensor_to_vav_map"`
	Actions        *rawActions       `yaml:"actions"`
	MQTT           *MQTTConfig       `yaml:"mqtt"`
}

type rawDataFiles struct {
	IAQ *string `yaml:"iaq"`
	VAV *string `yaml:"vav"`
	AHU *string `yaml:"ahu"`
}

type rawAPIURLs struct {
	PSI *string `yaml:"psi"`
}

type rawParameters struct {
	OutdoorCO2PPM        *float64 `yaml:"outdoor_co2_ppm"`
	EnableBMSFilterCheck *bool    `yaml:"enable_bms_filter_check"`
}

type rawDefaults struct {
	SensorReadingDefault *float64 `yaml:"sensor_reading_default"`
}

type rawThresholds struct {
	Triggering    *rawTriggering    `yaml:"triggering"`
	Normalization *rawNormalization `yaml:"normalization"`
	PSI           *rawPSI           `yaml:"psi"`
}

type rawTriggering struct {
	CO2PPMAboveOutdoor *float64 `yaml:"co2_ppm_above_outdoor"`
	TVOCUgM3           *float64 `yaml:"tvoc_ug_m3"`
	PM25UgM3           *float64 `yaml:"pm2_5_ug_m3"`
	PM10UgM3           *float64 `yaml:"pm10_ug_m3"`
	HCHOUgM3           *float64 `yaml:"hcho_ug_m3"`
	RHPercentMax       *float64 `yaml:"rh_percent_max"`
	TempCMin           *float64 `yaml:"temp_c_min"`
	TempCMax           *float64 `yaml:"temp_c_max"`
	PersistenceMinutes *int     `yaml:"persistence_minutes"`
	PADIncreasePercent *float64 `yaml:"pad_increase_percent"`
	MaxDilutionCycles  *int     `yaml:"max_dilution_cycles"`
}

type rawNormalization struct {
	CO2PPMAboveOutdoor *float64 `yaml:"co2_ppm_above_outdoor"`
	TVOCUgM3           *float64 `yaml:"tvoc_ug_m3"`
	PM25UgM3           *float64 `yaml:"pm2_5_ug_m3"`
	PM10UgM3           *float64 `yaml:"pm10_ug_m3"`
	HCHOUgM3           *float64 `yaml:"hcho_ug_m3"`
	RHPercentMax       *float64 `yaml:"rh_percent_max"`
}

type rawPSI struct {
	UnhealthyMin     *float64 `yaml:"unhealthy_min"`
	UnhealthyMax     *float64 `yaml:"unhealthy_max"`
	VeryUnhealthyMin *float64 `yaml:"very_unhealthy_min"`
}

type rawActions struct {
	BranchB *rawBranchB `yaml:"branch_b"`
	BranchC *rawBranchC `yaml:"branch_c"`
	BranchD *rawBranchD `yaml:"branch_d"`
}

type rawBranchB struct {
	VAVFlowIncreasePct  *float64 `yaml:"vav_flow_increase_pct"`
	CHWValveIncreasePct *float64 `yaml:"chw_valve_increase_pct"`
}

type rawBranchC struct {
	VAVFlowDecreasePct  *float64 `yaml:"vav_flow_decrease_pct"`
	CHWValveDecreasePct *float64 `yaml:"chw_valve_decrease_pct"`
}

type rawBranchD struct {
	CHWValveIncreasePct *float64 `yaml:"chw_valve_increase_pct"`
}

// Load reads the YAML configuration from the provided path, validates it
// eagerly and entirely, and applies environment overrides. Any missing
// required key fails with an error naming its exact path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg, err := Parse(contents)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if _, err = url.ParseRequestURI(cfg.PSIURL); err != nil {
		return nil, fmt.Errorf("invalid PSI feed URL: %w", err)
	}

	return cfg, nil
}

// Parse unmarshals and validates a YAML configuration document.
func Parse(contents []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(contents, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	return validate(&raw)
}

// validate resolves the raw document into a Config, failing on the first
// missing required section or key.
func validate(raw *rawConfig) (*Config, error) {
	var (
		r   = &resolver{}
		cfg = &Config{}
	)

	if raw.DataFiles == nil {
		return nil, missingKey("data_files")
	}

	cfg.DataFiles = DataFiles{
		IAQ: r.str(raw.DataFiles.IAQ, "data_files.iaq"),
		VAV: r.str(raw.DataFiles.VAV, "data_files.vav"),
		AHU: r.str(raw.DataFiles.AHU, "data_files.ahu"),
	}

	if raw.APIURLs == nil {
		return nil, missingKey("api_urls")
	}

	cfg.PSIURL = r.str(raw.APIURLs.PSI, "api_urls.psi")

	if raw.Parameters == nil {
		return nil, missingKey("parameters")
	}

	cfg.OutdoorCO2PPM = r.float(raw.Parameters.OutdoorCO2PPM, "parameters.outdoor_co2_ppm")

	// The filter check flag is optional; an absent flag disables the check.
	if raw.Parameters.EnableBMSFilterCheck != nil {
		cfg.EnableBMSFilterCheck = *raw.Parameters.EnableBMSFilterCheck
	}

	if raw.Defaults == nil {
		return nil, missingKey("defaults")
	}

	cfg.SensorDefault = r.float(raw.Defaults.SensorReadingDefault, "defaults.sensor_reading_default")

	if err := resolveThresholds(r, raw.Thresholds, cfg); err != nil {
		return nil, err
	}

	if raw.SensorToVAVMap == nil {
		return nil, missingKey("sensor_to_vav_map")
	}

	cfg.SensorToVAVMap = raw.SensorToVAVMap

	if err := resolveActions(r, raw.Actions, cfg); err != nil {
		return nil, err
	}

	if raw.MQTT != nil {
		cfg.MQTT = *raw.MQTT
	}

	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = DefaultMQTTTopic
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = DefaultMQTTClientID
	}

	if r.err != nil {
		return nil, r.err
	}

	return cfg, nil
}

// resolveThresholds fills the triggering, normalization and PSI sections.
func resolveThresholds(r *resolver, raw *rawThresholds, cfg *Config) error {
	if raw == nil {
		return missingKey("thresholds")
	}

	if raw.Triggering == nil {
		return missingKey("thresholds.triggering")
	}

	cfg.Triggering = TriggerThresholds{
		CO2PPMAboveOutdoor: r.float(raw.Triggering.CO2PPMAboveOutdoor, "thresholds.triggering.co2_ppm_above_outdoor"),
		TVOCUgM3:           r.float(raw.Triggering.TVOCUgM3, "thresholds.triggering.tvoc_ug_m3"),
		PM25UgM3:           r.float(raw.Triggering.PM25UgM3, "thresholds.triggering.pm2_5_ug_m3"),
		PM10UgM3:           r.float(raw.Triggering.PM10UgM3, "thresholds.triggering.pm10_ug_m3"),
		HCHOUgM3:           r.float(raw.Triggering.HCHOUgM3, "thresholds.triggering.hcho_ug_m3"),
		RHPercentMax:       r.float(raw.Triggering.RHPercentMax, "thresholds.triggering.rh_percent_max"),
		TempCMin:           r.float(raw.Triggering.TempCMin, "thresholds.triggering.temp_c_min"),
		TempCMax:           r.float(raw.Triggering.TempCMax, "thresholds.triggering.temp_c_max"),
		PersistenceMinutes: r.integer(raw.Triggering.PersistenceMinutes, "thresholds.triggering.persistence_minutes"),
		PADIncreasePercent: r.float(raw.Triggering.PADIncreasePercent, "thresholds.triggering.pad_increase_percent"),
		MaxDilutionCycles:  r.integer(raw.Triggering.MaxDilutionCycles, "thresholds.triggering.max_dilution_cycles"),
	}

	if raw.Normalization == nil {
		return missingKey("thresholds.normalization")
	}

	cfg.Normalization = NormalizationThresholds{
		CO2PPMAboveOutdoor: r.float(raw.Normalization.CO2PPMAboveOutdoor, "thresholds.normalization.co2_ppm_above_outdoor"),
		TVOCUgM3:           r.float(raw.Normalization.TVOCUgM3, "thresholds.normalization.tvoc_ug_m3"),
		PM25UgM3:           r.float(raw.Normalization.PM25UgM3, "thresholds.normalization.pm2_5_ug_m3"),
		PM10UgM3:           r.float(raw.Normalization.PM10UgM3, "thresholds.normalization.pm10_ug_m3"),
		HCHOUgM3:           r.float(raw.Normalization.HCHOUgM3, "thresholds.normalization.hcho_ug_m3"),
		RHPercentMax:       r.float(raw.Normalization.RHPercentMax, "thresholds.normalization.rh_percent_max"),
	}

	if raw.PSI == nil {
		return missingKey("thresholds.psi")
	}

	cfg.PSI = PSIThresholds{
		UnhealthyMin:     r.float(raw.PSI.UnhealthyMin, "thresholds.psi.unhealthy_min"),
		UnhealthyMax:     r.float(raw.PSI.UnhealthyMax, "thresholds.psi.unhealthy_max"),
		VeryUnhealthyMin: r.float(raw.PSI.VeryUnhealthyMin, "thresholds.psi.very_unhealthy_min"),
	}

	return nil
}

// resolveActions fills the per-branch percentage adjustments.
func resolveActions(r *resolver, raw *rawActions, cfg *Config) error {
	if raw == nil {
		return missingKey("actions")
	}

	if raw.BranchB == nil {
		return missingKey("actions.branch_b")
	}

	cfg.Actions.BranchB = BranchBActions{
		VAVFlowIncreasePct:  r.float(raw.BranchB.VAVFlowIncreasePct, "actions.branch_b.vav_flow_increase_pct"),
		CHWValveIncreasePct: r.float(raw.BranchB.CHWValveIncreasePct, "actions.branch_b.chw_valve_increase_pct"),
	}

	if raw.BranchC == nil {
		return missingKey("actions.branch_c")
	}

	cfg.Actions.BranchC = BranchCActions{
		VAVFlowDecreasePct:  r.float(raw.BranchC.VAVFlowDecreasePct, "actions.branch_c.vav_flow_decrease_pct"),
		CHWValveDecreasePct: r.float(raw.BranchC.CHWValveDecreasePct, "actions.branch_c.chw_valve_decrease_pct"),
	}

	if raw.BranchD == nil {
		return missingKey("actions.branch_d")
	}

	cfg.Actions.BranchD = BranchDActions{
		CHWValveIncreasePct: r.float(raw.BranchD.CHWValveIncreasePct, "actions.branch_d.chw_valve_increase_pct"),
	}

	return nil
}

// applyEnvOverrides lets deployment environments point the supervisor at a
// different PSI endpoint or MQTT broker without editing the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPSIURL); v != "" {
		cfg.PSIURL = v
	}

	if v := os.Getenv(EnvMQTTBroker); v != "" {
		cfg.MQTT.Broker = v
	}
}

// resolver reads optional raw values and records the first missing path.
type resolver struct {
	err error
}

func (r *resolver) float(v *float64, path string) float64 {
	if r.err != nil {
		return 0
	}

	if v == nil {
		r.err = missingKey(path)

		return 0
	}

	return *v
}

func (r *resolver) integer(v *int, path string) int {
	if r.err != nil {
		return 0
	}

	if v == nil {
		r.err = missingKey(path)

		return 0
	}

	return *v
}

func (r *resolver) str(v *string, path string) string {
	if r.err != nil {
		return ""
	}

	if v == nil || *v == "" {
		r.err = missingKey(path)

		return ""
	}

	return *v
}

// missingKey builds the fail-fast error naming the exact absent YAML path.
func missingKey(path string) error {
	return fmt.Errorf("%w: %s", ErrMissingKey, path)
}
