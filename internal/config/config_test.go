package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// baseDocument returns a fully-populated configuration document as nested
// maps so individual tests can delete keys before marshalling.
func baseDocument() map[string]any {
	return map[string]any{
		"data_files": map[string]any{
			"iaq": "iaq_data",
			"vav": "vav_data",
			"ahu": "ahu_data",
		},
		"api_urls": map[string]any{
			"psi": "https://api.example.com/v1/psi",
		},
		"parameters": map[string]any{
			"outdoor_co2_ppm":         415,
			"enable_bms_filter_check": true,
		},
		"defaults": map[string]any{
			"sensor_reading_default": 0,
		},
		"thresholds": map[string]any{
			"triggering": map[string]any{
				"co2_ppm_above_outdoor": 500,
				"tvoc_ug_m3":            500,
				"pm2_5_ug_m3":           25,
				"pm10_ug_m3":            50,
				"hcho_ug_m3":            100,
				"rh_percent_max":        70,
				"temp_c_min":            23,
				"temp_c_max":            25,
				"persistence_minutes":   10,
				"pad_increase_percent":  5,
				"max_dilution_cycles":   3,
			},
			"normalization": map[string]any{
				"co2_ppm_above_outdoor": 400,
				"tvoc_ug_m3":            400,
				"pm2_5_ug_m3":           20,
				"pm10_ug_m3":            40,
				"hcho_ug_m3":            80,
				"rh_percent_max":        65,
			},
			"psi": map[string]any{
				"unhealthy_min":      101,
				"unhealthy_max":      200,
				"very_unhealthy_min": 201,
			},
		},
		"sensor_to_vav_map": map[string]any{
			"047": "vav_01",
			"048": "vav_02",
		},
		"actions": map[string]any{
			"branch_b": map[string]any{
				"vav_flow_increase_pct":  10,
				"chw_valve_increase_pct": 5,
			},
			"branch_c": map[string]any{
				"vav_flow_decrease_pct":  10,
				"chw_valve_decrease_pct": 5,
			},
			"branch_d": map[string]any{
				"chw_valve_increase_pct": 10,
			},
		},
	}
}

func marshalDocument(t *testing.T, doc map[string]any) []byte {
	t.Helper()

	contents, err := yaml.Marshal(doc)
	require.NoError(t, err)

	return contents
}

// TestParseValidDocument checks that a complete document resolves into the
// typed configuration with all sections populated.
func TestParseValidDocument(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(marshalDocument(t, baseDocument()))
	require.NoError(t, err)

	require.InEpsilon(t, 415.0, cfg.OutdoorCO2PPM, 1e-9)
	require.True(t, cfg.EnableBMSFilterCheck)
	require.Equal(t, 10, cfg.Triggering.PersistenceMinutes)
	require.Equal(t, 3, cfg.Triggering.MaxDilutionCycles)
	require.InEpsilon(t, 65.0, cfg.Normalization.RHPercentMax, 1e-9)
	require.InEpsilon(t, 201.0, cfg.PSI.VeryUnhealthyMin, 1e-9)
	require.Equal(t, "vav_01", cfg.SensorToVAVMap["047"])
	require.InEpsilon(t, 10.0, cfg.Actions.BranchD.CHWValveIncreasePct, 1e-9)

	// MQTT is optional and falls back to defaults.
	require.Empty(t, cfg.MQTT.Broker)
	require.Equal(t, DefaultMQTTTopic, cfg.MQTT.Topic)
	require.Equal(t, DefaultMQTTClientID, cfg.MQTT.ClientID)
}

// TestParseMissingSections checks that every required section fails fast
// with an error naming the missing path.
func TestParseMissingSections(t *testing.T) {
	t.Parallel()

	for _, section := range []string{
		"data_files", "api_urls", "parameters", "defaults",
		"thresholds", "sensor_to_vav_map", "actions",
	} {
		doc := baseDocument()
		delete(doc, section)

		_, err := Parse(marshalDocument(t, doc))
		require.ErrorIs(t, err, ErrMissingKey, section)
		require.ErrorContains(t, err, section)
	}
}

// TestParseMissingNestedKeys checks representative required keys at every
// nesting depth.
func TestParseMissingNestedKeys(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path   []string
		wanted string
	}{
		{[]string{"api_urls", "psi"}, "api_urls.psi"},
		{[]string{"parameters", "outdoor_co2_ppm"}, "parameters.outdoor_co2_ppm"},
		{[]string{"defaults", "sensor_reading_default"}, "defaults.sensor_reading_default"},
		{[]string{"thresholds", "triggering"}, "thresholds.triggering"},
		{[]string{"thresholds", "triggering", "persistence_minutes"}, "thresholds.triggering.persistence_minutes"},
		{[]string{"thresholds", "triggering", "max_dilution_cycles"}, "thresholds.triggering.max_dilution_cycles"},
		{[]string{"thresholds", "normalization", "rh_percent_max"}, "thresholds.normalization.rh_percent_max"},
		{[]string{"thresholds", "psi", "very_unhealthy_min"}, "thresholds.psi.very_unhealthy_min"},
		{[]string{"actions", "branch_b"}, "actions.branch_b"},
		{[]string{"actions", "branch_c", "chw_valve_decrease_pct"}, "actions.branch_c.chw_valve_decrease_pct"},
	}

	for _, tc := range cases {
		doc := baseDocument()

		parent := doc
		for _, key := range tc.path[:len(tc.path)-1] {
			parent = parent[key].(map[string]any)
		}

		delete(parent, tc.path[len(tc.path)-1])

		_, err := Parse(marshalDocument(t, doc))
		require.ErrorIs(t, err, ErrMissingKey, tc.wanted)
		require.ErrorContains(t, err, tc.wanted)
	}
}

// TestParseOptionalFilterFlag checks the filter gate defaults to disabled.
func TestParseOptionalFilterFlag(t *testing.T) {
	t.Parallel()

	doc := baseDocument()
	delete(doc["parameters"].(map[string]any), "enable_bms_filter_check")

	cfg, err := Parse(marshalDocument(t, doc))
	require.NoError(t, err)
	require.False(t, cfg.EnableBMSFilterCheck)
}

// TestLoadFromFile checks reading and validating a document from disk,
// including environment overrides.
func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, os.WriteFile(path, marshalDocument(t, baseDocument()), 0o600))

	t.Setenv(EnvPSIURL, "https://override.example.com/psi")
	t.Setenv(EnvMQTTBroker, "tcp://broker.local:1883")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://override.example.com/psi", cfg.PSIURL)
	require.Equal(t, "tcp://broker.local:1883", cfg.MQTT.Broker)
}

// TestLoadMissingFile checks that an unreadable path is reported.
func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
