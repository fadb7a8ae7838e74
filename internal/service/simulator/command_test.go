package simulator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/iaq-supervisor/internal/config"
)

const configTemplate = `data_files:
  iaq: iaq.csv
  vav: vav.csv
  ahu: ahu.csv

api_urls:
  psi: %s

parameters:
  outdoor_co2_ppm: 415
  enable_bms_filter_check: true

defaults:
  sensor_reading_default: 0

thresholds:
  triggering:
    co2_ppm_above_outdoor: 500
    tvoc_ug_m3: 500
    pm2_5_ug_m3: 25
    pm10_ug_m3: 50
    hcho_ug_m3: 100
    rh_percent_max: 70
    temp_c_min: 23
    temp_c_max: 25
    persistence_minutes: 2
    pad_increase_percent: 5
    max_dilution_cycles: 3
  normalization:
    co2_ppm_above_outdoor: 400
    tvoc_ug_m3: 400
    pm2_5_ug_m3: 20
    pm10_ug_m3: 40
    hcho_ug_m3: 80
    rh_percent_max: 65
  psi:
    unhealthy_min: 101
    unhealthy_max: 200
    very_unhealthy_min: 201

sensor_to_vav_map:
  "047": vav_01

actions:
  branch_b:
    vav_flow_increase_pct: 10
    chw_valve_increase_pct: 5
  branch_c:
    vav_flow_decrease_pct: 10
    chw_valve_decrease_pct: 5
  branch_d:
    chw_valve_increase_pct: 10
`

// writeRunFixtures lays out a config file and data directory for a run where
// sensor 047 holds a TVOC violation long enough to escalate, then recovers.
func writeRunFixtures(t *testing.T, psiURL string) (configPath, dataDir string) {
	t.Helper()

	dir := t.TempDir()
	configPath = filepath.Join(dir, "config.yaml")
	dataDir = filepath.Join(dir, "data")

	require.NoError(t, os.MkdirAll(dataDir, 0o750))
	require.NoError(t, os.WriteFile(configPath,
		[]byte(fmt.Sprintf(configTemplate, psiURL)), config.DefaultFilePermissions))

	var iaq, vav, ahu strings.Builder

	iaq.WriteString("timestamp,sensor_id,co2,tvoc,pm2_5,pm10,hcho,humidity,temperature\n")
	vav.WriteString("timestamp,vav_id,supflosp,cmaxflo,ocmnc_sp\n")
	ahu.WriteString("timestamp,pri_filt_sts,sec_filt_sts,fad_fb,fad_max_stpt\n")

	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, tvoc := range []float64{600, 600, 600, 300} {
		ts := start.Add(time.Duration(i) * time.Minute).Format("2006-01-02 15:04:05")

		fmt.Fprintf(&iaq, "%s,047,450,%g,8,15,40,55,24\n", ts, tvoc)
		fmt.Fprintf(&vav, "%s,vav_01,500,1000,200\n", ts)
		fmt.Fprintf(&ahu, "%s,0,0,80,100\n", ts)
	}

	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "iaq.csv"),
		[]byte(iaq.String()), config.DefaultFilePermissions))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "vav.csv"),
		[]byte(vav.String()), config.DefaultFilePermissions))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "ahu.csv"),
		[]byte(ahu.String()), config.DefaultFilePermissions))

	return configPath, dataDir
}

func TestRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"items": [{"readings": {"psi_twenty_four_hourly": {"central": 150}}}]}}`))
	}))
	defer srv.Close()

	configPath, dataDir := writeRunFixtures(t, srv.URL)
	reportsDir := filepath.Join(t.TempDir(), "reports")

	err := Run(context.Background(), &Options{
		ConfigPath: configPath,
		DataDir:    dataDir,
		ReportsDir: reportsDir,
		PSITimeout: time.Second,
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(reportsDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var detailed string

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "detailed_simulation_log_") {
			detailed = filepath.Join(reportsDir, entry.Name())
		}
	}

	require.NotEmpty(t, detailed)

	contents, err := os.ReadFile(detailed)
	require.NoError(t, err)

	// The haze advisory leads, followed by the TVOC escalation and recovery.
	text := string(contents)
	require.Contains(t, text, "PSI Alert")
	require.Contains(t, text, "Haze Mode")
	require.Contains(t, text, "Branch Routing")
	require.Contains(t, text, "Dilution Cycle Started")
	require.Contains(t, text, "VAV Action")
	require.Contains(t, text, "Normalization")
}

func TestRunWithoutPSIFeed(t *testing.T) {
	// An unreachable feed degrades to a run without the outdoor advisory.
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	srv.Close()

	configPath, dataDir := writeRunFixtures(t, srv.URL)
	reportsDir := filepath.Join(t.TempDir(), "reports")

	err := Run(context.Background(), &Options{
		ConfigPath: configPath,
		DataDir:    dataDir,
		ReportsDir: reportsDir,
		PSITimeout: time.Second,
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(reportsDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestRunMissingConfig(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{
		ConfigPath: filepath.Join(t.TempDir(), "absent.yaml"),
	})
	require.Error(t, err)
}

func TestRunMissingData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"items": []}}`))
	}))
	defer srv.Close()

	configPath, _ := writeRunFixtures(t, srv.URL)

	err := Run(context.Background(), &Options{
		ConfigPath: configPath,
		DataDir:    t.TempDir(),
		ReportsDir: t.TempDir(),
	})
	require.Error(t, err)
}

func TestRebaseDataFiles(t *testing.T) {
	t.Parallel()

	files := config.DataFiles{
		IAQ: "iaq.csv",
		VAV: filepath.Join(string(filepath.Separator), "exports", "vav.csv"),
		AHU: "ahu.csv",
	}

	rebased := rebaseDataFiles(files, filepath.Join("data", "raw"))
	require.Equal(t, filepath.Join("data", "raw", "iaq.csv"), rebased.IAQ)
	require.Equal(t, files.VAV, rebased.VAV)
	require.Equal(t, filepath.Join("data", "raw", "ahu.csv"), rebased.AHU)

	untouched := rebaseDataFiles(files, "")
	require.Equal(t, files, untouched)
}
