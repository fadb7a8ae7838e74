package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/iaq-supervisor/internal/config"
)

const (
	iaqContents = `timestamp,sensor_id,co2,tvoc,pm2_5,pm10,hcho,humidity,temperature
2025-01-01 12:00:00,047,650.5,120,8,15,40,55,24.1
2025-01-01 12:00:00,048,700,,9,16,,60,
2025-01-01 12:01:00,047,655,125,8,15,41,56,24.2
`

	vavContents = `timestamp,vav_id,supflosp,cmaxflo,ocmnc_sp
2025-01-01 12:00:00,vav_01,500,1000,200
2025-01-01 12:01:00,vav_01,550,1000,200
`

	ahuContents = `timestamp,pri_filt_sts,sec_filt_sts,fad_fb,fad_max_stpt
2025-01-01 12:00:00,0,0,80,100
2025-01-01 12:01:00,1,,85,
`
)

// writeFixtures materializes the three exports in a temp directory.
func writeFixtures(t *testing.T, iaq, vav, ahu string) config.DataFiles {
	t.Helper()

	dir := t.TempDir()
	files := config.DataFiles{
		IAQ: filepath.Join(dir, "iaq.csv"),
		VAV: filepath.Join(dir, "vav.csv"),
		AHU: filepath.Join(dir, "ahu.csv"),
	}

	require.NoError(t, os.WriteFile(files.IAQ, []byte(iaq), config.DefaultFilePermissions))
	require.NoError(t, os.WriteFile(files.VAV, []byte(vav), config.DefaultFilePermissions))
	require.NoError(t, os.WriteFile(files.AHU, []byte(ahu), config.DefaultFilePermissions))

	return files
}

func TestLoad(t *testing.T) {
	t.Parallel()

	files := writeFixtures(t, iaqContents, vavContents, ahuContents)

	ds, err := NewLoader(files).Load(context.Background())
	require.NoError(t, err)
	require.False(t, ds.Empty())

	timestamps := ds.Timestamps()
	require.Len(t, timestamps, 2)

	first := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(time.Minute)
	require.Equal(t, first, timestamps[0])
	require.Equal(t, second, timestamps[1])

	readings := ds.ReadingsAt(first)
	require.Len(t, readings, 2)
	require.Equal(t, "047", readings[0].SensorID)
	require.NotNil(t, readings[0].CO2)
	require.InDelta(t, 650.5, *readings[0].CO2, 0)

	// Empty cells stay missing rather than becoming zeros.
	gappy := readings[1]
	require.Equal(t, "048", gappy.SensorID)
	require.Nil(t, gappy.TVOC)
	require.Nil(t, gappy.HCHO)
	require.Nil(t, gappy.Temperature)
	require.NotNil(t, gappy.Humidity)

	vav, ok := ds.VAVAt(second, "vav_01")
	require.True(t, ok)
	require.InDelta(t, 550, vav.FlowSetpoint, 0)
	require.InDelta(t, 1000, vav.MaxFlowSetpoint, 0)
	require.InDelta(t, 200, vav.MinFlowSetpoint, 0)

	_, ok = ds.VAVAt(second, "vav_99")
	require.False(t, ok)

	ahu, ok := ds.AHUAt(second)
	require.True(t, ok)
	require.NotNil(t, ahu.PrimaryFilterStatus)
	require.InDelta(t, 1, *ahu.PrimaryFilterStatus, 0)
	require.Nil(t, ahu.SecondaryFilterStatus)
	require.Nil(t, ahu.DamperMaxSetpoint)
	require.True(t, ahu.FilterAlarmActive())
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	files := writeFixtures(t, iaqContents, vavContents, ahuContents)
	files.AHU = filepath.Join(t.TempDir(), "missing.csv")

	_, err := NewLoader(files).Load(context.Background())
	require.Error(t, err)
}

func TestLoadRejectsUnknownHeader(t *testing.T) {
	t.Parallel()

	badIAQ := `timestamp,device_id,co2,tvoc,pm2_5,pm10,hcho,humidity,temperature
2025-01-01 12:00:00,047,650,120,8,15,40,55,24
`
	files := writeFixtures(t, badIAQ, vavContents, ahuContents)

	_, err := NewLoader(files).Load(context.Background())
	require.ErrorIs(t, err, errUnexpectedHeader)
}

func TestLoadRejectsMalformedRows(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		iaq  string
		vav  string
	}{
		{
			name: "bad timestamp",
			iaq: `timestamp,sensor_id,co2,tvoc,pm2_5,pm10,hcho,humidity,temperature
01/01/2025 12:00,047,650,120,8,15,40,55,24
`,
			vav: vavContents,
		},
		{
			name: "non-numeric reading",
			iaq: `timestamp,sensor_id,co2,tvoc,pm2_5,pm10,hcho,humidity,temperature
2025-01-01 12:00:00,047,n/a,120,8,15,40,55,24
`,
			vav: vavContents,
		},
		{
			name: "empty mandatory setpoint",
			iaq:  iaqContents,
			vav: `timestamp,vav_id,supflosp,cmaxflo,ocmnc_sp
2025-01-01 12:00:00,vav_01,,1000,200
`,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			files := writeFixtures(t, tc.iaq, tc.vav, ahuContents)

			_, err := NewLoader(files).Load(context.Background())
			require.Error(t, err)
		})
	}
}
