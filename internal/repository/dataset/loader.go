package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/oshokin/iaq-supervisor/internal/config"
	domain "github.com/oshokin/iaq-supervisor/internal/domain/iaq"
	"github.com/oshokin/iaq-supervisor/internal/logger"
)

// TimestampLayout is the wall-clock format used by all three exports.
const TimestampLayout = "2006-01-02 15:04:05"

// Expected column layouts of the tidy CSV exports.
var (
	iaqHeader = []string{"timestamp", "sensor_id", "co2", "tvoc", "pm2_5", "pm10", "hcho", "humidity", "temperature"}
	vavHeader = []string{"timestamp", "vav_id", "supflosp", "cmaxflo", "ocmnc_sp"}
	ahuHeader = []string{"timestamp", "pri_filt_sts", "sec_filt_sts", "fad_fb", "fad_max_stpt"}
)

// errUnexpectedHeader is returned when a file's first row does not match the
// expected export layout.
var errUnexpectedHeader = errors.New("unexpected header")

// Loader reads the three tidy CSV exports into an in-memory dataset indexed
// for minute-by-minute replay.
type Loader struct {
	// files locates the IAQ, VAV and AHU exports on disk.
	files config.DataFiles
}

// NewLoader creates a loader over the configured export files.
func NewLoader(files config.DataFiles) *Loader {
	return &Loader{files: files}
}

// Load reads and indexes all three exports. Empty cells become missing
// readings; they are never coerced to zero here, so the engine can apply its
// own substitution rules.
func (l *Loader) Load(ctx context.Context) (*domain.Dataset, error) {
	readings, err := l.loadIAQ()
	if err != nil {
		return nil, fmt.Errorf("load IAQ file: %w", err)
	}

	vav, err := l.loadVAV()
	if err != nil {
		return nil, fmt.Errorf("load VAV file: %w", err)
	}

	ahu, err := l.loadAHU()
	if err != nil {
		return nil, fmt.Errorf("load AHU file: %w", err)
	}

	logger.InfoKV(ctx, "Dataset loaded",
		"iaq_rows", len(readings), "vav_rows", len(vav), "ahu_rows", len(ahu))

	return domain.NewDataset(readings, vav, ahu), nil
}

// loadIAQ reads the sensor export.
func (l *Loader) loadIAQ() ([]domain.Reading, error) {
	var readings []domain.Reading

	err := readRows(l.files.IAQ, iaqHeader, func(row []string) error {
		ts, err := parseTimestamp(row[0])
		if err != nil {
			return err
		}

		reading := domain.Reading{
			SensorID:  row[1],
			Timestamp: ts,
		}

		for i, target := range []**float64{
			&reading.CO2, &reading.TVOC, &reading.PM25,
			&reading.PM10, &reading.HCHO, &reading.Humidity, &reading.Temperature,
		} {
			value, err := parseOptional(row[i+2])
			if err != nil {
				return err
			}

			*target = value
		}

		readings = append(readings, reading)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return readings, nil
}

// loadVAV reads the terminal-unit export. Setpoint columns are mandatory in
// the export, so empty cells are row errors rather than missing values.
func (l *Loader) loadVAV() ([]domain.VAVState, error) {
	var states []domain.VAVState

	err := readRows(l.files.VAV, vavHeader, func(row []string) error {
		ts, err := parseTimestamp(row[0])
		if err != nil {
			return err
		}

		flow, err := parseFloat(row[2])
		if err != nil {
			return err
		}

		maxFlow, err := parseFloat(row[3])
		if err != nil {
			return err
		}

		minFlow, err := parseFloat(row[4])
		if err != nil {
			return err
		}

		states = append(states, domain.VAVState{
			VAVID:           row[1],
			Timestamp:       ts,
			FlowSetpoint:    flow,
			MaxFlowSetpoint: maxFlow,
			MinFlowSetpoint: minFlow,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return states, nil
}

// loadAHU reads the air-handling-unit export.
func (l *Loader) loadAHU() ([]domain.AHUState, error) {
	var states []domain.AHUState

	err := readRows(l.files.AHU, ahuHeader, func(row []string) error {
		ts, err := parseTimestamp(row[0])
		if err != nil {
			return err
		}

		state := domain.AHUState{Timestamp: ts}

		for i, target := range []**float64{
			&state.PrimaryFilterStatus, &state.SecondaryFilterStatus,
			&state.DamperFeedback, &state.DamperMaxSetpoint,
		} {
			value, err := parseOptional(row[i+1])
			if err != nil {
				return err
			}

			*target = value
		}

		states = append(states, state)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return states, nil
}

// readRows streams a CSV file row by row after validating its header.
func readRows(path string, header []string, handle func(row []string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}

	defer func() {
		_ = file.Close()
	}()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(header)

	first, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	for i, name := range header {
		if first[i] != name {
			return fmt.Errorf("%w: column %d is %q, want %q", errUnexpectedHeader, i, first[i], name)
		}
	}

	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}

		if err = handle(row); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

// parseTimestamp parses the export's wall-clock format.
func parseTimestamp(field string) (time.Time, error) {
	ts, err := time.Parse(TimestampLayout, field)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", field, err)
	}

	return ts, nil
}

// parseOptional parses a possibly-empty numeric cell. Empty means the sensor
// did not report a value at this timestamp.
func parseOptional(field string) (*float64, error) {
	if field == "" {
		return nil, nil
	}

	value, err := parseFloat(field)
	if err != nil {
		return nil, err
	}

	return &value, nil
}

// parseFloat parses a mandatory numeric cell.
func parseFloat(field string) (float64, error) {
	value, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, fmt.Errorf("parse value %q: %w", field, err)
	}

	return value, nil
}
