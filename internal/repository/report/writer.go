package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	domain "github.com/oshokin/iaq-supervisor/internal/domain/iaq"
	"github.com/oshokin/iaq-supervisor/internal/logger"
)

const (
	// RunStampLayout formats the per-run timestamp embedded in filenames.
	RunStampLayout = "2006-01-02_15-04-05"

	// timestampLayout formats event timestamps inside the detailed log.
	timestampLayout = "2006-01-02 15:04:05"

	// missingTimestamp marks records issued outside the replay clock, such
	// as the pre-run outdoor advisory.
	missingTimestamp = "N/A"

	// directoryPermissions applies when the reports directory is created.
	directoryPermissions = 0o750
)

var (
	detailedHeader = []string{"timestamp", "sensor_id", "event", "details", "reasons", "dilution_cycle"}
	summaryHeader  = []string{"sensor_id", "event", "count"}
)

// Writer persists a run's event log as a pair of CSV reports: the full
// per-record log and a per-sensor event frequency summary.
type Writer struct {
	// dir is the directory receiving the report files.
	dir string
}

// NewWriter creates a writer targeting the provided directory. The directory
// is created on first use.
func NewWriter(dir string) *Writer {
	return &Writer{dir: filepath.Clean(dir)}
}

// Generate writes both reports and returns their paths. An empty record set
// produces no files. The run stamp keeps successive runs from overwriting
// each other.
func (w *Writer) Generate(
	ctx context.Context,
	records []domain.EventRecord,
	runStamp string,
) (detailedPath, summaryPath string, err error) {
	if len(records) == 0 {
		logger.Warn(ctx, "No event records were generated, skipping report creation")

		return "", "", nil
	}

	if err = os.MkdirAll(w.dir, directoryPermissions); err != nil {
		return "", "", fmt.Errorf("create reports directory: %w", err)
	}

	detailedPath = filepath.Join(w.dir, fmt.Sprintf("detailed_simulation_log_%s.csv", runStamp))
	if err = w.writeDetailed(detailedPath, records); err != nil {
		return "", "", fmt.Errorf("write detailed log: %w", err)
	}

	logger.InfoKV(ctx, "Detailed log saved", "path", detailedPath)

	summaryPath = filepath.Join(w.dir, fmt.Sprintf("summary_report_%s.csv", runStamp))
	if err = w.writeSummary(summaryPath, records); err != nil {
		return "", "", fmt.Errorf("write summary report: %w", err)
	}

	logger.InfoKV(ctx, "Summary report saved", "path", summaryPath)

	return detailedPath, summaryPath, nil
}

// writeDetailed writes every record in its original order.
func (w *Writer) writeDetailed(path string, records []domain.EventRecord) error {
	rows := make([][]string, 0, len(records))

	for _, r := range records {
		ts := missingTimestamp
		if !r.Timestamp.IsZero() {
			ts = r.Timestamp.Format(timestampLayout)
		}

		rows = append(rows, []string{
			ts,
			r.SensorID,
			r.Event,
			r.Details,
			strings.Join(r.Reasons, ", "),
			strconv.Itoa(r.DilutionCycle),
		})
	}

	return writeCSV(path, detailedHeader, rows)
}

// writeSummary writes per-sensor event counts, sorted by sensor then event
// so successive runs over the same data diff cleanly.
func (w *Writer) writeSummary(path string, records []domain.EventRecord) error {
	type group struct {
		sensorID string
		event    string
	}

	counts := make(map[group]int)
	for _, r := range records {
		counts[group{sensorID: r.SensorID, event: r.Event}]++
	}

	groups := make([]group, 0, len(counts))
	for g := range counts {
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].sensorID != groups[j].sensorID {
			return groups[i].sensorID < groups[j].sensorID
		}

		return groups[i].event < groups[j].event
	})

	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{g.sensorID, g.event, strconv.Itoa(counts[g])})
	}

	return writeCSV(path, summaryHeader, rows)
}

// writeCSV writes a header and rows to a new file at path.
func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)

	if err = writer.Write(header); err != nil {
		_ = file.Close()

		return err
	}

	if err = writer.WriteAll(rows); err != nil {
		_ = file.Close()

		return err
	}

	writer.Flush()
	if err = writer.Error(); err != nil {
		_ = file.Close()

		return err
	}

	return file.Close()
}
