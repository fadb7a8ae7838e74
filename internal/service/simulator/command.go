package simulator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/oshokin/iaq-supervisor/internal/config"
	domain "github.com/oshokin/iaq-supervisor/internal/domain/iaq"
	"github.com/oshokin/iaq-supervisor/internal/logger"
	"github.com/oshokin/iaq-supervisor/internal/repository/dataset"
	"github.com/oshokin/iaq-supervisor/internal/repository/report"
	"github.com/oshokin/iaq-supervisor/internal/service/engine"
	"github.com/oshokin/iaq-supervisor/internal/service/psi"
	"github.com/oshokin/iaq-supervisor/internal/service/publisher"
)

// Options controls a single simulation run.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// DataDir optionally rebases relative data file paths from the configuration.
	DataDir string
	// ReportsDir receives the generated CSV reports.
	ReportsDir string
	// PSITimeout specifies the outdoor feed request timeout.
	PSITimeout time.Duration
}

// DefaultReportsDir receives reports when no directory is specified.
const DefaultReportsDir = "reports"

// Run executes one full simulation: load configuration and data, replay the
// timeline through the decision engine, write the CSV reports, and stream
// the event log to MQTT when a broker is configured.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "iaq-simulator")

	logger.Info(ctx, "Starting IAQ control system simulation")

	// Stamp the run before any slow work so filenames reflect start time.
	runStamp := time.Now().Format(report.RunStampLayout)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.ReportsDir == "" {
		opts.ReportsDir = DefaultReportsDir
	}

	files := rebaseDataFiles(cfg.DataFiles, opts.DataDir)

	ds, err := dataset.NewLoader(files).Load(ctx)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	eng, err := engine.New(cfg, newPSIFetcher(ctx, cfg.PSIURL, opts.PSITimeout))
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	eventLog, err := eng.Run(ctx, ds)
	if err != nil {
		return fmt.Errorf("run simulation: %w", err)
	}

	if _, _, err = report.NewWriter(opts.ReportsDir).Generate(ctx, eventLog, runStamp); err != nil {
		return fmt.Errorf("generate reports: %w", err)
	}

	if cfg.MQTT.Broker != "" {
		publishEvents(ctx, cfg.MQTT, eventLog)
	}

	logger.Info(ctx, "Simulation finished")

	return nil
}

// rebaseDataFiles joins relative data file paths onto the data directory.
// Absolute paths and an empty directory pass through unchanged.
func rebaseDataFiles(files config.DataFiles, dataDir string) config.DataFiles {
	if dataDir == "" {
		return files
	}

	for _, path := range []*string{&files.IAQ, &files.VAV, &files.AHU} {
		if !filepath.IsAbs(*path) {
			*path = filepath.Join(dataDir, *path)
		}
	}

	return files
}

// newPSIFetcher builds the outdoor feed client. A missing or invalid
// endpoint degrades to "no advisory" rather than failing the run.
func newPSIFetcher(ctx context.Context, endpoint string, timeout time.Duration) engine.PSIFetcher {
	if endpoint == "" {
		return nil
	}

	client, err := psi.NewClient(endpoint, psi.WithCallTimeout(timeout))
	if err != nil {
		logger.WarnKV(ctx, "PSI client unavailable, proceeding without advisory", "error", err)

		return nil
	}

	return client
}

// publishEvents streams the event log to the configured broker. Broker
// failures are logged, never fatal: the CSV reports already persist the run.
func publishEvents(ctx context.Context, cfg config.MQTTConfig, eventLog []domain.EventRecord) {
	pub, err := publisher.Connect(cfg)
	if err != nil {
		logger.ErrorKV(ctx, "MQTT broker unavailable, skipping event publishing",
			"broker", cfg.Broker, "error", err)

		return
	}

	defer func() {
		_ = pub.Close()
	}()

	pub.PublishAll(ctx, eventLog)
}
