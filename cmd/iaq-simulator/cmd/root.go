package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/oshokin/iaq-supervisor/internal/config"
	"github.com/oshokin/iaq-supervisor/internal/logger"
	"github.com/oshokin/iaq-supervisor/internal/service/simulator"
	"github.com/oshokin/iaq-supervisor/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// dataDir rebases relative data file paths from the configuration.
	dataDir string
	// reportsDir receives the generated CSV reports.
	reportsDir string
	// logLevel sets the minimum logging level for the run.
	logLevel string
	// psiTimeout bounds the outdoor feed request.
	psiTimeout time.Duration

	// rootCmd represents the base command for running a simulation.
	rootCmd = &cobra.Command{
		Use:   "iaq-simulator",
		Short: "Replay building sensor data through the IAQ control logic.",
		Long: `Offline simulator for an indoor-air-quality supervision system.

Replays historical sensor, terminal-unit (VAV) and air-handling-unit (AHU)
exports minute by minute through the corrective control logic: debounced
alert triggering, branch-based dilution, cooling, warming and
dehumidification actions, hysteresis-based recovery, plus building-level
outdoor-haze and filter-alarm gates.

Each run writes a detailed event log and a per-sensor summary as CSV files,
and can optionally stream the event log to an MQTT broker.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			// Environment overrides (feed URL, broker address) may come
			// from a local .env file; its absence is fine.
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				logger.WarnKV(ctx, "Skipping .env file", "error", err)
			}

			simulatorOptions := &simulator.Options{
				ConfigPath: configPath,
				DataDir:    dataDir,
				ReportsDir: reportsDir,
				PSITimeout: psiTimeout,
			}

			return simulator.Run(ctx, simulatorOptions)
		},
	}
)

// Execute runs the iaq-simulator CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&dataDir, "data-dir", "d", "", "directory containing the CSV exports")
	rootCmd.Flags().StringVarP(&reportsDir, "reports-dir", "r", simulator.DefaultReportsDir, "directory receiving the reports")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", logger.Level().String(), "minimum logging level")
	rootCmd.Flags().DurationVar(&psiTimeout, "psi-timeout", 0, "outdoor feed request timeout")
}
