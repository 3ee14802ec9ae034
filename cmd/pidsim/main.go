package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/san-kum/pidsim/internal/config"
)

var (
	dataDir  string
	logLevel string
	logger   = zap.NewNop()

	// scenario selection, shared by run and live
	preset        string
	configFile    string
	dt            float64
	duration      float64
	kp            float64
	ki            float64
	kd            float64
	setpoint      float64
	switchTime    float64
	y0            float64
	noDisturbance bool
	noAntiWindup  bool

	csvPath     string
	archivePath string
	noSave      bool
	pngPath     string
	outDir      string
	saveRuns    bool
	batch       int
	suiteInit   bool

	onset      float64
	preWindow  float64
	postWindow float64
	band       float64
	settleBand float64
)

// main loads .env, registers commands and flags, and executes the root
// command. Exit handlers registered with atexit run on every exit path.
func main() {
	if err := loadEnv(envOr("PIDSIM_ENV_FILE", ".env")); err != nil {
		fmt.Fprintf(os.Stderr, "pidsim: %v\n", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:           "pidsim",
		Short:         "closed-loop pid simulation lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(logLevel)
			if err != nil {
				return err
			}
			logger = l
			atexit.Register(func() { _ = logger.Sync() })
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", envOr("PIDSIM_DATA_DIR", ".pidsim"), "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("PIDSIM_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run one scenario and store it",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addScenarioFlags(runCmd)
	runCmd.Flags().StringVar(&csvPath, "csv", "", "also write samples as csv to this path (- for stdout)")
	runCmd.Flags().StringVar(&archivePath, "archive", "", "also record samples in this sqlite database")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run in the data directory")

	compareCmd := &cobra.Command{
		Use:   "compare [suite.yaml]",
		Short: "run several scenarios in parallel and compare their disturbance recovery",
		Args:  cobra.MaximumNArgs(1),
		RunE:  compareScenarios,
	}
	compareCmd.Flags().StringVar(&outDir, "out", ".", "directory for simulation_<name>.csv files")
	compareCmd.Flags().StringVar(&pngPath, "png", "", "write a comparison plot to this path")
	compareCmd.Flags().BoolVar(&saveRuns, "save", false, "store every run in the data directory")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show metadata and metrics of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the response of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&pngPath, "png", "", "write the plot to an image instead of the terminal")

	metricsCmd := &cobra.Command{
		Use:   "metrics [run_id]",
		Short: "compute step response and disturbance recovery metrics",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	metricsCmd.Flags().Float64Var(&onset, "t0", 0, "disturbance time (default: scenario onset)")
	metricsCmd.Flags().Float64Var(&preWindow, "pre", 0.5, "window before t0 for the pre-disturbance level")
	metricsCmd.Flags().Float64Var(&postWindow, "post", 2.0, "window after t0 for drop and recovery")
	metricsCmd.Flags().Float64Var(&band, "band", 0.02, "relative recovery band")
	metricsCmd.Flags().Float64Var(&settleBand, "settle-band", 0.02, "relative settling band of the step response")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run samples to csv",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&csvPath, "output", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and samples to json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "step a scenario interactively in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addScenarioFlags(liveCmd)
	liveCmd.Flags().IntVar(&batch, "batch", 5, "ticks per frame")

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a scenario file to start from",
		Args:  cobra.MaximumNArgs(1),
		RunE:  writeScenario,
	}
	initCmd.Flags().StringVar(&preset, "preset", "baseline", "preset to write")
	initCmd.Flags().BoolVar(&suiteInit, "suite", false, "write the comparison suite instead of a single scenario")

	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "inspect a sqlite run archive",
	}
	archiveCmd.AddCommand(
		&cobra.Command{
			Use:   "ls [db]",
			Short: "list archived runs",
			Args:  cobra.ExactArgs(1),
			RunE:  listArchive,
		},
		&cobra.Command{
			Use:   "dump [db] [run_id]",
			Short: "write the samples of an archived run as csv",
			Args:  cobra.ExactArgs(2),
			RunE:  dumpArchive,
		},
	)

	rootCmd.AddCommand(runCmd, compareCmd, listCmd, showCmd, plotCmd, metricsCmd, exportCSVCmd, exportJSONCmd, presetsCmd, liveCmd, initCmd, archiveCmd)

	code := 0
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pidsim: %v\n", err)
		code = 1
	}
	atexit.Exit(code)
}

func addScenarioFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&preset, "preset", "baseline", "preset configuration")
	cmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml), overrides the preset")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().Float64Var(&kp, "kp", config.DefaultKp, "pid kp")
	cmd.Flags().Float64Var(&ki, "ki", config.DefaultKi, "pid ki")
	cmd.Flags().Float64Var(&kd, "kd", config.DefaultKd, "pid kd")
	cmd.Flags().Float64Var(&setpoint, "setpoint", 1.0, "setpoint after the step")
	cmd.Flags().Float64Var(&switchTime, "switch", config.DefaultSwitchTime, "time of the setpoint step")
	cmd.Flags().Float64Var(&y0, "y0", 0.0, "initial plant output")
	cmd.Flags().BoolVar(&noDisturbance, "no-disturbance", false, "disable the measurement disturbance")
	cmd.Flags().BoolVar(&noAntiWindup, "no-antiwindup", false, "disable integral limits")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// loadEnv reads KEY=value pairs from path into the environment. A missing
// file is not an error; variables already set are kept.
func loadEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
