package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/pidsim/internal/config"
	"github.com/san-kum/pidsim/internal/dynamo"
	"github.com/san-kum/pidsim/internal/export"
	"github.com/san-kum/pidsim/internal/metrics"
	"github.com/san-kum/pidsim/internal/sim"
	"github.com/san-kum/pidsim/internal/storage"
	"github.com/san-kum/pidsim/internal/viz"
)

var presetInfo = map[string]string{
	"baseline":      "step at t=1, -0.2 disturbance at t=3.5, output [-2,2], integral [-1,1]",
	"no_antiwindup": "baseline without integral limits",
	"single":        "baseline without disturbance",
	"unsaturated":   "baseline without output or integral limits",
}

// loadScenario resolves the preset, then the config file, then any flag the
// user set explicitly.
func loadScenario(cmd *cobra.Command) (*config.Scenario, error) {
	sc := config.GetPreset(preset)
	if sc == nil {
		return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		sc = loaded
		if sc.Name == "" {
			base := filepath.Base(configFile)
			sc.Name = strings.TrimSuffix(base, filepath.Ext(base))
		}
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		sc.Dt = dt
	}
	if flags.Changed("time") {
		sc.Duration = duration
	}
	if flags.Changed("kp") {
		sc.Controller.Kp = kp
	}
	if flags.Changed("ki") {
		sc.Controller.Ki = ki
	}
	if flags.Changed("kd") {
		sc.Controller.Kd = kd
	}
	if flags.Changed("setpoint") {
		sc.Setpoint.Stepped = setpoint
	}
	if flags.Changed("switch") {
		sc.Setpoint.SwitchTime = switchTime
	}
	if flags.Changed("y0") {
		sc.Plant.Y0 = y0
	}
	if noDisturbance {
		sc.Disturbance.Enabled = false
	}
	if noAntiWindup {
		sc.Controller.IntegralLimits = nil
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

func buildWithMetrics(sc *config.Scenario) (*sim.Loop, error) {
	loop, err := sc.Build()
	if err != nil {
		return nil, err
	}
	for _, m := range metrics.Defaults(sc.Controller.OutputLimits) {
		loop.AddMetric(m)
	}
	return loop, nil
}

func recoveryOptions(sc *config.Scenario) metrics.RecoveryOptions {
	opts := metrics.DefaultRecoveryOptions()
	opts.DisturbanceTime = sc.Disturbance.OnsetTime
	return opts
}

func runSimulation(cmd *cobra.Command, args []string) error {
	sc, err := loadScenario(cmd)
	if err != nil {
		return err
	}

	loop, err := buildWithMetrics(sc)
	if err != nil {
		return err
	}

	var sinks []dynamo.Sink

	var csvOut *export.CSVWriter
	if csvPath != "" {
		var w io.Writer = os.Stdout
		if csvPath != "-" {
			f, err := os.Create(csvPath)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		csvOut = export.NewCSVWriter(w)
		sinks = append(sinks, csvOut)
	}

	var recorder *storage.RunWriter
	if archivePath != "" {
		archive, err := storage.OpenArchive(archivePath)
		if err != nil {
			return err
		}
		defer archive.Close()

		recorder, err = archive.NewRun(sc.Name)
		if err != nil {
			return err
		}
		// flushes whatever was buffered when the run fails; a no-op after
		// the explicit Close below
		defer recorder.Close()
		sinks = append(sinks, recorder)
		logger.Debug("recording to archive", zap.String("db", archive.Path()), zap.String("id", recorder.ID()))
	}

	var sink dynamo.Sink
	if len(sinks) > 0 {
		sink = dynamo.MultiSink(sinks...)
	}

	logger.Info("running simulation",
		zap.String("scenario", sc.Name),
		zap.Int("ticks", loop.Steps()+1),
		zap.Float64("dt", sc.Dt))
	start := time.Now()

	result, err := loop.Run(sink)
	if err != nil {
		return err
	}
	result.Name = sc.Name

	if csvOut != nil {
		if err := csvOut.Flush(); err != nil {
			return err
		}
		logger.Debug("csv written", zap.String("path", csvPath), zap.Int("rows", csvOut.Rows()))
	}
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			return err
		}
		logger.Info("run archived", zap.String("db", archivePath), zap.String("id", recorder.ID()))
	}

	logger.Info("simulation finished", zap.Duration("elapsed", time.Since(start)))

	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(sc, result)
		if err != nil {
			return err
		}
		logger.Info("run stored", zap.String("id", runID), zap.String("dir", st.Dir()))
	}

	if csvPath == "-" {
		return nil
	}

	last, y, _ := result.Final()
	fmt.Println(viz.MetricsPanel(sc.Name, result.Metrics))
	fmt.Println(viz.MetricRow("final output", fmt.Sprintf("%.6f", y)))
	fmt.Println(viz.MetricRow("final control", fmt.Sprintf("%.6f", last.Control)))

	if sc.Disturbance.Enabled {
		rec, err := metrics.DisturbanceRecovery(result.Samples, recoveryOptions(sc))
		if err != nil {
			logger.Warn("recovery metrics unavailable", zap.Error(err))
		} else {
			fmt.Println(viz.RecoveryPanel("disturbance recovery", rec))
		}
	}

	return nil
}

func compareScenarios(cmd *cobra.Command, args []string) error {
	suite := config.DefaultSuite()
	if len(args) == 1 {
		loaded, err := config.LoadSuite(args[0])
		if err != nil {
			return fmt.Errorf("failed to load suite: %w", err)
		}
		suite = loaded
	}
	if len(suite.Scenarios) == 0 {
		return fmt.Errorf("suite has no scenarios")
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	jobs := suite.Jobs()
	ensemble := sim.NewEnsemble()
	writers := make([]*export.CSVWriter, len(jobs))
	for i := range jobs {
		sc := suite.Scenarios[i].Clone()
		jobs[i].Build = func() (*sim.Loop, error) { return buildWithMetrics(sc) }

		path := filepath.Join(outDir, fmt.Sprintf("simulation_%s.csv", jobs[i].Name))
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()

		writers[i] = export.NewCSVWriter(f)
		jobs[i].Sink = writers[i]
		logger.Debug("writing samples", zap.String("scenario", jobs[i].Name), zap.String("path", path))
		ensemble.Add(jobs[i])
	}

	logger.Info("running comparison", zap.Int("scenarios", ensemble.Len()))
	start := time.Now()

	results, err := ensemble.Run()
	if err != nil {
		return err
	}
	for i, w := range writers {
		if err := w.Flush(); err != nil {
			return fmt.Errorf("%s: %w", jobs[i].Name, err)
		}
	}
	logger.Info("comparison finished", zap.Duration("elapsed", time.Since(start)), zap.String("out", outDir))

	fmt.Println(viz.CompareGraph(results, 70, 14, "measurement"))
	fmt.Println()

	for i, res := range results {
		sc := &suite.Scenarios[i]
		if !sc.Disturbance.Enabled {
			fmt.Println(viz.MetricsPanel(res.Name, res.Metrics))
			continue
		}
		rec, err := metrics.DisturbanceRecovery(res.Samples, recoveryOptions(sc))
		if err != nil {
			logger.Warn("recovery metrics unavailable", zap.String("scenario", res.Name), zap.Error(err))
			continue
		}
		fmt.Println(viz.RecoveryPanel(res.Name, rec))
	}

	if pngPath != "" {
		opts := export.DefaultPlotOptions()
		opts.Title = "Closed-Loop Response Comparison"
		if d := suite.Scenarios[0].Disturbance; d.Enabled {
			opts.Markers = append(opts.Markers, export.Marker{Name: "Disturbance", X: d.OnsetTime})
		}
		if err := export.PlotResponse(pngPath, export.ResponseSeries(results), opts); err != nil {
			return err
		}
		logger.Info("plot written", zap.String("path", pngPath))
	}

	if saveRuns {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		for i, res := range results {
			runID, err := st.Save(&suite.Scenarios[i], res)
			if err != nil {
				return err
			}
			logger.Info("run stored", zap.String("scenario", res.Name), zap.String("id", runID))
		}
	}

	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	sc, err := loadScenario(cmd)
	if err != nil {
		return err
	}

	loop, err := sc.Build()
	if err != nil {
		return err
	}

	m := viz.NewLiveModel(sc.Name, loop, batch)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func writeScenario(cmd *cobra.Command, args []string) error {
	path := "pidsim.yaml"
	if suiteInit {
		path = "suite.yaml"
	}
	if len(args) == 1 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	if suiteInit {
		if err := config.SaveSuite(path, config.DefaultSuite()); err != nil {
			return err
		}
	} else {
		sc := config.GetPreset(preset)
		if sc == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		if err := config.Save(path, sc); err != nil {
			return err
		}
	}

	logger.Info("scenario written", zap.String("path", path))
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	fmt.Println("presets:")
	for _, name := range config.ListPresets() {
		fmt.Printf("  %-14s %s\n", name, presetInfo[name])
	}
	return nil
}
