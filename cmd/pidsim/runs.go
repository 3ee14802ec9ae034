package main

import (
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/pidsim/internal/dynamo"
	"github.com/san-kum/pidsim/internal/export"
	"github.com/san-kum/pidsim/internal/metrics"
	"github.com/san-kum/pidsim/internal/sim"
	"github.com/san-kum/pidsim/internal/storage"
	"github.com/san-kum/pidsim/internal/viz"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tDURATION\tDT\tSAMPLES\tIAE")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%d\t%.4f\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Scenario.Duration,
			run.Scenario.Dt,
			run.Samples,
			run.Metrics["iae"],
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Println(viz.Title.Render(meta.Name))
	fmt.Println(viz.MetricRow("id", meta.ID))
	fmt.Println(viz.MetricRow("stored", meta.Timestamp.Format("2006-01-02 15:04:05")))
	fmt.Println(viz.MetricRow("samples", fmt.Sprintf("%d", meta.Samples)))
	fmt.Println()

	if len(meta.Metrics) > 0 {
		fmt.Println(viz.MetricsPanel("metrics", meta.Metrics))
	}
	if meta.Recovery != nil {
		fmt.Println(viz.RecoveryPanel("disturbance recovery", *meta.Recovery))
	}

	scenario, err := yaml.Marshal(meta.Scenario)
	if err != nil {
		return err
	}
	fmt.Println(viz.Subtle.Render("scenario:"))
	fmt.Print(string(scenario))
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}

	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	if pngPath != "" {
		res := &sim.Result{Name: meta.Name, Samples: samples}
		opts := export.DefaultPlotOptions()
		opts.Title = meta.Name
		if d := meta.Scenario.Disturbance; d.Enabled {
			opts.Markers = []export.Marker{{Name: "Disturbance", X: d.OnsetTime}}
		}
		if err := export.PlotResponse(pngPath, export.ResponseSeries([]*sim.Result{res}), opts); err != nil {
			return err
		}
		logger.Info("plot written", zap.String("path", pngPath))
		return nil
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("name: %s\n", meta.Name)
	fmt.Printf("samples: %d\n\n", len(samples))

	fmt.Println(viz.ResponseGraph(samples, 80, 12, "setpoint / measurement"))
	fmt.Println()
	fmt.Println(viz.ControlGraph(samples, 80, 8, "control"))
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}

	if step, ok := metrics.AnalyzeStep(samples, settleBand, stepWindowEnd(meta)); ok {
		rows := map[string]float64{
			"step_time":      step.StepTime,
			"overshoot":      step.Overshoot,
			"final_error":    step.FinalError,
			"mean_abs_error": step.MeanAbsError,
		}
		if step.Rose {
			rows["rise_time"] = step.RiseTime
		}
		if step.Settled {
			rows["settling_time"] = step.SettlingTime
		}
		fmt.Println(viz.MetricsPanel("step response", rows))
	} else {
		fmt.Println(viz.Subtle.Render("no setpoint step in this run"))
	}

	opts := metrics.RecoveryOptions{
		DisturbanceTime: meta.Scenario.Disturbance.OnsetTime,
		PreWindow:       preWindow,
		PostWindow:      postWindow,
		Band:            band,
	}
	if cmd.Flags().Changed("t0") {
		opts.DisturbanceTime = onset
	} else if !meta.Scenario.Disturbance.Enabled {
		return nil
	}

	rec, err := metrics.DisturbanceRecovery(samples, opts)
	if err != nil {
		return err
	}
	fmt.Println(viz.RecoveryPanel("disturbance recovery", rec))
	return nil
}

// stepWindowEnd keeps the step analysis clear of the disturbance.
func stepWindowEnd(meta *storage.RunMetadata) float64 {
	if d := meta.Scenario.Disturbance; d.Enabled {
		return d.OnsetTime
	}
	return math.Inf(1)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	samples, err := st.LoadSamples(args[0])
	if err != nil {
		return err
	}
	return writeSamples(samples, csvPath)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	return st.ExportJSON(os.Stdout, args[0])
}

func listArchive(cmd *cobra.Command, args []string) error {
	archive, err := storage.OpenArchive(args[0])
	if err != nil {
		return err
	}
	defer archive.Close()

	runs, err := archive.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tSAMPLES")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			run.ID,
			run.Name,
			run.Created.Format("2006-01-02 15:04:05"),
			run.Samples,
		)
	}
	return w.Flush()
}

func dumpArchive(cmd *cobra.Command, args []string) error {
	archive, err := storage.OpenArchive(args[0])
	if err != nil {
		return err
	}
	defer archive.Close()

	samples, err := archive.LoadSamples(args[1])
	if err != nil {
		return err
	}
	return writeSamples(samples, "")
}

// writeSamples writes CSV to path, or stdout when path is empty.
func writeSamples(samples []dynamo.Sample, path string) error {
	if path != "" {
		if err := export.WriteCSVFile(path, samples); err != nil {
			return err
		}
		logger.Info("exported", zap.String("path", path), zap.Int("samples", len(samples)))
		return nil
	}

	return export.WriteCSV(os.Stdout, samples)
}
