package export

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/pidsim/internal/sim"
)

// Series is one named trajectory on a plot.
type Series struct {
	Name string
	X    []float64
	Y    []float64
}

// Marker is a dashed vertical line, e.g. at the disturbance onset.
type Marker struct {
	Name string
	X    float64
}

type PlotOptions struct {
	Title   string
	XLabel  string
	YLabel  string
	Markers []Marker
	Width   vg.Length
	Height  vg.Length
}

func DefaultPlotOptions() PlotOptions {
	return PlotOptions{
		Title:  "Closed-Loop Response",
		XLabel: "Time (s)",
		YLabel: "Output",
		Width:  8 * vg.Inch,
		Height: 5 * vg.Inch,
	}
}

// PlotResponse renders the series to path. The image format follows the
// file extension (.png, .svg, .pdf).
func PlotResponse(path string, series []Series, opts PlotOptions) error {
	if len(series) == 0 {
		return fmt.Errorf("export: nothing to plot")
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel
	p.Add(plotter.NewGrid())

	for _, s := range series {
		if len(s.X) != len(s.Y) || len(s.X) == 0 {
			return fmt.Errorf("export: series %q has %d x and %d y values", s.Name, len(s.X), len(s.Y))
		}
	}

	yMin, yMax := series[0].Y[0], series[0].Y[0]
	for i, s := range series {
		pts := make(plotter.XYs, len(s.X))
		for j := range s.X {
			pts[j].X = s.X[j]
			pts[j].Y = s.Y[j]
			yMin = min(yMin, s.Y[j])
			yMax = max(yMax, s.Y[j])
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}

	for _, m := range opts.Markers {
		marker, err := plotter.NewLine(plotter.XYs{{X: m.X, Y: yMin}, {X: m.X, Y: yMax}})
		if err != nil {
			return err
		}
		marker.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(marker)
		p.Legend.Add(m.Name, marker)
	}
	p.Legend.Top = true

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return p.Save(opts.Width, opts.Height, path)
}

// ResponseSeries returns the setpoint of the first result followed by the
// measurement of every result, the layout of the comparison plot.
func ResponseSeries(results []*sim.Result) []Series {
	if len(results) == 0 {
		return nil
	}
	series := []Series{{
		Name: "Setpoint",
		X:    results[0].Column(sim.Times),
		Y:    results[0].Column(sim.Setpoints),
	}}
	for _, r := range results {
		name := "Measurement"
		if r.Name != "" {
			name = fmt.Sprintf("Measurement (%s)", r.Name)
		}
		series = append(series, Series{
			Name: name,
			X:    r.Column(sim.Times),
			Y:    r.Column(sim.Measurements),
		})
	}
	return series
}
