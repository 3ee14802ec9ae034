package viz

import (
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/pidsim/internal/dynamo"
	"github.com/san-kum/pidsim/internal/sim"
)

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Green,
	asciigraph.Red,
	asciigraph.Blue,
	asciigraph.Yellow,
	asciigraph.Cyan,
}

func column(samples []dynamo.Sample, field func(dynamo.Sample) float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = field(s)
	}
	return out
}

// ResponseGraph plots the measurement against the setpoint.
func ResponseGraph(samples []dynamo.Sample, width, height int, caption string) string {
	if len(samples) == 0 {
		return ""
	}
	return asciigraph.PlotMany(
		[][]float64{
			column(samples, sim.Setpoints),
			column(samples, sim.Measurements),
		},
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(asciigraph.Default, asciigraph.Green),
		asciigraph.SeriesLegends("setpoint", "measurement"),
	)
}

// ControlGraph plots the controller output.
func ControlGraph(samples []dynamo.Sample, width, height int, caption string) string {
	if len(samples) == 0 {
		return ""
	}
	return asciigraph.Plot(column(samples, sim.Controls),
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// CompareGraph overlays the measurements of several runs.
func CompareGraph(results []*sim.Result, width, height int, caption string) string {
	data := make([][]float64, 0, len(results))
	names := make([]string, 0, len(results))
	colors := make([]asciigraph.AnsiColor, 0, len(results))
	for i, res := range results {
		if len(res.Samples) == 0 {
			continue
		}
		data = append(data, res.Column(sim.Measurements))
		names = append(names, res.Name)
		colors = append(colors, seriesColors[i%len(seriesColors)])
	}
	if len(data) == 0 {
		return ""
	}

	return asciigraph.PlotMany(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(colors...),
		asciigraph.SeriesLegends(names...),
	)
}
