package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/pidsim/internal/dynamo"
	"github.com/san-kum/pidsim/internal/sim"
)

func TestCSVWriterFormat(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)

	require.NoError(t, w.Write(dynamo.Sample{Time: 0, Setpoint: 0, Measurement: 0, Control: 0}))
	require.NoError(t, w.Write(dynamo.Sample{Time: 1.0, Setpoint: 1, Measurement: 0.123456789, Control: -2}))
	require.NoError(t, w.Flush())

	want := "time,setpoint,measurement,control\n" +
		"0.000000,0.000000,0.000000,0.000000\n" +
		"1.000000,1.000000,0.123457,-2.000000\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 2, w.Rows())
}

func TestCSVWriterHeaderOnlyWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)
	require.NoError(t, w.Flush())
	assert.Equal(t, "time,setpoint,measurement,control\n", buf.String())
}

func TestCSVRoundTrip(t *testing.T) {
	samples := []dynamo.Sample{
		{Time: 0, Setpoint: 0, Measurement: 0, Control: 0.5},
		{Time: 0.01, Setpoint: 1, Measurement: 0.25, Control: 2},
		{Time: 0.02, Setpoint: 1, Measurement: -0.2, Control: -1.75},
	}
	path := filepath.Join(t.TempDir(), "run.csv")
	require.NoError(t, WriteCSVFile(path, samples))

	got, err := ReadCSVFile(path)
	require.NoError(t, err)
	assert.Equal(t, samples, got)
}

func TestReadCSVRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"wrong header", "t,sp,y,u\n0,0,0,0\n"},
		{"short row", "time,setpoint,measurement,control\n0,0,0\n"},
		{"not a number", "time,setpoint,measurement,control\n0,0,abc,0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestLoopWritesThroughCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)

	samples := []dynamo.Sample{{Time: 0}, {Time: 0.01, Setpoint: 1}}
	var sink dynamo.Sink = w
	for _, s := range samples {
		require.NoError(t, sink.Write(s))
	}
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "0.010000,1.000000,0.000000,0.000000", lines[2])
}

func TestPlotResponse(t *testing.T) {
	results := []*sim.Result{
		{
			Name:    "baseline",
			Samples: []dynamo.Sample{{Time: 0, Setpoint: 0}, {Time: 1, Setpoint: 1, Measurement: 0.5}, {Time: 2, Setpoint: 1, Measurement: 0.9}},
		},
		{
			Name:    "no_antiwindup",
			Samples: []dynamo.Sample{{Time: 0, Setpoint: 0}, {Time: 1, Setpoint: 1, Measurement: 0.4}, {Time: 2, Setpoint: 1, Measurement: 1.1}},
		},
	}

	series := ResponseSeries(results)
	require.Len(t, series, 3)
	assert.Equal(t, "Setpoint", series[0].Name)
	assert.Equal(t, "Measurement (no_antiwindup)", series[2].Name)

	opts := DefaultPlotOptions()
	opts.Markers = []Marker{{Name: "Disturbance", X: 1.5}}
	path := filepath.Join(t.TempDir(), "plots", "response.png")
	require.NoError(t, PlotResponse(path, series, opts))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestPlotResponseRejectsEmpty(t *testing.T) {
	assert.Error(t, PlotResponse(filepath.Join(t.TempDir(), "x.png"), nil, DefaultPlotOptions()))
	assert.Error(t, PlotResponse(filepath.Join(t.TempDir(), "x.png"), []Series{{Name: "bad", X: []float64{1}}}, DefaultPlotOptions()))
}
