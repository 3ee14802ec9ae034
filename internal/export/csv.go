package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/san-kum/pidsim/internal/dynamo"
)

// CSVWriter is a dynamo.Sink producing the reference text form: a
// time,setpoint,measurement,control header followed by one %.6f row per
// sample.
type CSVWriter struct {
	w           *csv.Writer
	wroteHeader bool
	rows        int
}

func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

func (c *CSVWriter) WriteHeader() error {
	if c.wroteHeader {
		return nil
	}
	c.wroteHeader = true
	return c.w.Write(dynamo.SampleHeader)
}

func (c *CSVWriter) Write(s dynamo.Sample) error {
	if err := c.WriteHeader(); err != nil {
		return err
	}
	f := s.Fields()
	row := make([]string, len(f))
	for i, v := range f {
		row[i] = formatFloat(v)
	}
	c.rows++
	return c.w.Write(row)
}

// Flush writes any buffered rows and reports the first write error.
func (c *CSVWriter) Flush() error {
	if err := c.WriteHeader(); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) Rows() int { return c.rows }

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteCSV writes samples to w with a header.
func WriteCSV(w io.Writer, samples []dynamo.Sample) error {
	cw := NewCSVWriter(w)
	for _, s := range samples {
		if err := cw.Write(s); err != nil {
			return err
		}
	}
	return cw.Flush()
}

func WriteCSVFile(path string, samples []dynamo.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, samples); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCSV parses the reference text form back into samples.
func ReadCSV(r io.Reader) ([]dynamo.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(dynamo.SampleHeader)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("export: empty csv")
	}
	if err != nil {
		return nil, err
	}
	for i, name := range dynamo.SampleHeader {
		if header[i] != name {
			return nil, fmt.Errorf("export: unexpected column %q at %d, want %q", header[i], i, name)
		}
	}

	samples := make([]dynamo.Sample, 0)
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		var f [4]float64
		for j := range record {
			v, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				return nil, fmt.Errorf("export: line %d column %s: %w", line, dynamo.SampleHeader[j], err)
			}
			f[j] = v
		}
		samples = append(samples, dynamo.Sample{Time: f[0], Setpoint: f[1], Measurement: f[2], Control: f[3]})
	}

	return samples, nil
}

func ReadCSVFile(path string) ([]dynamo.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}
