package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/xid"

	"github.com/san-kum/pidsim/internal/config"
	"github.com/san-kum/pidsim/internal/dynamo"
	"github.com/san-kum/pidsim/internal/export"
	"github.com/san-kum/pidsim/internal/metrics"
	"github.com/san-kum/pidsim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
)

// ErrRunNotFound is returned when no run directory matches an id.
var ErrRunNotFound = errors.New("storage: run not found")

// Store keeps one directory per run under baseDir.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Timestamp time.Time          `json:"timestamp"`
	Samples   int                `json:"samples"`
	Scenario  config.Scenario    `json:"scenario"`
	Metrics   map[string]float64 `json:"metrics"`
	Recovery  *metrics.Recovery  `json:"recovery,omitempty"`
}

// Save writes the scenario, metrics and samples of a finished run and
// returns the new run id.
func (s *Store) Save(sc *config.Scenario, result *sim.Result) (string, error) {
	runID := xid.New().String()
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("storage: creating run dir: %w", err)
	}

	meta := RunMetadata{
		ID:        runID,
		Name:      sc.Name,
		Timestamp: time.Now(),
		Samples:   len(result.Samples),
		Scenario:  *sc,
		Metrics:   result.Metrics,
	}

	if sc.Disturbance.Enabled {
		opts := metrics.DefaultRecoveryOptions()
		opts.DisturbanceTime = sc.Disturbance.OnsetTime
		if rec, err := metrics.DisturbanceRecovery(result.Samples, opts); err == nil {
			meta.Recovery = &rec
		}
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", fmt.Errorf("storage: writing metadata: %w", err)
	}

	if err := export.WriteCSVFile(filepath.Join(runDir, samplesFile), result.Samples); err != nil {
		return "", fmt.Errorf("storage: writing samples: %w", err)
	}

	return runID, nil
}

// List returns stored runs, oldest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: decoding metadata of %s: %w", runID, err)
	}

	return &meta, nil
}

func (s *Store) LoadSamples(runID string) ([]dynamo.Sample, error) {
	samples, err := export.ReadCSVFile(filepath.Join(s.baseDir, runID, samplesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	return samples, nil
}

// SamplesPath returns the CSV file of a run.
func (s *Store) SamplesPath(runID string) string {
	return filepath.Join(s.baseDir, runID, samplesFile)
}

// ExportData is the JSON form of a complete run.
type ExportData struct {
	RunMetadata
	Times        []float64 `json:"times"`
	Setpoints    []float64 `json:"setpoints"`
	Measurements []float64 `json:"measurements"`
	Controls     []float64 `json:"controls"`
}

// ExportJSON writes metadata and samples of a run to w.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	samples, err := s.LoadSamples(runID)
	if err != nil {
		return err
	}

	data := ExportData{
		RunMetadata:  *meta,
		Times:        make([]float64, len(samples)),
		Setpoints:    make([]float64, len(samples)),
		Measurements: make([]float64, len(samples)),
		Controls:     make([]float64, len(samples)),
	}
	for i, smp := range samples {
		data.Times[i] = smp.Time
		data.Setpoints[i] = smp.Setpoint
		data.Measurements[i] = smp.Measurement
		data.Controls[i] = smp.Control
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
