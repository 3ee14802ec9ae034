package storage

import (
	"database/sql"
	"fmt"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"

	"github.com/san-kum/pidsim/internal/dynamo"
)

const defaultBatchSize = 1000

const archiveSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	created INTEGER NOT NULL,
	samples INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS samples (
	run_id      TEXT NOT NULL,
	step        INTEGER NOT NULL,
	time        REAL NOT NULL,
	setpoint    REAL NOT NULL,
	measurement REAL NOT NULL,
	control     REAL NOT NULL,
	PRIMARY KEY (run_id, step)
);`

// Archive keeps the samples of many runs in a single SQLite database.
type Archive struct {
	*sql.DB

	path      string
	batchSize int
}

type ArchivedRun struct {
	ID      string
	Name    string
	Created time.Time
	Samples int
}

// OpenArchive opens or creates the database at path.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("storage: opening archive: %w", err)
	}

	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: creating archive schema: %w", err)
	}

	return &Archive{DB: db, path: path, batchSize: defaultBatchSize}, nil
}

func (a *Archive) Path() string { return a.path }

// NewRun registers a run and returns a sink that records its samples.
func (a *Archive) NewRun(name string) (*RunWriter, error) {
	id := xid.New().String()

	_, err := a.Exec(`INSERT INTO runs (id, name, created) VALUES (?, ?, ?)`,
		id, name, time.Now().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("storage: registering run %s: %w", name, err)
	}

	return &RunWriter{archive: a, id: id}, nil
}

func (a *Archive) ListRuns() ([]ArchivedRun, error) {
	rows, err := a.Query(`SELECT id, name, created, samples FROM runs ORDER BY created, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ArchivedRun
	for rows.Next() {
		var r ArchivedRun
		var created int64
		if err := rows.Scan(&r.ID, &r.Name, &created, &r.Samples); err != nil {
			return nil, err
		}
		r.Created = time.Unix(0, created)
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

func (a *Archive) LoadSamples(runID string) ([]dynamo.Sample, error) {
	rows, err := a.Query(`SELECT time, setpoint, measurement, control
		FROM samples WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []dynamo.Sample
	for rows.Next() {
		var s dynamo.Sample
		if err := rows.Scan(&s.Time, &s.Setpoint, &s.Measurement, &s.Control); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(samples) == 0 {
		var n int
		err := a.QueryRow(`SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&n)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
	}

	return samples, nil
}

// RunWriter buffers samples and inserts them in batches. It implements
// dynamo.Sink.
type RunWriter struct {
	archive *Archive
	id      string
	pending []dynamo.Sample
	written int
}

func (w *RunWriter) ID() string { return w.id }

func (w *RunWriter) Write(s dynamo.Sample) error {
	w.pending = append(w.pending, s)
	if len(w.pending) >= w.archive.batchSize {
		return w.Flush()
	}
	return nil
}

// Flush inserts all buffered samples in one transaction.
func (w *RunWriter) Flush() error {
	if len(w.pending) == 0 {
		return nil
	}

	tx, err := w.archive.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO samples
		(run_id, step, time, setpoint, measurement, control) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i, s := range w.pending {
		_, err := stmt.Exec(w.id, w.written+i, s.Time, s.Setpoint, s.Measurement, s.Control)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("storage: inserting sample %d: %w", w.written+i, err)
		}
	}

	n := w.written + len(w.pending)
	if _, err := tx.Exec(`UPDATE runs SET samples = ? WHERE id = ?`, n, w.id); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	w.written = n
	w.pending = w.pending[:0]
	return nil
}

// Close flushes the remaining samples.
func (w *RunWriter) Close() error {
	return w.Flush()
}
