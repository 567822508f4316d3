// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package segmentation

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jcodagnone/territorios/utils"
	"github.com/jcodagnone/territorios/ward"
)

// Run describes a stored segmentation.
type Run struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	Source       string        `json:"source"`
	Records      int           `json:"records"`
	Dropped      int           `json:"dropped"`
	Requested    int           `json:"requested"`
	Clusters     int           `json:"clusters"`
	Neighbors    int           `json:"neighbors"`
	Projection   string        `json:"projection"`
	IDColumn     string        `json:"id_column"`
	Attributes   []string      `json:"attributes"`
	GeoColumns   []string      `json:"geo_columns"`
	H3Resolution int           `json:"h3_resolution"`
	Disconnected bool          `json:"disconnected"`
	Inversions   int           `json:"inversions"`
	TotalSSD     float64       `json:"total_ssd"`
	Duration     time.Duration `json:"duration"`
}

// NewRun describes res under a fresh identifier.
func NewRun(source string, report *LoadReport, res *Result) *Run {
	run := &Run{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
		Source:       source,
		Records:      len(res.Dataset.Records),
		Requested:    res.Options.Clusters,
		Clusters:     res.Clusters,
		Neighbors:    res.Options.Neighbors,
		Projection:   res.Options.Projection,
		IDColumn:     res.Dataset.IDColumn,
		Attributes:   res.Dataset.Attributes,
		GeoColumns:   res.Dataset.GeoColumns,
		H3Resolution: res.Options.H3Resolution,
		Disconnected: res.Disconnected,
		Inversions:   res.Inversions,
		TotalSSD:     res.TotalSSD(),
		Duration:     res.Duration,
	}

	if report != nil {
		run.Dropped = report.Dropped
	}

	return run
}

// RunRepository handles persistence of segmentation runs.
type RunRepository interface {
	// CreateSchema creates the runs, assignments and merges tables
	CreateSchema() error

	// SaveRun stores run with its assignments and merge log
	SaveRun(run *Run, res *Result) error

	// ListRuns returns runs, newest first
	ListRuns(limit, offset int) ([]*Run, error)

	// GetRun returns a run or ErrRunNotFound
	GetRun(id string) (*Run, error)

	// GetAssignments returns the exportable table of a run
	GetAssignments(id string) (*Table, error)

	// GetMerges returns the merge log of a run
	GetMerges(id string) ([]ward.Merge, error)

	// CountRuns returns the number of stored runs
	CountRuns() (int, error)

	// DeleteRun removes a run and everything stored with it
	DeleteRun(id string) error
}

type sqlRunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sql.DB) RunRepository {
	return &sqlRunRepository{db: db}
}

func (r *sqlRunRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id VARCHAR PRIMARY KEY,
			created_at TIMESTAMP NOT NULL,
			source VARCHAR NOT NULL,
			records INTEGER NOT NULL,
			dropped INTEGER NOT NULL,
			requested INTEGER NOT NULL,
			clusters INTEGER NOT NULL,
			neighbors INTEGER NOT NULL,
			projection VARCHAR NOT NULL,
			id_column VARCHAR NOT NULL,
			attributes VARCHAR[],
			geo_columns VARCHAR[],
			h3_resolution INTEGER NOT NULL,
			disconnected BOOLEAN NOT NULL,
			inversions INTEGER NOT NULL,
			total_ssd DOUBLE NOT NULL,
			duration_ms BIGINT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS assignments (
			run_id VARCHAR NOT NULL,
			ordinal INTEGER NOT NULL,
			record_id VARCHAR NOT NULL,
			point VARCHAR NOT NULL,
			h3_cell VARCHAR,
			attributes DOUBLE[],
			geo VARCHAR[],
			cluster INTEGER NOT NULL,
			PRIMARY KEY (run_id, ordinal)
		);

		CREATE TABLE IF NOT EXISTS merges (
			run_id VARCHAR NOT NULL,
			step INTEGER NOT NULL,
			absorbed INTEGER NOT NULL,
			survivor INTEGER NOT NULL,
			cost DOUBLE NOT NULL,
			size INTEGER NOT NULL,
			PRIMARY KEY (run_id, step)
		);
	`)

	return err
}

func nve(v string) any {
	if len(v) == 0 {
		return nil
	}

	return v
}

// nl stores empty lists as NULL.
func nl[T any](v []T) any {
	if len(v) == 0 {
		return nil
	}

	return v
}

func (r *sqlRunRepository) SaveRun(run *Run, res *Result) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction for run %s: %w", run.ID, err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("failed to rollback transaction for run %s: %v", run.ID, err)
		}
	}()

	_, err = tx.Exec(`
		INSERT INTO runs (
			id, created_at, source, records, dropped, requested, clusters, neighbors,
			projection, id_column, attributes, geo_columns, h3_resolution,
			disconnected, inversions, total_ssd, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.CreatedAt,
		run.Source,
		run.Records,
		run.Dropped,
		run.Requested,
		run.Clusters,
		run.Neighbors,
		run.Projection,
		run.IDColumn,
		nl(run.Attributes),
		nl(run.GeoColumns),
		run.H3Resolution,
		run.Disconnected,
		run.Inversions,
		run.TotalSSD,
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO assignments (run_id, ordinal, record_id, point, h3_cell, attributes, geo, cluster)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, a := range res.Table().Rows {
		if _, err := stmt.Exec(run.ID, a.Ordinal, a.ID, a.Point.String(), nve(a.Cell), nl(a.Attrs), nl(a.Geo), a.Cluster); err != nil {
			return fmt.Errorf("inserting assignment %s: %w", a.ID, err)
		}
	}

	mstmt, err := tx.Prepare(`
		INSERT INTO merges (run_id, step, absorbed, survivor, cost, size)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer mstmt.Close()

	for step, m := range res.Merges {
		if _, err := mstmt.Exec(run.ID, step, m.Absorbed, m.Survivor, m.Cost, m.Size); err != nil {
			return fmt.Errorf("inserting merge %d: %w", step, err)
		}
	}

	return tx.Commit()
}

const runColumns = `
	id, created_at, source, records, dropped, requested, clusters, neighbors,
	projection, id_column, attributes, geo_columns, h3_resolution,
	disconnected, inversions, total_ssd, duration_ms
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}

	var (
		attrs, geo any
		durationMs int64
	)

	err := row.Scan(
		&run.ID,
		&run.CreatedAt,
		&run.Source,
		&run.Records,
		&run.Dropped,
		&run.Requested,
		&run.Clusters,
		&run.Neighbors,
		&run.Projection,
		&run.IDColumn,
		&attrs,
		&geo,
		&run.H3Resolution,
		&run.Disconnected,
		&run.Inversions,
		&run.TotalSSD,
		&durationMs,
	)
	if err != nil {
		return nil, err
	}

	var ok bool
	if run.Attributes, ok = utils.AnyToStringSlice(attrs); !ok {
		return nil, fmt.Errorf("run %s: unexpected attributes value %T", run.ID, attrs)
	}

	if run.GeoColumns, ok = utils.AnyToStringSlice(geo); !ok {
		return nil, fmt.Errorf("run %s: unexpected geo columns value %T", run.ID, geo)
	}

	run.Duration = time.Duration(durationMs) * time.Millisecond

	return run, nil
}

func (r *sqlRunRepository) ListRuns(limit, offset int) ([]*Run, error) {
	rows, err := r.db.Query(
		"SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, id LIMIT ? OFFSET ?", // #nosec G202 - constant column list
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func (r *sqlRunRepository) GetRun(id string) (*Run, error) {
	row := r.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id) // #nosec G202 - constant column list

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("getting run %s: %w", id, err)
	}

	return run, nil
}

func (r *sqlRunRepository) GetAssignments(id string) (*Table, error) {
	run, err := r.GetRun(id)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`
		SELECT ordinal, record_id, point, h3_cell, attributes, geo, cluster
		FROM assignments
		WHERE run_id = ?
		ORDER BY ordinal
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying assignments of %s: %w", id, err)
	}
	defer rows.Close()

	t := &Table{IDColumn: run.IDColumn, Attributes: run.Attributes, GeoColumns: run.GeoColumns}

	for rows.Next() {
		var (
			a          Assignment
			cell       sql.NullString
			attrs, geo any
		)

		if err := rows.Scan(&a.Ordinal, &a.ID, &a.Point, &cell, &attrs, &geo, &a.Cluster); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}

		var ok bool
		if a.Attrs, ok = utils.AnyToFloat64Slice(attrs); !ok {
			return nil, fmt.Errorf("assignment %s: unexpected attributes value %T", a.ID, attrs)
		}

		if a.Geo, ok = utils.AnyToStringSlice(geo); !ok {
			return nil, fmt.Errorf("assignment %s: unexpected geo value %T", a.ID, geo)
		}

		a.Cell = cell.String
		t.Rows = append(t.Rows, a)
	}

	return t, rows.Err()
}

func (r *sqlRunRepository) GetMerges(id string) ([]ward.Merge, error) {
	if _, err := r.GetRun(id); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`
		SELECT absorbed, survivor, cost, size
		FROM merges
		WHERE run_id = ?
		ORDER BY step
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying merges of %s: %w", id, err)
	}
	defer rows.Close()

	var merges []ward.Merge

	for rows.Next() {
		var m ward.Merge
		if err := rows.Scan(&m.Absorbed, &m.Survivor, &m.Cost, &m.Size); err != nil {
			return nil, fmt.Errorf("scanning merge: %w", err)
		}

		merges = append(merges, m)
	}

	return merges, rows.Err()
}

func (r *sqlRunRepository) CountRuns() (int, error) {
	var count int

	err := r.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count)

	return count, err
}

func (r *sqlRunRepository) DeleteRun(id string) error {
	if _, err := r.GetRun(id); err != nil {
		return err
	}

	for _, q := range []string{
		"DELETE FROM merges WHERE run_id = ?",
		"DELETE FROM assignments WHERE run_id = ?",
		"DELETE FROM runs WHERE id = ?",
	} {
		if _, err := r.db.Exec(q, id); err != nil {
			return fmt.Errorf("deleting run %s: %w", id, err)
		}
	}

	return nil
}
