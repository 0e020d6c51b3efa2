package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boristopalov/stepsweep/pkg/config"
	"github.com/boristopalov/stepsweep/pkg/recorder"
)

// RunStatus is the lifecycle state of a stored run
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
	RunImported RunStatus = "imported"
)

// ErrRunNotFound is returned when a run id is unknown
var ErrRunNotFound = errors.New("run not found")

// Run is one sweep execution
type Run struct {
	ID         string
	Name       string
	Params     config.SweepParams
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
}

// CreateRun inserts a new run.
func (db *DB) CreateRun(run *Run) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("marshal run params: %w", err)
	}
	if run.Status == "" {
		run.Status = RunRunning
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	_, err = db.conn.Exec(
		`INSERT INTO runs (id, name, params, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Name, string(params), string(run.Status), formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun marks a run finished at t.
func (db *DB) FinishRun(id string, t time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.Exec(
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		string(RunFinished), formatTime(t), id,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// GetRun loads a run by id.
func (db *DB) GetRun(id string) (*Run, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(
		`SELECT id, name, params, status, started_at, finished_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// ListRuns returns every run, newest first.
func (db *DB) ListRuns() ([]*Run, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(
		`SELECT id, name, params, status, started_at, finished_at FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run        Run
		params     string
		status     string
		startedAt  string
		finishedAt sql.NullString
	)
	if err := s.Scan(&run.ID, &run.Name, &params, &status, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return nil, fmt.Errorf("decode params of run %s: %w", run.ID, err)
	}
	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at of run %s: %w", run.ID, err)
	}
	run.Status = RunStatus(status)
	run.StartedAt = t
	run.FinishedAt = parseNullableTime(finishedAt)
	return &run, nil
}

// AddRecord stores one epoch record for a run.
func (db *DB) AddRecord(runID string, r recorder.Record) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return insertRecord(db.conn, runID, r)
}

// ImportRecords stores a batch of records atomically.
func (db *DB) ImportRecords(runID string, records []recorder.Record) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	for _, r := range records {
		if err := insertRecord(tx, runID, r); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertRecord(e execer, runID string, r recorder.Record) error {
	_, err := e.Exec(
		`INSERT INTO records (run_id, epoch_no, success, failure, total_episodes, current_timestep, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, r.EpochNo, r.Success, r.Failure, r.TotalEpisodes, r.CurrentTimestep, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert record %d of run %s: %w", r.EpochNo, runID, err)
	}
	return nil
}

// ListRecords returns a run's records in epoch order.
func (db *DB) ListRecords(runID string) ([]recorder.Record, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(
		`SELECT epoch_no, success, failure, total_episodes, current_timestep
		 FROM records WHERE run_id = ? ORDER BY epoch_no`, runID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []recorder.Record
	for rows.Next() {
		var r recorder.Record
		if err := rows.Scan(&r.EpochNo, &r.Success, &r.Failure, &r.TotalEpisodes, &r.CurrentTimestep); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
