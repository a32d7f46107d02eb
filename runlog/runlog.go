// Package runlog records training runs and their episodes in SQLite.
package runlog

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"q2048/qlearning"
)

// Store is a run log backed by a SQLite file.
type Store struct {
	db *sql.DB
}

// Run is one recorded training or evaluation run.
type Run struct {
	ID          int64
	Started     time.Time
	Description string
}

// Open opens or creates the run log at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening run log %s", path)
	}
	// one writer, the episodes of a run arrive in order
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts REAL NOT NULL,
			description TEXT NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating runs table")
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS episodes(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES runs(id),
			episode INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			score REAL NOT NULL,
			reward REAL NOT NULL,
			epsilon REAL NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating episodes table")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun adds a run and returns its id.
func (s *Store) StartRun(description string) (int64, error) {
	res, err := s.db.Exec("INSERT INTO runs(ts, description) VALUES(?,?)",
		float64(time.Now().UnixMilli())/1000.0, description)
	if err != nil {
		return 0, errors.Wrap(err, "starting run")
	}
	return res.LastInsertId()
}

// Record stores one episode of a run.
func (s *Store) Record(runID int64, r qlearning.EpisodeResult) error {
	_, err := s.db.Exec("INSERT INTO episodes(run_id, episode, steps, score, reward, epsilon) VALUES(?,?,?,?,?,?)",
		runID, r.Episode, r.Steps, r.Score, r.Reward, r.Epsilon)
	return errors.Wrapf(err, "recording episode %d of run %d", r.Episode, runID)
}

// Episodes returns the episodes of a run in the order they were recorded.
func (s *Store) Episodes(runID int64) ([]qlearning.EpisodeResult, error) {
	rows, err := s.db.Query("SELECT episode, steps, score, reward, epsilon FROM episodes WHERE run_id = ? ORDER BY id ASC", runID)
	if err != nil {
		return nil, errors.Wrapf(err, "reading episodes of run %d", runID)
	}
	defer rows.Close()
	var episodes []qlearning.EpisodeResult
	for rows.Next() {
		var r qlearning.EpisodeResult
		if err := rows.Scan(&r.Episode, &r.Steps, &r.Score, &r.Reward, &r.Epsilon); err != nil {
			return nil, errors.Wrap(err, "scanning episode")
		}
		episodes = append(episodes, r)
	}
	return episodes, rows.Err()
}

// Runs lists every run, oldest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query("SELECT id, ts, description FROM runs ORDER BY id ASC")
	if err != nil {
		return nil, errors.Wrap(err, "reading runs")
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var r Run
		var ts float64
		if err := rows.Scan(&r.ID, &ts, &r.Description); err != nil {
			return nil, errors.Wrap(err, "scanning run")
		}
		r.Started = time.UnixMilli(int64(ts * 1000))
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
