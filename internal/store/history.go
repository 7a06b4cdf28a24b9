// Package store persists run history in SQLite so past workflow and
// test runs can be queried across sessions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"codeforge/internal/testparse"
)

// HistoryStore records completed runs in a local SQLite database.
type HistoryStore struct {
	db *sql.DB
	mu sync.Mutex
}

// RunRecord is one persisted workflow run.
type RunRecord struct {
	ID            int64     `json:"id"`
	SessionID     string    `json:"session_id"`
	Requirements  string    `json:"requirements"`
	Status        string    `json:"status"`
	ProjectType   string    `json:"project_type"`
	TotalTests    int       `json:"total_tests"`
	Passed        int       `json:"passed"`
	Failed        int       `json:"failed"`
	Skipped       int       `json:"skipped"`
	DurationSec   float64   `json:"duration_seconds"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewHistoryStore opens (creating if needed) the database at path.
func NewHistoryStore(path string) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &HistoryStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *HistoryStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		requirements TEXT,
		status TEXT NOT NULL,
		project_type TEXT,
		total_tests INTEGER DEFAULT 0,
		passed INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		duration_seconds REAL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// RecordRun stores one completed run.
func (s *HistoryStore) RecordRun(ctx context.Context, rec RunRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (session_id, requirements, status, project_type,
			total_tests, passed, failed, skipped, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Requirements, rec.Status, rec.ProjectType,
		rec.TotalTests, rec.Passed, rec.Failed, rec.Skipped, rec.DurationSec)
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}
	return res.LastInsertId()
}

// RecordTestRun is a convenience wrapper that stores a test run result.
func (s *HistoryStore) RecordTestRun(ctx context.Context, sessionID, requirements string, run testparse.RunResult) (int64, error) {
	status := "failed"
	if run.Success {
		status = "completed"
	}
	return s.RecordRun(ctx, RunRecord{
		SessionID:    sessionID,
		Requirements: requirements,
		Status:       status,
		TotalTests:   run.TotalTests,
		Passed:       run.Passed,
		Failed:       run.Failed,
		Skipped:      run.Skipped,
		DurationSec:  run.ExecutionTime,
	})
}

// RecentRuns returns the newest runs first, at most limit rows.
func (s *HistoryStore) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, requirements, status, project_type,
			total_tests, passed, failed, skipped, duration_seconds, created_at
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// RunsBySession returns every run recorded under a session id.
func (s *HistoryStore) RunsBySession(ctx context.Context, sessionID string) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, requirements, status, project_type,
			total_tests, passed, failed, skipped, duration_seconds, created_at
		FROM runs WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]RunRecord, error) {
	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var projectType sql.NullString
		var requirements sql.NullString
		if err := rows.Scan(&rec.ID, &rec.SessionID, &requirements, &rec.Status,
			&projectType, &rec.TotalTests, &rec.Passed, &rec.Failed, &rec.Skipped,
			&rec.DurationSec, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.Requirements = requirements.String
		rec.ProjectType = projectType.String
		records = append(records, rec)
	}
	return records, rows.Err()
}
