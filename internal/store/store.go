// Package store persists completed research runs to SQLite so past
// analyses can be listed and re-rendered without repeating the pipeline.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"venturelens/internal/pipeline"
)

// Run is one persisted pipeline execution.
type Run struct {
	ID              string
	Query           string
	ViabilityScore  *int
	CompetitorCount int
	State           *pipeline.ResearchState
	CreatedAt       time.Time
}

// RunStore provides SQLite-backed storage for research runs.
type RunStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewRunStore opens (or creates) the run database at dbPath.
func NewRunStore(dbPath string) (*RunStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &RunStore{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *RunStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			viability_score INTEGER,
			competitor_count INTEGER DEFAULT 0,
			state TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	_, _ = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`)
	return nil
}

// Close closes the database connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// SaveRun persists a completed research state and returns the run ID.
func (s *RunStore) SaveRun(ctx context.Context, state *pipeline.ResearchState) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}

	var score *int
	competitorCount := 0
	if state.StartupIdea != nil {
		competitorCount = len(state.StartupIdea.Competitors)
		if state.StartupIdea.StartupAnalysis != nil {
			score = state.StartupIdea.StartupAnalysis.ViabilityScore
		}
	}

	runID := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, query, viability_score, competitor_count, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, state.Query, score, competitorCount, string(stateJSON), time.Now().UTC())
	if err != nil {
		return "", err
	}
	return runID, nil
}

// GetRun retrieves a single run by ID, or nil if it does not exist.
func (s *RunStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var run Run
	var score sql.NullInt64
	var stateJSON string
	var createdAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, query, viability_score, competitor_count, state, created_at
		FROM runs WHERE run_id = ?
	`, runID).Scan(&run.ID, &run.Query, &score, &run.CompetitorCount, &stateJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if score.Valid {
		v := int(score.Int64)
		run.ViabilityScore = &v
	}
	if createdAt.Valid {
		run.CreatedAt = createdAt.Time
	}
	if err := json.Unmarshal([]byte(stateJSON), &run.State); err != nil {
		return nil, fmt.Errorf("failed to decode state for run %s: %w", runID, err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first. The full state is
// not decoded for listings; use GetRun for that.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, query, viability_score, competitor_count, created_at
		FROM runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var score sql.NullInt64
		var createdAt sql.NullTime
		if err := rows.Scan(&run.ID, &run.Query, &score, &run.CompetitorCount, &createdAt); err != nil {
			return nil, err
		}
		if score.Valid {
			v := int(score.Int64)
			run.ViabilityScore = &v
		}
		if createdAt.Valid {
			run.CreatedAt = createdAt.Time
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
