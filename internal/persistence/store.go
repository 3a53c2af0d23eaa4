// Package persistence keeps a journal of batch runs and their per-item outcomes.
// The output tree remains the result cache; the journal only answers
// "what happened last time".
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run is one invocation of the batch.
type Run struct {
	ID         string
	SourceRoot string
	OutputRoot string
	StartedAt  time.Time
	FinishedAt time.Time // Zero while the run is in progress or if it crashed
	Total      int       // Items enumerated
	Cached     int       // Items satisfied by earlier runs
	Totals     RunTotals
}

// RunTotals are the resolution counts of a finished run.
type RunTotals struct {
	Succeeded       int
	Partial         int
	FailedRetriable int
	FailedPermanent int
	Cancelled       int
}

// Outcome is the resolution of one work item within a run.
type Outcome struct {
	RunID     string
	File      string
	Compiler  string
	Scenario  string
	Status    string // succeeded, partial or failed
	Reason    string
	Retriable bool
	Attempts  int
	Duration  time.Duration
}

// Store defines the journal operations.
type Store interface {
	BeginRun(ctx context.Context, run Run) error
	RecordOutcome(ctx context.Context, o Outcome) error
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, totals RunTotals) error

	GetRun(ctx context.Context, runID string) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Failures(ctx context.Context, runID string) ([]Outcome, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the journal at dbPath.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	return open(ctx, connStr)
}

// NewMemoryStore creates an in-memory store for testing. Each call gets its
// own database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	connStr := fmt.Sprintf("file:journal-%s?mode=memory&cache=shared", uuid.NewString())
	return open(ctx, connStr)
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc.org/sqlite doesn't support _foreign_keys in the connection string.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Outcomes are written from every worker; a single connection serializes them.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
