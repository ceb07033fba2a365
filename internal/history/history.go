// Package history persists build outcomes to SQLite so past runs can be
// inspected after the process exits.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/bundler/internal/compiler"
)

// Recorder appends one row per build attempt.
type Recorder struct {
	db *sql.DB
	mu sync.Mutex
}

// Entry is one persisted build outcome.
type Entry struct {
	ID            int64
	Compiler      string
	CompilationID string
	StartedAt     time.Time
	DurationMS    int64
	Succeeded     bool
	EmittedAssets int
	Summary       compiler.Summary
}

// NewRecorder opens (and if needed initializes) the history database.
// Use ":memory:" for an in-memory database.
func NewRecorder(dbPath string) (*Recorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	r := &Recorder{db: db}
	if err := r.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return r, nil
}

func (r *Recorder) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		compiler TEXT NOT NULL,
		compilation_id TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		emitted_assets INTEGER NOT NULL,
		summary BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_compiler ON builds(compiler);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Append stores one build outcome.
func (r *Recorder) Append(ctx context.Context, summary compiler.Summary, succeeded bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO builds (compiler, compilation_id, started_at, duration_ms, succeeded, emitted_assets, summary) VALUES (?, ?, ?, ?, ?, ?, ?)",
		summary.Compiler, summary.CompilationID, summary.StartTime.Unix(), summary.DurationMS, boolToInt(succeeded), summary.EmittedAssets, payload,
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

// Recent returns up to limit builds, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, compiler, compilation_id, started_at, duration_ms, succeeded, emitted_assets, summary FROM builds ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var startedAt int64
		var succeeded int
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Compiler, &e.CompilationID, &startedAt, &e.DurationMS, &succeeded, &e.EmittedAssets, &payload); err != nil {
			return nil, fmt.Errorf("scan build row: %w", err)
		}
		e.StartedAt = time.Unix(startedAt, 0)
		e.Succeeded = succeeded != 0
		if err := json.Unmarshal(payload, &e.Summary); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Attach records every build outcome through the compiler's lifecycle
// hooks. The run's start time is captured up front so a failure row carries
// when the build began, not when it fell over.
func (r *Recorder) Attach(c *compiler.Compiler) {
	var startMu sync.Mutex
	var startedAt time.Time
	start := func(ctx context.Context, _ *compiler.Compiler) error {
		startMu.Lock()
		startedAt = time.Now()
		startMu.Unlock()
		return nil
	}
	c.Hooks.BeforeRun.MustTap("history", start)
	c.Hooks.WatchRun.MustTap("history", start)

	c.Hooks.Done.MustTap("history", func(ctx context.Context, stats *compiler.Stats) error {
		if err := r.Append(ctx, stats.Summarize(), true); err != nil {
			c.Logger().Warn("failed to record build history", "error", err)
		}
		return nil
	})
	c.Hooks.Failed.MustTap("history", func(ctx context.Context, buildErr error) error {
		startMu.Lock()
		began := startedAt
		startMu.Unlock()
		if began.IsZero() {
			began = time.Now()
		}
		summary := compiler.Summary{
			Compiler:  c.Name,
			StartTime: began,
			EndTime:   time.Now(),
			Errors:    []string{buildErr.Error()},
		}
		summary.DurationMS = summary.EndTime.Sub(summary.StartTime).Milliseconds()
		if err := r.Append(ctx, summary, false); err != nil {
			c.Logger().Warn("failed to record build history", "error", err)
		}
		return nil
	})
}

// Close releases the database handle.
func (r *Recorder) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
