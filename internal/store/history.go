// Package store keeps the history of batch runs in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/ports"
)

var _ ports.HistoryStore = (*History)(nil)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		pattern TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`,
	`CREATE TABLE IF NOT EXISTS files (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		file TEXT NOT NULL,
		webpage TEXT NOT NULL,
		status TEXT NOT NULL,
		duration_ns INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	);`,
	`CREATE TABLE IF NOT EXISTS findings (
		run_id TEXT NOT NULL,
		file_seq INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		severity TEXT NOT NULL,
		detail TEXT NOT NULL,
		PRIMARY KEY (run_id, file_seq, seq),
		FOREIGN KEY (run_id, file_seq) REFERENCES files(run_id, seq) ON DELETE CASCADE
	);`,
}

// History is a HistoryStore backed by SQLite.
type History struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// Open opens or creates the database at path and makes sure the schema
// exists. Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ports.NewStoreError("Open", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	h := &History{db: db}
	if err := h.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

func (h *History) init(ctx context.Context) error {
	if _, err := h.db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		return ports.NewStoreError("Init", err)
	}
	return h.inTx(ctx, "Init", func(tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("init schema: %w", err)
			}
		}
		return nil
	})
}

// SaveRun stores run with all file results and findings. Saving a run id
// twice replaces the earlier copy.
func (h *History) SaveRun(ctx context.Context, run domain.Run) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ports.NewStoreError("SaveRun", ports.ErrStoreClosed)
	}

	return h.inTx(ctx, "SaveRun", func(tx *sql.Tx) error {
		for _, table := range []string{"findings", "files"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, run.ID); err != nil {
				return fmt.Errorf("replace run: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run.ID); err != nil {
			return fmt.Errorf("replace run: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, source, pattern, started_at, finished_at) VALUES (?, ?, ?, ?, ?)`,
			run.ID, run.Source, run.Pattern, run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		fileStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO files (run_id, seq, file, webpage, status, duration_ns) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare files: %w", err)
		}
		defer fileStmt.Close()

		findingStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO findings (run_id, file_seq, seq, kind, severity, detail) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare findings: %w", err)
		}
		defer findingStmt.Close()

		for i, f := range run.Files {
			if _, err := fileStmt.ExecContext(ctx, run.ID, i, f.File, f.Webpage, f.Status(), int64(f.Duration)); err != nil {
				return fmt.Errorf("insert file %s: %w", f.File, err)
			}
			for j, finding := range f.Findings {
				if _, err := findingStmt.ExecContext(ctx,
					run.ID, i, j, string(finding.Kind), finding.Severity().String(), finding.Detail,
				); err != nil {
					return fmt.Errorf("insert finding of %s: %w", f.File, err)
				}
			}
		}
		return nil
	})
}

// RecentRuns returns up to limit run summaries, newest first.
func (h *History) RecentRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, ports.NewStoreError("RecentRuns", ports.ErrStoreClosed)
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT r.id, r.source, r.pattern, r.started_at, r.finished_at,
			(SELECT COUNT(*) FROM files f WHERE f.run_id = r.id),
			(SELECT COUNT(*) FROM findings d WHERE d.run_id = r.id AND d.severity = ?),
			(SELECT COUNT(*) FROM files f WHERE f.run_id = r.id AND f.status = 'fatal')
		FROM runs r
		ORDER BY r.started_at DESC, r.id
		LIMIT ?`, domain.SeverityDefect.String(), limit)
	if err != nil {
		return nil, ports.NewStoreError("RecentRuns", err)
	}
	defer rows.Close()

	var out []domain.RunSummary
	for rows.Next() {
		var (
			s                 domain.RunSummary
			started, finished int64
		)
		if err := rows.Scan(&s.ID, &s.Source, &s.Pattern, &started, &finished, &s.Files, &s.Defects, &s.Fatal); err != nil {
			return nil, ports.NewStoreError("RecentRuns", err)
		}
		s.StartedAt = time.Unix(0, started)
		s.FinishedAt = time.Unix(0, finished)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, ports.NewStoreError("RecentRuns", err)
	}
	return out, nil
}

// LoadRun returns a stored run with its files and findings. A missing id
// gives ports.ErrObjectNotFound.
func (h *History) LoadRun(ctx context.Context, id string) (domain.Run, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return domain.Run{}, ports.NewStoreError("LoadRun", ports.ErrStoreClosed)
	}

	run := domain.Run{ID: id}
	var started, finished int64
	err := h.db.QueryRowContext(ctx,
		`SELECT source, pattern, started_at, finished_at FROM runs WHERE id = ?`, id,
	).Scan(&run.Source, &run.Pattern, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Run{}, ports.NewStoreError("LoadRun", fmt.Errorf("run %s: %w", id, ports.ErrObjectNotFound))
	}
	if err != nil {
		return domain.Run{}, ports.NewStoreError("LoadRun", err)
	}
	run.StartedAt = time.Unix(0, started)
	run.FinishedAt = time.Unix(0, finished)

	files, err := h.db.QueryContext(ctx,
		`SELECT file, webpage, duration_ns FROM files WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return domain.Run{}, ports.NewStoreError("LoadRun", err)
	}
	for files.Next() {
		var (
			res domain.FileResult
			ns  int64
		)
		if err := files.Scan(&res.File, &res.Webpage, &ns); err != nil {
			files.Close()
			return domain.Run{}, ports.NewStoreError("LoadRun", err)
		}
		res.Duration = time.Duration(ns)
		run.Files = append(run.Files, res)
	}
	files.Close()
	if err := files.Err(); err != nil {
		return domain.Run{}, ports.NewStoreError("LoadRun", err)
	}

	findings, err := h.db.QueryContext(ctx,
		`SELECT file_seq, kind, detail FROM findings WHERE run_id = ? ORDER BY file_seq, seq`, id)
	if err != nil {
		return domain.Run{}, ports.NewStoreError("LoadRun", err)
	}
	defer findings.Close()
	for findings.Next() {
		var (
			seq          int
			kind, detail string
		)
		if err := findings.Scan(&seq, &kind, &detail); err != nil {
			return domain.Run{}, ports.NewStoreError("LoadRun", err)
		}
		if seq < 0 || seq >= len(run.Files) {
			continue
		}
		f := &run.Files[seq]
		f.Findings = append(f.Findings, domain.Finding{Kind: domain.FindingKind(kind), Detail: detail, File: f.File})
	}
	if err := findings.Err(); err != nil {
		return domain.Run{}, ports.NewStoreError("LoadRun", err)
	}
	return run, nil
}

// Close closes the database. Later calls fail with ports.ErrStoreClosed.
func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ports.NewStoreError("Close", ports.ErrStoreClosed)
	}
	h.closed = true
	if err := h.db.Close(); err != nil {
		return ports.NewStoreError("Close", err)
	}
	return nil
}

func (h *History) inTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return ports.NewStoreError(op, fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return ports.NewStoreError(op, err)
	}
	if err := tx.Commit(); err != nil {
		return ports.NewStoreError(op, fmt.Errorf("commit: %w", err))
	}
	return nil
}
