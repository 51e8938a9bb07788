package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/docmesh/core"
)

// Run is the persisted outcome metadata of one dispatch run.
type Run struct {
	ID         string       `json:"id"`
	Task       string       `json:"task"`
	Outcome    core.Outcome `json:"outcome,omitempty"`
	Turns      int          `json:"turns"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// Running reports whether the run has not finished yet.
func (r Run) Running() bool { return r.FinishedAt == nil }

// StartRun records a run that has just begun.
func (l *Ledger) StartRun(ctx context.Context, id, task string, startedAt time.Time) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (id, task, started_at) VALUES (?, ?, ?)`,
		id, task, startedAt.UTC())
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// FinishRun stores the outcome of a run.
func (l *Ledger) FinishRun(ctx context.Context, id string, outcome core.Outcome, turns int, runErr string, finishedAt time.Time) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE runs SET outcome = ?, turns = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		string(outcome), turns, nullString(runErr), finishedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// GetRun returns a run by id or core.ErrNotFound.
func (l *Ledger) GetRun(ctx context.Context, id string) (Run, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, task, outcome, turns, error, started_at, finished_at
		FROM runs WHERE id = ?`, id)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// RecentRuns returns up to limit runs, newest first.
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, task, outcome, turns, error, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r        Run
		outcome  sql.NullString
		runErr   sql.NullString
		finished sql.NullTime
	)
	if err := s.Scan(&r.ID, &r.Task, &outcome, &r.Turns, &runErr, &r.StartedAt, &finished); err != nil {
		return Run{}, err
	}
	r.Outcome = core.Outcome(outcome.String)
	r.Error = runErr.String
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
