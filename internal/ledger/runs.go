package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mediaflow/internal/pipeline"
	"mediaflow/internal/services"
)

// BeginRun inserts a running row for runID.
func (s *Store) BeginRun(ctx context.Context, runID string, items int) error {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return services.Wrap(services.ErrValidation, "ledger", "begin run", "run id is empty", nil)
	}
	_, err := s.exec(ctx,
		`INSERT INTO runs (id, status, items, started_at) VALUES (?, ?, ?, ?)`,
		runID, RunRunning, items, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordResult appends a stage outcome for runID.
func (s *Store) RecordResult(ctx context.Context, runID, source string, result pipeline.StageResult) error {
	_, err := s.exec(ctx,
		`INSERT INTO results (
            run_id, item_key, source, stage, outcome, kind, message, path, duration_ms, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		result.Key,
		source,
		result.Stage.String(),
		string(result.Outcome),
		string(result.Kind),
		result.Message,
		result.Path,
		result.Duration.Milliseconds(),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// FinishRun records the final state of runID.
func (s *Store) FinishRun(ctx context.Context, runID string, c Completion) error {
	if c.Status == "" {
		c.Status = RunCompleted
	}
	res, err := s.exec(ctx,
		`UPDATE runs SET status = ?, tier = ?, items = ?, skipped = ?, succeeded = ?, failed = ?,
            error = ?, finished_at = ? WHERE id = ?`,
		c.Status, c.Tier, c.Totals.Items, c.Totals.Skipped, c.Totals.Succeeded, c.Totals.Failed,
		c.Error, formatTime(time.Now()), runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "ledger", "finish run", fmt.Sprintf("run %s not found", runID), nil)
	}
	return nil
}

const runColumns = `id, status, tier, items, skipped, succeeded, failed, error, started_at, finished_at`

// ListRuns returns the most recent runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns the run with id, or an ErrNotFound-marked error.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, services.Wrap(services.ErrNotFound, "ledger", "get run", fmt.Sprintf("run %s not found", id), nil)
	}
	return run, err
}

// FindRun resolves a full run id from a unique prefix.
func (s *Store) FindRun(ctx context.Context, prefix string) (Run, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return Run{}, services.Wrap(services.ErrValidation, "ledger", "find run", "run id is empty", nil)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+runColumns+` FROM runs WHERE id LIKE ? ESCAPE '\' ORDER BY started_at DESC LIMIT 2`,
		escapeLike(prefix)+"%")
	if err != nil {
		return Run{}, fmt.Errorf("find run: %w", err)
	}
	defer rows.Close()
	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(matches) {
	case 0:
		return Run{}, services.Wrap(services.ErrNotFound, "ledger", "find run", fmt.Sprintf("no run matches %q", prefix), nil)
	case 1:
		return matches[0], nil
	default:
		return Run{}, services.Wrap(services.ErrValidation, "ledger", "find run", fmt.Sprintf("run prefix %q is ambiguous", prefix), nil)
	}
}

// RunResults returns every result recorded for runID in insertion order.
func (s *Store) RunResults(ctx context.Context, runID string) ([]Result, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, run_id, item_key, source, stage, outcome, kind, message, path, duration_ms, recorded_at
        FROM results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r          Result
			durationMS int64
			recorded   string
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.ItemKey, &r.Source, &r.Stage, &r.Outcome, &r.Kind,
			&r.Message, &r.Path, &durationMS, &recorded); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.RecordedAt = parseTime(recorded)
		results = append(results, r)
	}
	return results, rows.Err()
}

// PruneBefore deletes runs started before cutoff and returns how many were removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM runs WHERE started_at < ? AND status != ?`, formatTime(cutoff), RunRunning)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run      Run
		status   string
		started  string
		finished sql.NullString
	)
	if err := row.Scan(&run.ID, &status, &run.Tier, &run.Totals.Items, &run.Totals.Skipped,
		&run.Totals.Succeeded, &run.Totals.Failed, &run.Error, &started, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = RunStatus(status)
	run.StartedAt = parseTime(started)
	if finished.Valid && finished.String != "" {
		t := parseTime(finished.String)
		run.FinishedAt = &t
	}
	return run, nil
}

func escapeLike(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(value)
}
