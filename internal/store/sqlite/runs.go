package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/id"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/store"
)

// runColumns is the ordered list of columns selected in run queries.
// Must match the scan order in scanRun.
const runColumns = `id, source_id, started_at, finished_at, status,
	items_found, items_saved, errors`

// scanRun scans a sql.Row (or sql.Rows via its Scan method) into a domain.IngestionRun.
func scanRun(scanner interface{ Scan(dest ...any) error }) (*domain.IngestionRun, error) {
	var (
		r          domain.IngestionRun
		startedAt  string
		finishedAt sql.NullString
		errText    sql.NullString
	)

	err := scanner.Scan(
		&r.ID,
		&r.SourceID,
		&startedAt,
		&finishedAt,
		&r.Status,
		&r.ItemsFound,
		&r.ItemsSaved,
		&errText,
	)
	if err != nil {
		return nil, err
	}

	r.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, err
	}
	r.FinishedAt, err = parseNullableTime(finishedAt)
	if err != nil {
		return nil, err
	}
	r.Errors = errText.String

	return &r, nil
}

// CreateRun inserts a new ingestion run. A missing ID is generated and an
// empty status defaults to running.
func (s *Store) CreateRun(ctx context.Context, run *domain.IngestionRun) error {
	if run.ID == "" {
		runID, err := id.Generate(id.PrefixRun)
		if err != nil {
			return fmt.Errorf("generate run id: %w", err)
		}
		run.ID = runID
	}
	if run.Status == "" {
		run.Status = domain.RunRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_runs (id, source_id, started_at, finished_at, status,
			items_found, items_saved, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.SourceID,
		formatTime(run.StartedAt),
		nullTimeString(run.FinishedAt),
		string(run.Status),
		run.ItemsFound,
		run.ItemsSaved,
		nullString(run.Errors),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("insert run: %w", err)
	}

	return nil
}

// GetRun returns an ingestion run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*domain.IngestionRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM ingestion_runs WHERE id = ?`, runID)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	return r, nil
}

// FinishRun moves a running run to a terminal status exactly once. A second
// finish attempt returns ErrConflict; the row is immutable afterward.
func (s *Store) FinishRun(ctx context.Context, runID string, status domain.RunStatus, found, saved int, errs string) error {
	if status != domain.RunSuccess && status != domain.RunFailed {
		return store.ErrInvalidInput.WithMessage(fmt.Sprintf("invalid terminal run status %q", status))
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE ingestion_runs
		SET finished_at = ?, status = ?, items_found = ?, items_saved = ?, errors = ?
		WHERE id = ? AND status = ?`,
		formatTime(time.Now()),
		string(status),
		found,
		saved,
		nullString(errs),
		runID,
		string(domain.RunRunning),
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.GetRun(ctx, runID); err != nil {
			return err
		}
		return store.ErrConflict.WithMessage("run already finished")
	}

	return nil
}

// ListRuns returns recent runs ordered by start time descending. An empty
// sourceID means all sources; limit <= 0 defaults to 50.
func (s *Store) ListRuns(ctx context.Context, sourceID string, limit int) ([]*domain.IngestionRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + runColumns + ` FROM ingestion_runs`
	var args []any
	if sourceID != "" {
		query += ` WHERE source_id = ?`
		args = append(args, sourceID)
	}
	query += ` ORDER BY started_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.IngestionRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if runs == nil {
		runs = []*domain.IngestionRun{}
	}

	return runs, nil
}

// CloseStaleRuns marks running rows started before olderThan as failed.
// Housekeeping for runs orphaned by a crashed process. Returns the number
// of runs closed.
func (s *Store) CloseStaleRuns(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE ingestion_runs
		SET finished_at = ?, status = ?, errors = ?
		WHERE status = ? AND started_at < ?`,
		formatTime(time.Now()),
		string(domain.RunFailed),
		"closed by housekeeping: run exceeded stale-run timeout",
		string(domain.RunRunning),
		formatTime(olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("close stale runs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return int(n), nil
}
