package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/syncsocial/syncsocial/internal/automation/models"
)

const runColumns = `id, workspace_id, schedule_id, strategy_id, triggered_by, status, started_at, finished_at, created_at, updated_at`
const accountRunColumns = `id, workspace_id, run_id, social_account_id, status, error_code, started_at, finished_at, created_at, updated_at`

func scanRun(row interface{ Scan(...any) error }) (*models.Run, error) {
	r := &models.Run{}
	var scheduleID, triggeredBy sql.NullString
	var startedAt, finishedAt sql.NullTime
	err := row.Scan(&r.ID, &r.WorkspaceID, &scheduleID, &r.StrategyID, &triggeredBy, &r.Status,
		&startedAt, &finishedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if scheduleID.Valid {
		r.ScheduleID = &scheduleID.String
	}
	if triggeredBy.Valid {
		r.TriggeredBy = &triggeredBy.String
	}
	if startedAt.Valid {
		r.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.Time
	}
	return r, nil
}

func scanAccountRun(row interface{ Scan(...any) error }) (*models.AccountRun, error) {
	ar := &models.AccountRun{}
	var errorCode sql.NullString
	var startedAt, finishedAt sql.NullTime
	err := row.Scan(&ar.ID, &ar.WorkspaceID, &ar.RunID, &ar.SocialAccountID, &ar.Status,
		&errorCode, &startedAt, &finishedAt, &ar.CreatedAt, &ar.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if errorCode.Valid {
		ar.ErrorCode = &errorCode.String
	}
	if startedAt.Valid {
		ar.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		ar.FinishedAt = &finishedAt.Time
	}
	return ar, nil
}

// CreateRun creates a new run
func (s *Store) CreateRun(ctx context.Context, r *models.Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = models.RunStatusQueued
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), r.ID, r.WorkspaceID, r.ScheduleID, r.StrategyID, r.TriggeredBy, r.Status,
		r.StartedAt, r.FinishedAt, r.CreatedAt, r.UpdatedAt)
	return err
}

// GetRun retrieves a run by ID
func (s *Store) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := s.ro.QueryRowContext(ctx, s.ro.Rebind(`
		SELECT `+runColumns+` FROM runs WHERE id = ?
	`), id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return r, err
}

// ListRuns returns runs for a workspace, newest first
func (s *Store) ListRuns(ctx context.Context, workspaceID string, limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.ro.QueryContext(ctx, s.ro.Rebind(`
		SELECT `+runColumns+` FROM runs WHERE workspace_id = ? ORDER BY created_at DESC LIMIT ?
	`), workspaceID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []*models.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// HasActiveRunForSchedule reports whether the schedule has a non-terminal run.
// Used by the tick dispatcher for back-pressure.
func (s *Store) HasActiveRunForSchedule(ctx context.Context, scheduleID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT COUNT(*) FROM runs WHERE schedule_id = ? AND status IN (?, ?)
	`), scheduleID, models.RunStatusQueued, models.RunStatusRunning).Scan(&count)
	return count > 0, err
}

// MarkRunRunning advances a still-queued run to running with started_at.
// A run already advanced by a sibling account run is left untouched.
func (s *Store) MarkRunRunning(ctx context.Context, id string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE runs SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?
	`), models.RunStatusRunning, startedAt, time.Now().UTC(), id, models.RunStatusQueued)
	return err
}

// FinishRun stamps a terminal run status
func (s *Store) FinishRun(ctx context.Context, id string, status models.RunStatus, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE runs SET status = ?, finished_at = ?, updated_at = ? WHERE id = ?
	`), status, finishedAt, time.Now().UTC(), id)
	return err
}

// CreateAccountRun creates one account's slice of a run
func (s *Store) CreateAccountRun(ctx context.Context, ar *models.AccountRun) error {
	if ar.ID == "" {
		ar.ID = uuid.New().String()
	}
	if ar.Status == "" {
		ar.Status = models.AccountRunQueued
	}
	now := time.Now().UTC()
	ar.CreatedAt = now
	ar.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO account_runs (`+accountRunColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), ar.ID, ar.WorkspaceID, ar.RunID, ar.SocialAccountID, ar.Status,
		ar.ErrorCode, ar.StartedAt, ar.FinishedAt, ar.CreatedAt, ar.UpdatedAt)
	return err
}

// GetAccountRun retrieves an account run by ID
func (s *Store) GetAccountRun(ctx context.Context, id string) (*models.AccountRun, error) {
	row := s.ro.QueryRowContext(ctx, s.ro.Rebind(`
		SELECT `+accountRunColumns+` FROM account_runs WHERE id = ?
	`), id)
	ar, err := scanAccountRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ar, err
}

// ListAccountRuns returns all account runs for a run
func (s *Store) ListAccountRuns(ctx context.Context, runID string) ([]*models.AccountRun, error) {
	rows, err := s.ro.QueryContext(ctx, s.ro.Rebind(`
		SELECT `+accountRunColumns+` FROM account_runs WHERE run_id = ? ORDER BY created_at
	`), runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var accountRuns []*models.AccountRun
	for rows.Next() {
		ar, err := scanAccountRun(rows)
		if err != nil {
			return nil, err
		}
		accountRuns = append(accountRuns, ar)
	}
	return accountRuns, rows.Err()
}

// ListQueuedAccountRunIDs returns the ids of account runs awaiting execution.
// The durable queue re-enqueues these on startup: the database is the source
// of truth, the in-process queue only a dispatch vehicle.
func (s *Store) ListQueuedAccountRunIDs(ctx context.Context) ([]string, error) {
	rows, err := s.ro.QueryContext(ctx, s.ro.Rebind(`
		SELECT id FROM account_runs WHERE status IN (?, ?) ORDER BY created_at
	`), models.AccountRunQueued, models.AccountRunRetryWaiting)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountRunningAccountRuns returns how many of the run's account runs are
// currently executing. The dispatcher uses it to enforce per-run parallelism.
func (s *Store) CountRunningAccountRuns(ctx context.Context, runID string) (int, error) {
	var count int
	err := s.ro.QueryRowContext(ctx, s.ro.Rebind(`
		SELECT COUNT(*) FROM account_runs WHERE run_id = ? AND status = ?
	`), runID, models.AccountRunRunning).Scan(&count)
	return count, err
}

// ClaimAccountRun atomically advances a queued (or retry_waiting) account run
// to running. Returns false when the row was not claimable, which makes task
// receipt idempotent.
func (s *Store) ClaimAccountRun(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE account_runs SET status = ?, started_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)
	`), models.AccountRunRunning, startedAt, time.Now().UTC(), id,
		models.AccountRunQueued, models.AccountRunRetryWaiting)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// FinishAccountRun stamps a terminal account-run status with its error code
func (s *Store) FinishAccountRun(ctx context.Context, id string, status models.AccountRunStatus, errorCode *string, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE account_runs SET status = ?, error_code = ?, finished_at = ?, updated_at = ? WHERE id = ?
	`), status, errorCode, finishedAt, time.Now().UTC(), id)
	return err
}

// RollupRun recomputes the parent run's terminal status from its account
// runs. While any sibling is non-terminal the run is left untouched.
func (s *Store) RollupRun(ctx context.Context, runID string) error {
	siblings, err := s.ListAccountRuns(ctx, runID)
	if err != nil {
		return err
	}

	anyFailed := false
	for _, ar := range siblings {
		if !ar.Status.IsTerminal() {
			return nil
		}
		if ar.Status == models.AccountRunFailed {
			anyFailed = true
		}
	}

	status := models.RunStatusSucceeded
	if anyFailed {
		status = models.RunStatusFailed
	}
	return s.FinishRun(ctx, runID, status, time.Now().UTC())
}
