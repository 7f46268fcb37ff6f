package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/syncsocial/syncsocial/internal/automation/models"
	"github.com/syncsocial/syncsocial/internal/db/dialect"
)

const scheduleColumns = `id, workspace_id, strategy_id, enabled, frequency, schedule_spec, random_config, account_selector, max_parallel, next_run_at, last_run_at, created_at, updated_at`

func scanSchedule(row interface{ Scan(...any) error }) (*models.Schedule, error) {
	sc := &models.Schedule{}
	var enabled int
	var spec, random, selector string
	var nextRun, lastRun sql.NullTime
	err := row.Scan(&sc.ID, &sc.WorkspaceID, &sc.StrategyID, &enabled, &sc.Frequency,
		&spec, &random, &selector, &sc.MaxParallel, &nextRun, &lastRun, &sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sc.Enabled = enabled != 0
	sc.ScheduleSpec = unmarshalMap(spec)
	sc.RandomConfig = unmarshalMap(random)
	sc.AccountSelector = unmarshalMap(selector)
	if nextRun.Valid {
		sc.NextRunAt = &nextRun.Time
	}
	if lastRun.Valid {
		sc.LastRunAt = &lastRun.Time
	}
	return sc, nil
}

// CreateSchedule creates a new schedule
func (s *Store) CreateSchedule(ctx context.Context, sc *models.Schedule) error {
	if sc.ID == "" {
		sc.ID = uuid.New().String()
	}
	if sc.Frequency == "" {
		sc.Frequency = models.FrequencyManual
	}
	if sc.MaxParallel <= 0 {
		sc.MaxParallel = 1
	}
	now := time.Now().UTC()
	sc.CreatedAt = now
	sc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO schedules (`+scheduleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), sc.ID, sc.WorkspaceID, sc.StrategyID, dialect.BoolToInt(sc.Enabled), sc.Frequency,
		marshalMap(sc.ScheduleSpec), marshalMap(sc.RandomConfig), marshalMap(sc.AccountSelector),
		sc.MaxParallel, sc.NextRunAt, sc.LastRunAt, sc.CreatedAt, sc.UpdatedAt)
	return err
}

// GetSchedule retrieves a schedule by ID
func (s *Store) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	row := s.ro.QueryRowContext(ctx, s.ro.Rebind(`
		SELECT `+scheduleColumns+` FROM schedules WHERE id = ?
	`), id)
	sc, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("schedule not found: %s", id)
	}
	return sc, err
}

// ListSchedules returns all schedules for a workspace
func (s *Store) ListSchedules(ctx context.Context, workspaceID string) ([]*models.Schedule, error) {
	rows, err := s.ro.QueryContext(ctx, s.ro.Rebind(`
		SELECT `+scheduleColumns+` FROM schedules WHERE workspace_id = ? ORDER BY created_at
	`), workspaceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectSchedules(rows)
}

func collectSchedules(rows *sql.Rows) ([]*models.Schedule, error) {
	var schedules []*models.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sc)
	}
	return schedules, rows.Err()
}

// UpdateSchedule persists user-editable schedule fields
func (s *Store) UpdateSchedule(ctx context.Context, sc *models.Schedule) error {
	sc.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE schedules SET enabled = ?, frequency = ?, schedule_spec = ?, random_config = ?, account_selector = ?, max_parallel = ?, next_run_at = ?, updated_at = ?
		WHERE workspace_id = ? AND id = ?
	`), dialect.BoolToInt(sc.Enabled), sc.Frequency, marshalMap(sc.ScheduleSpec), marshalMap(sc.RandomConfig),
		marshalMap(sc.AccountSelector), sc.MaxParallel, sc.NextRunAt, sc.UpdatedAt, sc.WorkspaceID, sc.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("schedule not found: %s", sc.ID)
	}
	return nil
}

// DeleteSchedule removes a schedule
func (s *Store) DeleteSchedule(ctx context.Context, workspaceID, id string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM schedules WHERE workspace_id = ? AND id = ?
	`), workspaceID, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("schedule not found: %s", id)
	}
	return nil
}

// ListUnplannedSchedules returns enabled non-manual schedules whose
// next_run_at has never been computed.
func (s *Store) ListUnplannedSchedules(ctx context.Context) ([]*models.Schedule, error) {
	rows, err := s.ro.QueryContext(ctx, s.ro.Rebind(`
		SELECT `+scheduleColumns+` FROM schedules
		WHERE enabled = 1 AND frequency != ? AND next_run_at IS NULL
	`), models.FrequencyManual)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectSchedules(rows)
}

// ClaimDueSchedules selects due schedules under a row lock so concurrent
// replicas do not double-fire. On Postgres the claim uses SKIP LOCKED; on
// SQLite the single-writer connection serializes the wave.
func (s *Store) ClaimDueSchedules(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT `+scheduleColumns+` FROM schedules
		WHERE enabled = 1 AND frequency != ? AND next_run_at IS NOT NULL AND next_run_at <= ?
		ORDER BY next_run_at`+dialect.SkipLocked(s.db.DriverName()),
	), models.FrequencyManual, now)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectSchedules(rows)
}

// SetScheduleNextRunAt stamps only the next fire time
func (s *Store) SetScheduleNextRunAt(ctx context.Context, id string, nextRunAt *time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE schedules SET next_run_at = ?, updated_at = ? WHERE id = ?
	`), nextRunAt, time.Now().UTC(), id)
	return err
}

// AdvanceSchedule stamps last_run_at and moves next_run_at forward after a fire
func (s *Store) AdvanceSchedule(ctx context.Context, id string, nextRunAt *time.Time, lastRunAt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE schedules SET next_run_at = ?, last_run_at = ?, updated_at = ? WHERE id = ?
	`), nextRunAt, lastRunAt, time.Now().UTC(), id)
	return err
}
