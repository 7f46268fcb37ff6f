package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/syncsocial/syncsocial/internal/automation/models"
)

// UpsertWorkspaceSubscription inserts or replaces the subscription row for a
// workspace (one per workspace).
func (s *Store) UpsertWorkspaceSubscription(ctx context.Context, sub *models.WorkspaceSubscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO workspace_subscriptions (id, workspace_id, status, plan_key, seats, max_social_accounts, max_parallel_sessions, automation_runtime_hours, artifact_retention_days, current_period_start, current_period_end, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace_id) DO UPDATE SET
			status = excluded.status,
			plan_key = excluded.plan_key,
			seats = excluded.seats,
			max_social_accounts = excluded.max_social_accounts,
			max_parallel_sessions = excluded.max_parallel_sessions,
			automation_runtime_hours = excluded.automation_runtime_hours,
			artifact_retention_days = excluded.artifact_retention_days,
			current_period_start = excluded.current_period_start,
			current_period_end = excluded.current_period_end,
			updated_at = excluded.updated_at
	`), sub.ID, sub.WorkspaceID, sub.Status, sub.PlanKey, sub.Seats,
		sub.MaxSocialAccounts, sub.MaxParallelSessions, sub.AutomationRuntimeHours, sub.ArtifactRetentionDays,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CreatedAt, sub.UpdatedAt)
	return err
}

// GetWorkspaceSubscription retrieves the subscription for a workspace.
// Returns (nil, nil) when absent.
func (s *Store) GetWorkspaceSubscription(ctx context.Context, workspaceID string) (*models.WorkspaceSubscription, error) {
	sub := &models.WorkspaceSubscription{}
	var maxAccounts, maxSessions, runtimeHours, retentionDays sql.NullInt64
	var periodStart, periodEnd sql.NullTime
	err := s.ro.QueryRowContext(ctx, s.ro.Rebind(`
		SELECT id, workspace_id, status, plan_key, seats, max_social_accounts, max_parallel_sessions, automation_runtime_hours, artifact_retention_days, current_period_start, current_period_end, created_at, updated_at
		FROM workspace_subscriptions WHERE workspace_id = ?
	`), workspaceID).Scan(&sub.ID, &sub.WorkspaceID, &sub.Status, &sub.PlanKey, &sub.Seats,
		&maxAccounts, &maxSessions, &runtimeHours, &retentionDays, &periodStart, &periodEnd,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if maxAccounts.Valid {
		v := int(maxAccounts.Int64)
		sub.MaxSocialAccounts = &v
	}
	if maxSessions.Valid {
		v := int(maxSessions.Int64)
		sub.MaxParallelSessions = &v
	}
	if runtimeHours.Valid {
		v := int(runtimeHours.Int64)
		sub.AutomationRuntimeHours = &v
	}
	if retentionDays.Valid {
		v := int(retentionDays.Int64)
		sub.ArtifactRetentionDays = &v
	}
	if periodStart.Valid {
		sub.CurrentPeriodStart = &periodStart.Time
	}
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = &periodEnd.Time
	}
	return sub, nil
}

// ListWorkspaceIDsWithRetention returns workspaces whose subscription sets an
// artifact retention window, with the window in days.
func (s *Store) ListWorkspaceIDsWithRetention(ctx context.Context) (map[string]int, error) {
	rows, err := s.ro.QueryContext(ctx, `
		SELECT workspace_id, artifact_retention_days FROM workspace_subscriptions
		WHERE artifact_retention_days IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	retention := make(map[string]int)
	for rows.Next() {
		var workspaceID string
		var days int
		if err := rows.Scan(&workspaceID, &days); err != nil {
			return nil, err
		}
		retention[workspaceID] = days
	}
	return retention, rows.Err()
}

// AddUsageSeconds atomically accumulates automation runtime into the
// workspace's UTC-month bucket. The arithmetic update inside the upsert is
// what keeps concurrent completions from losing increments.
func (s *Store) AddUsageSeconds(ctx context.Context, workspaceID string, periodStart time.Time, seconds int64) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO workspace_usage_monthly (id, workspace_id, period_start, automation_runtime_seconds, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace_id, period_start) DO UPDATE SET
			automation_runtime_seconds = workspace_usage_monthly.automation_runtime_seconds + excluded.automation_runtime_seconds,
			updated_at = excluded.updated_at
	`), uuid.New().String(), workspaceID, periodStart, seconds, now, now)
	return err
}

// GetUsageSeconds reads the accumulated runtime for a month bucket.
// Returns 0 when the bucket does not exist.
func (s *Store) GetUsageSeconds(ctx context.Context, workspaceID string, periodStart time.Time) (int64, error) {
	var seconds int64
	err := s.ro.QueryRowContext(ctx, s.ro.Rebind(`
		SELECT automation_runtime_seconds FROM workspace_usage_monthly
		WHERE workspace_id = ? AND period_start = ?
	`), workspaceID, periodStart).Scan(&seconds)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seconds, err
}
