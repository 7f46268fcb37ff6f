package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syncsocial/syncsocial/internal/automation/models"
)

const actionColumns = `id, workspace_id, account_run_id, action_type, platform_key, target_external_id, target_url, idempotency_key, status, error_code, metadata, started_at, finished_at, created_at, updated_at`

func scanAction(row interface{ Scan(...any) error }) (*models.Action, error) {
	a := &models.Action{}
	var targetExternalID, targetURL, errorCode sql.NullString
	var metadata string
	var startedAt, finishedAt sql.NullTime
	err := row.Scan(&a.ID, &a.WorkspaceID, &a.AccountRunID, &a.ActionType, &a.PlatformKey,
		&targetExternalID, &targetURL, &a.IdempotencyKey, &a.Status, &errorCode, &metadata,
		&startedAt, &finishedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if targetExternalID.Valid {
		a.TargetExternalID = &targetExternalID.String
	}
	if targetURL.Valid {
		a.TargetURL = &targetURL.String
	}
	if errorCode.Valid {
		a.ErrorCode = &errorCode.String
	}
	a.Metadata = unmarshalMap(metadata)
	if startedAt.Valid {
		a.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		a.FinishedAt = &finishedAt.Time
	}
	return a, nil
}

// FindOrCreateAction materializes one planned action. The unique
// (workspace_id, idempotency_key) index is the convergence point: a
// concurrent or repeated plan for the same logical action lands on the
// existing row, which is returned unchanged.
func (s *Store) FindOrCreateAction(ctx context.Context, a *models.Action) (*models.Action, bool, error) {
	if existing, err := s.GetActionByIdempotencyKey(ctx, a.WorkspaceID, a.IdempotencyKey); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = models.ActionQueued
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO actions (`+actionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace_id, idempotency_key) DO NOTHING
	`), a.ID, a.WorkspaceID, a.AccountRunID, a.ActionType, a.PlatformKey,
		a.TargetExternalID, a.TargetURL, a.IdempotencyKey, a.Status, a.ErrorCode,
		marshalMap(a.Metadata), a.StartedAt, a.FinishedAt, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return nil, false, err
	}

	// Re-read through the index: on a lost insert race this returns the
	// winner's row.
	existing, err := s.GetActionByIdempotencyKey(ctx, a.WorkspaceID, a.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("action vanished after insert: %s", a.IdempotencyKey)
	}
	return existing, existing.ID == a.ID, nil
}

// GetActionByIdempotencyKey looks an action up by its workspace-scoped key.
// Returns (nil, nil) when absent.
func (s *Store) GetActionByIdempotencyKey(ctx context.Context, workspaceID, key string) (*models.Action, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT `+actionColumns+` FROM actions WHERE workspace_id = ? AND idempotency_key = ?
	`), workspaceID, key)
	a, err := scanAction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// GetAction retrieves an action by ID
func (s *Store) GetAction(ctx context.Context, id string) (*models.Action, error) {
	row := s.ro.QueryRowContext(ctx, s.ro.Rebind(`
		SELECT `+actionColumns+` FROM actions WHERE id = ?
	`), id)
	a, err := scanAction(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("action not found: %s", id)
	}
	return a, err
}

// ListActions returns all actions for an account run in creation order
func (s *Store) ListActions(ctx context.Context, accountRunID string) ([]*models.Action, error) {
	rows, err := s.ro.QueryContext(ctx, s.ro.Rebind(`
		SELECT `+actionColumns+` FROM actions WHERE account_run_id = ? ORDER BY created_at
	`), accountRunID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var actions []*models.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// MarkActionsRunning advances the chosen actions to running with a shared
// started_at, so a batch reads as one dispatch.
func (s *Store) MarkActionsRunning(ctx context.Context, ids []string, startedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := []any{models.ActionRunning, startedAt, time.Now().UTC()}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE actions SET status = ?, started_at = ?, updated_at = ? WHERE id IN (`+placeholders+`)
	`), args...)
	return err
}

// FinishAction stamps an action's terminal status, error code, and metadata
func (s *Store) FinishAction(ctx context.Context, id string, status models.ActionStatus, errorCode *string, metadata map[string]any, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE actions SET status = ?, error_code = ?, metadata = ?, finished_at = ?, updated_at = ? WHERE id = ?
	`), status, errorCode, marshalMap(metadata), finishedAt, time.Now().UTC(), id)
	return err
}
