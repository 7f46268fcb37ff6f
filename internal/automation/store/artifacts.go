package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/syncsocial/syncsocial/internal/automation/models"
)

// CreateArtifact records a file written alongside an action result
func (s *Store) CreateArtifact(ctx context.Context, a *models.Artifact) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Type == "" {
		a.Type = models.ArtifactTypeScreenshot
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO artifacts (id, workspace_id, action_id, type, storage_key, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), a.ID, a.WorkspaceID, a.ActionID, a.Type, a.StorageKey, a.Size, a.CreatedAt)
	return err
}

// GetArtifact retrieves a workspace-scoped artifact. Returns (nil, nil)
// when absent.
func (s *Store) GetArtifact(ctx context.Context, workspaceID, id string) (*models.Artifact, error) {
	a := &models.Artifact{}
	err := s.ro.QueryRowContext(ctx, s.ro.Rebind(`
		SELECT id, workspace_id, action_id, type, storage_key, size, created_at
		FROM artifacts WHERE id = ? AND workspace_id = ?
	`), id, workspaceID).Scan(&a.ID, &a.WorkspaceID, &a.ActionID, &a.Type, &a.StorageKey, &a.Size, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListArtifactsForAction returns the artifacts recorded for an action
func (s *Store) ListArtifactsForAction(ctx context.Context, actionID string) ([]*models.Artifact, error) {
	rows, err := s.ro.QueryContext(ctx, s.ro.Rebind(`
		SELECT id, workspace_id, action_id, type, storage_key, size, created_at
		FROM artifacts WHERE action_id = ? ORDER BY created_at
	`), actionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var artifacts []*models.Artifact
	for rows.Next() {
		a := &models.Artifact{}
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.ActionID, &a.Type, &a.StorageKey, &a.Size, &a.CreatedAt); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// ListExpiredArtifacts returns up to limit artifacts for a workspace older
// than the cutoff, oldest first. The retention sweeper deletes in batches.
func (s *Store) ListExpiredArtifacts(ctx context.Context, workspaceID string, cutoff time.Time, limit int) ([]*models.Artifact, error) {
	rows, err := s.ro.QueryContext(ctx, s.ro.Rebind(`
		SELECT id, workspace_id, action_id, type, storage_key, size, created_at
		FROM artifacts WHERE workspace_id = ? AND created_at < ?
		ORDER BY created_at LIMIT ?
	`), workspaceID, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var artifacts []*models.Artifact
	for rows.Next() {
		a := &models.Artifact{}
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.ActionID, &a.Type, &a.StorageKey, &a.Size, &a.CreatedAt); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// DeleteArtifact removes one artifact row
func (s *Store) DeleteArtifact(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM artifacts WHERE id = ?`), id)
	return err
}
