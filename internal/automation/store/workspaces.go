package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/syncsocial/syncsocial/internal/automation/models"
)

// CreateWorkspace creates a new workspace
func (s *Store) CreateWorkspace(ctx context.Context, ws *models.Workspace) error {
	if ws.ID == "" {
		ws.ID = uuid.New().String()
	}
	if ws.Status == "" {
		ws.Status = "active"
	}
	now := time.Now().UTC()
	ws.CreatedAt = now
	ws.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO workspaces (id, name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`), ws.ID, ws.Name, ws.Status, ws.CreatedAt, ws.UpdatedAt)
	return err
}

// GetWorkspace retrieves a workspace by ID
func (s *Store) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	ws := &models.Workspace{}
	err := s.ro.QueryRowContext(ctx, s.ro.Rebind(`
		SELECT id, name, status, created_at, updated_at FROM workspaces WHERE id = ?
	`), id).Scan(&ws.ID, &ws.Name, &ws.Status, &ws.CreatedAt, &ws.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workspace not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return ws, nil
}
