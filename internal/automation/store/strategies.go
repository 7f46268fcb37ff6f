package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/syncsocial/syncsocial/internal/automation/models"
)

const strategyColumns = `id, workspace_id, name, platform_key, version, config, created_at, updated_at`

func scanStrategy(row interface{ Scan(...any) error }) (*models.Strategy, error) {
	st := &models.Strategy{}
	var config string
	err := row.Scan(&st.ID, &st.WorkspaceID, &st.Name, &st.PlatformKey, &st.Version, &config, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	st.Config = unmarshalMap(config)
	return st, nil
}

// CreateStrategy creates a new strategy at version 1
func (s *Store) CreateStrategy(ctx context.Context, st *models.Strategy) error {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	if st.Version == 0 {
		st.Version = 1
	}
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO strategies (`+strategyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), st.ID, st.WorkspaceID, st.Name, st.PlatformKey, st.Version, marshalMap(st.Config), st.CreatedAt, st.UpdatedAt)
	return err
}

// GetStrategy retrieves a strategy by ID
func (s *Store) GetStrategy(ctx context.Context, id string) (*models.Strategy, error) {
	row := s.ro.QueryRowContext(ctx, s.ro.Rebind(`
		SELECT `+strategyColumns+` FROM strategies WHERE id = ?
	`), id)
	st, err := scanStrategy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

// ListStrategies returns all strategies for a workspace
func (s *Store) ListStrategies(ctx context.Context, workspaceID string) ([]*models.Strategy, error) {
	rows, err := s.ro.QueryContext(ctx, s.ro.Rebind(`
		SELECT `+strategyColumns+` FROM strategies WHERE workspace_id = ? ORDER BY created_at
	`), workspaceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var strategies []*models.Strategy
	for rows.Next() {
		st, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, st)
	}
	return strategies, rows.Err()
}

// UpdateStrategyConfig replaces a strategy's config and bumps its version.
func (s *Store) UpdateStrategyConfig(ctx context.Context, workspaceID, id string, name string, config map[string]any) (*models.Strategy, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE strategies SET name = ?, config = ?, version = version + 1, updated_at = ?
		WHERE workspace_id = ? AND id = ?
	`), name, marshalMap(config), time.Now().UTC(), workspaceID, id)
	if err != nil {
		return nil, err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, fmt.Errorf("strategy not found: %s", id)
	}
	return s.GetStrategy(ctx, id)
}

// DeleteStrategy removes a strategy
func (s *Store) DeleteStrategy(ctx context.Context, workspaceID, id string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM strategies WHERE workspace_id = ? AND id = ?
	`), workspaceID, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("strategy not found: %s", id)
	}
	return nil
}
