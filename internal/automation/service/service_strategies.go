package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/automation/models"
	"github.com/syncsocial/syncsocial/internal/platform"
)

// Strategy operations

// CreateStrategyRequest carries the fields for a new strategy.
type CreateStrategyRequest struct {
	Name        string
	PlatformKey string
	Config      map[string]any
}

// UpdateStrategyRequest carries a partial strategy update. A config change
// bumps the strategy version.
type UpdateStrategyRequest struct {
	Name   *string
	Config map[string]any
}

// CreateStrategy creates a version-1 strategy for the workspace.
func (s *Service) CreateStrategy(ctx context.Context, workspaceID string, req *CreateStrategyRequest) (*models.Strategy, error) {
	platformKey := strings.ToLower(strings.TrimSpace(req.PlatformKey))
	if _, err := platform.Lookup(platformKey); err != nil {
		return nil, err
	}

	st := &models.Strategy{
		WorkspaceID: workspaceID,
		Name:        req.Name,
		PlatformKey: platformKey,
		Version:     1,
		Config:      req.Config,
	}
	if err := s.store.CreateStrategy(ctx, st); err != nil {
		s.logger.Error("failed to create strategy", zap.Error(err))
		return nil, err
	}
	s.logger.Info("strategy created",
		zap.String("workspace_id", workspaceID),
		zap.String("strategy_id", st.ID))
	return st, nil
}

// ListStrategies returns the workspace's strategies.
func (s *Service) ListStrategies(ctx context.Context, workspaceID string) ([]*models.Strategy, error) {
	return s.store.ListStrategies(ctx, workspaceID)
}

// GetStrategy retrieves a workspace-scoped strategy.
func (s *Service) GetStrategy(ctx context.Context, workspaceID, id string) (*models.Strategy, error) {
	st, err := s.store.GetStrategy(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil || st.WorkspaceID != workspaceID {
		return nil, fmt.Errorf("strategy not found")
	}
	return st, nil
}

// UpdateStrategy applies a partial update. Any update that touches the
// config bumps the version so in-flight runs keep their pinned semantics.
func (s *Service) UpdateStrategy(ctx context.Context, workspaceID, id string, req *UpdateStrategyRequest) (*models.Strategy, error) {
	st, err := s.GetStrategy(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}

	name := st.Name
	if req.Name != nil {
		name = *req.Name
	}
	config := st.Config
	if req.Config != nil {
		config = req.Config
	}

	updated, err := s.store.UpdateStrategyConfig(ctx, workspaceID, id, name, config)
	if err != nil {
		s.logger.Error("failed to update strategy",
			zap.String("strategy_id", id),
			zap.Error(err))
		return nil, err
	}
	return updated, nil
}

// DeleteStrategy removes a strategy.
func (s *Service) DeleteStrategy(ctx context.Context, workspaceID, id string) error {
	return s.store.DeleteStrategy(ctx, workspaceID, id)
}
