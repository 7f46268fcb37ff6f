package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/automation/models"
	"github.com/syncsocial/syncsocial/internal/automation/planner"
)

// Schedule operations

// CreateScheduleRequest carries the fields for a new schedule.
type CreateScheduleRequest struct {
	StrategyID      string
	Enabled         bool
	Frequency       models.ScheduleFrequency
	ScheduleSpec    map[string]any
	RandomConfig    map[string]any
	AccountSelector map[string]any
	MaxParallel     int
}

// UpdateScheduleRequest carries a partial schedule update.
type UpdateScheduleRequest struct {
	Enabled         *bool
	Frequency       *models.ScheduleFrequency
	ScheduleSpec    map[string]any
	RandomConfig    map[string]any
	AccountSelector map[string]any
	MaxParallel     *int
}

// CreateSchedule creates a schedule with its first fire time computed up
// front.
func (s *Service) CreateSchedule(ctx context.Context, workspaceID string, req *CreateScheduleRequest) (*models.Schedule, error) {
	if _, err := s.GetStrategy(ctx, workspaceID, req.StrategyID); err != nil {
		return nil, fmt.Errorf("invalid strategy_id")
	}

	selector := req.AccountSelector
	if selector == nil {
		selector = map[string]any{"all": true}
	}
	sc := &models.Schedule{
		WorkspaceID:     workspaceID,
		StrategyID:      req.StrategyID,
		Enabled:         req.Enabled,
		Frequency:       req.Frequency,
		ScheduleSpec:    req.ScheduleSpec,
		RandomConfig:    req.RandomConfig,
		AccountSelector: selector,
		MaxParallel:     req.MaxParallel,
		NextRunAt:       planner.NextFire(req.Frequency, req.ScheduleSpec, req.RandomConfig, time.Now().UTC()),
	}
	if err := s.store.CreateSchedule(ctx, sc); err != nil {
		s.logger.Error("failed to create schedule", zap.Error(err))
		return nil, err
	}
	s.logger.Info("schedule created",
		zap.String("workspace_id", workspaceID),
		zap.String("schedule_id", sc.ID))
	return sc, nil
}

// ListSchedules returns the workspace's schedules.
func (s *Service) ListSchedules(ctx context.Context, workspaceID string) ([]*models.Schedule, error) {
	return s.store.ListSchedules(ctx, workspaceID)
}

// GetSchedule retrieves a workspace-scoped schedule.
func (s *Service) GetSchedule(ctx context.Context, workspaceID, id string) (*models.Schedule, error) {
	sc, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if sc == nil || sc.WorkspaceID != workspaceID {
		return nil, fmt.Errorf("schedule not found")
	}
	return sc, nil
}

// UpdateSchedule applies a partial update. Changing the firing policy
// recomputes next_run_at from now.
func (s *Service) UpdateSchedule(ctx context.Context, workspaceID, id string, req *UpdateScheduleRequest) (*models.Schedule, error) {
	sc, err := s.GetSchedule(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}

	policyChanged := false
	if req.Enabled != nil {
		sc.Enabled = *req.Enabled
	}
	if req.Frequency != nil {
		sc.Frequency = *req.Frequency
		policyChanged = true
	}
	if req.ScheduleSpec != nil {
		sc.ScheduleSpec = req.ScheduleSpec
		policyChanged = true
	}
	if req.RandomConfig != nil {
		sc.RandomConfig = req.RandomConfig
		policyChanged = true
	}
	if req.AccountSelector != nil {
		sc.AccountSelector = req.AccountSelector
	}
	if req.MaxParallel != nil {
		sc.MaxParallel = *req.MaxParallel
	}
	if policyChanged {
		sc.NextRunAt = planner.NextFire(sc.Frequency, sc.ScheduleSpec, sc.RandomConfig, time.Now().UTC())
	}

	if err := s.store.UpdateSchedule(ctx, sc); err != nil {
		s.logger.Error("failed to update schedule",
			zap.String("schedule_id", id),
			zap.Error(err))
		return nil, err
	}
	return sc, nil
}

// DeleteSchedule removes a schedule.
func (s *Service) DeleteSchedule(ctx context.Context, workspaceID, id string) error {
	return s.store.DeleteSchedule(ctx, workspaceID, id)
}

// RunNow fires a schedule immediately, bypassing its timer but not the
// subscription gates. The schedule advances exactly as if the timer fired.
func (s *Service) RunNow(ctx context.Context, workspaceID, scheduleID, triggeredBy string) (*models.Run, error) {
	sc, err := s.GetSchedule(ctx, workspaceID, scheduleID)
	if err != nil {
		return nil, err
	}
	if !sc.Enabled {
		return nil, fmt.Errorf("invalid state: schedule disabled")
	}

	strategy, err := s.GetStrategy(ctx, workspaceID, sc.StrategyID)
	if err != nil {
		return nil, fmt.Errorf("invalid strategy")
	}

	now := time.Now().UTC()
	gateResult, err := s.gate.CheckRunAllowed(ctx, workspaceID, now)
	if err != nil {
		return nil, err
	}
	if !gateResult.Allowed {
		return nil, &RunNotAllowedError{Reason: gateResult.Reason}
	}

	accounts, err := s.resolveAccounts(ctx, workspaceID, strategy.PlatformKey, sc.AccountSelector)
	if err != nil {
		return nil, err
	}

	run, err := s.scheduler.TriggerRun(ctx, strategy, &sc.ID, accounts, triggeredBy)
	if err != nil {
		return nil, err
	}

	if err := s.store.AdvanceSchedule(ctx, sc.ID,
		planner.NextFire(sc.Frequency, sc.ScheduleSpec, sc.RandomConfig, now), now); err != nil {
		s.logger.Warn("failed to advance schedule after run-now",
			zap.String("schedule_id", sc.ID),
			zap.Error(err))
	}

	s.logger.Info("run triggered",
		zap.String("workspace_id", workspaceID),
		zap.String("schedule_id", sc.ID),
		zap.String("run_id", run.ID),
		zap.Int("accounts", len(accounts)))
	return run, nil
}

// resolveAccounts mirrors the dispatcher's selector semantics: explicit ids,
// "all", or the healthy default, always filtered to the strategy's platform.
func (s *Service) resolveAccounts(ctx context.Context, workspaceID, platformKey string, selector map[string]any) ([]*models.SocialAccount, error) {
	var accounts []*models.SocialAccount
	var err error

	switch {
	case len(idList(selector["ids"])) > 0:
		accounts, err = s.store.ListSocialAccountsByIDs(ctx, workspaceID, idList(selector["ids"]))
	case selector["all"] == true:
		accounts, err = s.store.ListSocialAccounts(ctx, workspaceID)
	default:
		accounts, err = s.store.ListHealthySocialAccounts(ctx, workspaceID)
	}
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.SocialAccount, 0, len(accounts))
	for _, acc := range accounts {
		if acc.PlatformKey == platformKey {
			filtered = append(filtered, acc)
		}
	}
	return filtered, nil
}

func idList(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
