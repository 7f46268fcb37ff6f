// Package dto defines the JSON shapes returned by the control-plane API.
package dto

import (
	"time"

	"github.com/syncsocial/syncsocial/internal/automation/models"
)

type WorkspaceDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SocialAccountDTO struct {
	ID                string         `json:"id"`
	WorkspaceID       string         `json:"workspace_id"`
	PlatformKey       string         `json:"platform_key"`
	Handle            string         `json:"handle"`
	Status            string         `json:"status"`
	Labels            map[string]any `json:"labels,omitempty"`
	LastHealthCheckAt *time.Time     `json:"last_health_check_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

type LoginSessionDTO struct {
	ID              string     `json:"id"`
	WorkspaceID     string     `json:"workspace_id"`
	SocialAccountID string     `json:"social_account_id"`
	PlatformKey     string     `json:"platform_key"`
	Status          string     `json:"status"`
	RemoteURL       *string    `json:"remote_url,omitempty"`
	ExpiresAt       time.Time  `json:"expires_at"`
	CreatedBy       string     `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type StrategyDTO struct {
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspace_id"`
	Name        string         `json:"name"`
	PlatformKey string         `json:"platform_key"`
	Version     int            `json:"version"`
	Config      map[string]any `json:"config"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type ScheduleDTO struct {
	ID              string         `json:"id"`
	WorkspaceID     string         `json:"workspace_id"`
	StrategyID      string         `json:"strategy_id"`
	Enabled         bool           `json:"enabled"`
	Frequency       string         `json:"frequency"`
	ScheduleSpec    map[string]any `json:"schedule_spec,omitempty"`
	RandomConfig    map[string]any `json:"random_config,omitempty"`
	AccountSelector map[string]any `json:"account_selector,omitempty"`
	MaxParallel     int            `json:"max_parallel"`
	NextRunAt       *time.Time     `json:"next_run_at,omitempty"`
	LastRunAt       *time.Time     `json:"last_run_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type RunDTO struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	ScheduleID  *string    `json:"schedule_id,omitempty"`
	StrategyID  string     `json:"strategy_id"`
	TriggeredBy *string    `json:"triggered_by,omitempty"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type AccountRunDTO struct {
	ID              string     `json:"id"`
	WorkspaceID     string     `json:"workspace_id"`
	RunID           string     `json:"run_id"`
	SocialAccountID string     `json:"social_account_id"`
	Status          string     `json:"status"`
	ErrorCode       *string    `json:"error_code,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type ActionDTO struct {
	ID               string         `json:"id"`
	WorkspaceID      string         `json:"workspace_id"`
	AccountRunID     string         `json:"account_run_id"`
	ActionType       string         `json:"action_type"`
	PlatformKey      string         `json:"platform_key"`
	TargetExternalID *string        `json:"target_external_id,omitempty"`
	TargetURL        *string        `json:"target_url,omitempty"`
	IdempotencyKey   string         `json:"idempotency_key"`
	Status           string         `json:"status"`
	ErrorCode        *string        `json:"error_code,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	FinishedAt       *time.Time     `json:"finished_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

type RunDetailDTO struct {
	Run         RunDTO          `json:"run"`
	AccountRuns []AccountRunDTO `json:"account_runs"`
	Actions     []ActionDTO     `json:"actions"`
}

type ListRunsResponse struct {
	Runs  []RunDTO `json:"runs"`
	Total int      `json:"total"`
}

type ListSocialAccountsResponse struct {
	Accounts []SocialAccountDTO `json:"accounts"`
	Total    int                `json:"total"`
}

type ListStrategiesResponse struct {
	Strategies []StrategyDTO `json:"strategies"`
	Total      int           `json:"total"`
}

type ListSchedulesResponse struct {
	Schedules []ScheduleDTO `json:"schedules"`
	Total     int           `json:"total"`
}

func FromWorkspace(w *models.Workspace) WorkspaceDTO {
	return WorkspaceDTO{
		ID:        w.ID,
		Name:      w.Name,
		Status:    w.Status,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func FromSocialAccount(a *models.SocialAccount) SocialAccountDTO {
	return SocialAccountDTO{
		ID:                a.ID,
		WorkspaceID:       a.WorkspaceID,
		PlatformKey:       a.PlatformKey,
		Handle:            a.Handle,
		Status:            string(a.Status),
		Labels:            a.Labels,
		LastHealthCheckAt: a.LastHealthCheckAt,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func FromLoginSession(ls *models.LoginSession) LoginSessionDTO {
	return LoginSessionDTO{
		ID:              ls.ID,
		WorkspaceID:     ls.WorkspaceID,
		SocialAccountID: ls.SocialAccountID,
		PlatformKey:     ls.PlatformKey,
		Status:          string(ls.Status),
		RemoteURL:       ls.RemoteURL,
		ExpiresAt:       ls.ExpiresAt,
		CreatedBy:       ls.CreatedBy,
		CreatedAt:       ls.CreatedAt,
		UpdatedAt:       ls.UpdatedAt,
	}
}

func FromStrategy(st *models.Strategy) StrategyDTO {
	return StrategyDTO{
		ID:          st.ID,
		WorkspaceID: st.WorkspaceID,
		Name:        st.Name,
		PlatformKey: st.PlatformKey,
		Version:     st.Version,
		Config:      st.Config,
		CreatedAt:   st.CreatedAt,
		UpdatedAt:   st.UpdatedAt,
	}
}

func FromSchedule(sc *models.Schedule) ScheduleDTO {
	return ScheduleDTO{
		ID:              sc.ID,
		WorkspaceID:     sc.WorkspaceID,
		StrategyID:      sc.StrategyID,
		Enabled:         sc.Enabled,
		Frequency:       string(sc.Frequency),
		ScheduleSpec:    sc.ScheduleSpec,
		RandomConfig:    sc.RandomConfig,
		AccountSelector: sc.AccountSelector,
		MaxParallel:     sc.MaxParallel,
		NextRunAt:       sc.NextRunAt,
		LastRunAt:       sc.LastRunAt,
		CreatedAt:       sc.CreatedAt,
		UpdatedAt:       sc.UpdatedAt,
	}
}

func FromRun(r *models.Run) RunDTO {
	return RunDTO{
		ID:          r.ID,
		WorkspaceID: r.WorkspaceID,
		ScheduleID:  r.ScheduleID,
		StrategyID:  r.StrategyID,
		TriggeredBy: r.TriggeredBy,
		Status:      string(r.Status),
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		CreatedAt:   r.CreatedAt,
	}
}

func FromAccountRun(ar *models.AccountRun) AccountRunDTO {
	return AccountRunDTO{
		ID:              ar.ID,
		WorkspaceID:     ar.WorkspaceID,
		RunID:           ar.RunID,
		SocialAccountID: ar.SocialAccountID,
		Status:          string(ar.Status),
		ErrorCode:       ar.ErrorCode,
		StartedAt:       ar.StartedAt,
		FinishedAt:      ar.FinishedAt,
		CreatedAt:       ar.CreatedAt,
	}
}

func FromAction(a *models.Action) ActionDTO {
	return ActionDTO{
		ID:               a.ID,
		WorkspaceID:      a.WorkspaceID,
		AccountRunID:     a.AccountRunID,
		ActionType:       a.ActionType,
		PlatformKey:      a.PlatformKey,
		TargetExternalID: a.TargetExternalID,
		TargetURL:        a.TargetURL,
		IdempotencyKey:   a.IdempotencyKey,
		Status:           string(a.Status),
		ErrorCode:        a.ErrorCode,
		Metadata:         a.Metadata,
		StartedAt:        a.StartedAt,
		FinishedAt:       a.FinishedAt,
		CreatedAt:        a.CreatedAt,
	}
}
