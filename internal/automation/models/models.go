// Package models defines the automation domain entities persisted by the
// control plane.
package models

import "time"

// AccountStatus represents the health of a social account's credentials
type AccountStatus string

const (
	AccountStatusNeedsLogin AccountStatus = "needs_login"
	AccountStatusHealthy    AccountStatus = "healthy"
)

// LoginSessionStatus represents the lifecycle of an interactive login session
type LoginSessionStatus string

const (
	LoginSessionCreated   LoginSessionStatus = "created"
	LoginSessionActive    LoginSessionStatus = "active"
	LoginSessionCapturing LoginSessionStatus = "capturing"
	LoginSessionSucceeded LoginSessionStatus = "succeeded"
	LoginSessionFailed    LoginSessionStatus = "failed"
	LoginSessionExpired   LoginSessionStatus = "expired"
	LoginSessionCanceled  LoginSessionStatus = "canceled"
)

// IsTerminal reports whether the status is absorbing.
func (s LoginSessionStatus) IsTerminal() bool {
	switch s {
	case LoginSessionSucceeded, LoginSessionFailed, LoginSessionExpired, LoginSessionCanceled:
		return true
	}
	return false
}

// LoginSessionTTL is how long an interactive login session stays usable.
const LoginSessionTTL = 30 * time.Minute

// RunStatus represents the state of a Run
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// AccountRunStatus represents the state of one account's slice of a Run
type AccountRunStatus string

const (
	AccountRunQueued       AccountRunStatus = "queued"
	AccountRunRunning      AccountRunStatus = "running"
	AccountRunRetryWaiting AccountRunStatus = "retry_waiting"
	AccountRunSucceeded    AccountRunStatus = "succeeded"
	AccountRunFailed       AccountRunStatus = "failed"
)

// IsTerminal reports whether the account run has finished.
func (s AccountRunStatus) IsTerminal() bool {
	return s == AccountRunSucceeded || s == AccountRunFailed
}

// ActionStatus represents the state of a single worker action
type ActionStatus string

const (
	ActionQueued    ActionStatus = "queued"
	ActionRunning   ActionStatus = "running"
	ActionSucceeded ActionStatus = "succeeded"
	ActionSkipped   ActionStatus = "skipped"
	ActionFailed    ActionStatus = "failed"
)

// ScheduleFrequency represents how a schedule fires
type ScheduleFrequency string

const (
	FrequencyManual   ScheduleFrequency = "manual"
	FrequencyInterval ScheduleFrequency = "interval"
	FrequencyDaily    ScheduleFrequency = "daily"
)

// CredentialTypeStorageState is the only credential type the vault stores.
const CredentialTypeStorageState = "storage_state"

// ArtifactTypeScreenshot is the only artifact type currently produced.
const ArtifactTypeScreenshot = "screenshot"

// Workspace is the tenant root.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SocialAccount is an identity on an external platform.
type SocialAccount struct {
	ID                 string         `json:"id"`
	WorkspaceID        string         `json:"workspace_id"`
	PlatformKey        string         `json:"platform_key"`
	Handle             string         `json:"handle"`
	Status             AccountStatus  `json:"status"`
	Labels             map[string]any `json:"labels,omitempty"`
	FingerprintProfile map[string]any `json:"fingerprint_profile,omitempty"`
	LastHealthCheckAt  *time.Time     `json:"last_health_check_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Credential holds a sealed storage-state blob for one account.
type Credential struct {
	ID              string     `json:"id"`
	WorkspaceID     string     `json:"workspace_id"`
	SocialAccountID string     `json:"social_account_id"`
	CredentialType  string     `json:"credential_type"`
	EncryptedBlob   []byte     `json:"-"`
	KeyVersion      int        `json:"key_version"`
	ValidatedAt     *time.Time `json:"validated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// LoginSession is the control-plane twin of a worker login runtime.
type LoginSession struct {
	ID              string             `json:"id"`
	WorkspaceID     string             `json:"workspace_id"`
	SocialAccountID string             `json:"social_account_id"`
	PlatformKey     string             `json:"platform_key"`
	Status          LoginSessionStatus `json:"status"`
	RemoteURL       *string            `json:"remote_url,omitempty"`
	ExpiresAt       time.Time          `json:"expires_at"`
	CreatedBy       string             `json:"created_by"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Strategy is a declarative action-plan configuration.
type Strategy struct {
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspace_id"`
	Name        string         `json:"name"`
	PlatformKey string         `json:"platform_key"`
	Version     int            `json:"version"`
	Config      map[string]any `json:"config"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Schedule is a firing policy attached to one strategy.
type Schedule struct {
	ID              string            `json:"id"`
	WorkspaceID     string            `json:"workspace_id"`
	StrategyID      string            `json:"strategy_id"`
	Enabled         bool              `json:"enabled"`
	Frequency       ScheduleFrequency `json:"frequency"`
	ScheduleSpec    map[string]any    `json:"schedule_spec,omitempty"`
	RandomConfig    map[string]any    `json:"random_config,omitempty"`
	AccountSelector map[string]any    `json:"account_selector,omitempty"`
	MaxParallel     int               `json:"max_parallel"`
	NextRunAt       *time.Time        `json:"next_run_at,omitempty"`
	LastRunAt       *time.Time        `json:"last_run_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Run spans every selected account for one schedule fire (or run-now).
type Run struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	ScheduleID  *string    `json:"schedule_id,omitempty"`
	StrategyID  string     `json:"strategy_id"`
	TriggeredBy *string    `json:"triggered_by,omitempty"`
	Status      RunStatus  `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AccountRun executes the plan for one account within a Run.
type AccountRun struct {
	ID              string           `json:"id"`
	WorkspaceID     string           `json:"workspace_id"`
	RunID           string           `json:"run_id"`
	SocialAccountID string           `json:"social_account_id"`
	Status          AccountRunStatus `json:"status"`
	ErrorCode       *string          `json:"error_code,omitempty"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	FinishedAt      *time.Time       `json:"finished_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Action is one operation dispatched to the worker.
type Action struct {
	ID               string         `json:"id"`
	WorkspaceID      string         `json:"workspace_id"`
	AccountRunID     string         `json:"account_run_id"`
	ActionType       string         `json:"action_type"`
	PlatformKey      string         `json:"platform_key"`
	TargetExternalID *string        `json:"target_external_id,omitempty"`
	TargetURL        *string        `json:"target_url,omitempty"`
	IdempotencyKey   string         `json:"idempotency_key"`
	Status           ActionStatus   `json:"status"`
	ErrorCode        *string        `json:"error_code,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	FinishedAt       *time.Time     `json:"finished_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Artifact is a file written alongside an Action result.
type Artifact struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	ActionID    string    `json:"action_id"`
	Type        string    `json:"type"`
	StorageKey  string    `json:"storage_key"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// Subscription statuses that permit automation.
const (
	SubscriptionStatusTrial  = "trial"
	SubscriptionStatusActive = "active"
)

// WorkspaceSubscription is the read-only quota gate for a workspace.
type WorkspaceSubscription struct {
	ID                     string     `json:"id"`
	WorkspaceID            string     `json:"workspace_id"`
	Status                 string     `json:"status"`
	PlanKey                string     `json:"plan_key"`
	Seats                  int        `json:"seats"`
	MaxSocialAccounts      *int       `json:"max_social_accounts,omitempty"`
	MaxParallelSessions    *int       `json:"max_parallel_sessions,omitempty"`
	AutomationRuntimeHours *int       `json:"automation_runtime_hours,omitempty"`
	ArtifactRetentionDays  *int       `json:"artifact_retention_days,omitempty"`
	CurrentPeriodStart     *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `json:"current_period_end,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// WorkspaceUsageMonthly accumulates automation runtime per UTC month.
type WorkspaceUsageMonthly struct {
	ID                       string    `json:"id"`
	WorkspaceID              string    `json:"workspace_id"`
	PeriodStart              time.Time `json:"period_start"`
	AutomationRuntimeSeconds int64     `json:"automation_runtime_seconds"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}
