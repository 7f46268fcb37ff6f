// Package subscription enforces workspace plan limits before automation
// work is admitted. A workspace with no subscription row is unlimited.
package subscription

import (
	"context"
	"strings"
	"time"

	"github.com/syncsocial/syncsocial/internal/automation/models"
	"github.com/syncsocial/syncsocial/internal/automation/store"
)

// Denial reasons surfaced to API callers.
const (
	ReasonInactive      = "SUBSCRIPTION_INACTIVE"
	ReasonExpired       = "SUBSCRIPTION_EXPIRED"
	ReasonQuotaExceeded = "RUNTIME_QUOTA_EXCEEDED"
)

const (
	secondsPerRuntimeHour = 3600
	defaultParallelLimit  = 1
)

// CheckResult is the outcome of a single gate evaluation.
type CheckResult struct {
	Allowed bool
	Reason  string
}

func allow() CheckResult {
	return CheckResult{Allowed: true}
}

func deny(reason string) CheckResult {
	return CheckResult{Allowed: false, Reason: reason}
}

// Gate evaluates plan limits against the store.
type Gate struct {
	store *store.Store
}

// NewGate creates a subscription gate backed by the given store.
func NewGate(st *store.Store) *Gate {
	return &Gate{store: st}
}

// MonthStart returns the first instant of the UTC month containing t,
// the bucket key used for runtime usage accounting.
func MonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// IsActive reports whether a subscription permits automation right now.
// A nil subscription means the workspace is not on a plan and is allowed.
func IsActive(sub *models.WorkspaceSubscription, now time.Time) CheckResult {
	if sub == nil {
		return allow()
	}
	status := strings.ToLower(strings.TrimSpace(sub.Status))
	if status != models.SubscriptionStatusTrial && status != models.SubscriptionStatusActive {
		return deny(ReasonInactive)
	}
	if sub.CurrentPeriodEnd != nil && !sub.CurrentPeriodEnd.After(now.UTC()) {
		return deny(ReasonExpired)
	}
	return allow()
}

// HasRemainingQuota reports whether the workspace still has monthly
// automation runtime left. Plans without a runtime cap always pass.
func HasRemainingQuota(sub *models.WorkspaceSubscription, usedSeconds int64) CheckResult {
	if sub == nil || sub.AutomationRuntimeHours == nil {
		return allow()
	}
	quotaSeconds := int64(*sub.AutomationRuntimeHours) * secondsPerRuntimeHour
	if quotaSeconds <= 0 {
		return allow()
	}
	if usedSeconds >= quotaSeconds {
		return deny(ReasonQuotaExceeded)
	}
	return allow()
}

// EffectiveParallelLimit caps a schedule's requested parallelism by the
// plan's max parallel sessions. The result is always at least 1.
func EffectiveParallelLimit(sub *models.WorkspaceSubscription, scheduleMaxParallel int) int {
	candidate := scheduleMaxParallel
	if candidate <= 0 {
		candidate = defaultParallelLimit
	}
	if sub == nil || sub.MaxParallelSessions == nil {
		return candidate
	}
	quota := *sub.MaxParallelSessions
	if quota <= 0 {
		return candidate
	}
	if candidate > quota {
		candidate = quota
	}
	if candidate < 1 {
		candidate = 1
	}
	return candidate
}

// CheckRunAllowed is the admission gate for starting automation runs:
// the subscription must be active and the monthly runtime quota must not
// be exhausted.
func (g *Gate) CheckRunAllowed(ctx context.Context, workspaceID string, now time.Time) (CheckResult, error) {
	sub, err := g.store.GetWorkspaceSubscription(ctx, workspaceID)
	if err != nil {
		return deny(""), err
	}
	if res := IsActive(sub, now); !res.Allowed {
		return res, nil
	}
	if sub == nil || sub.AutomationRuntimeHours == nil {
		return allow(), nil
	}
	used, err := g.store.GetUsageSeconds(ctx, workspaceID, MonthStart(now))
	if err != nil {
		return deny(""), err
	}
	return HasRemainingQuota(sub, used), nil
}

// ParallelLimit resolves the effective parallel session cap for a
// workspace and schedule setting.
func (g *Gate) ParallelLimit(ctx context.Context, workspaceID string, scheduleMaxParallel int) (int, error) {
	sub, err := g.store.GetWorkspaceSubscription(ctx, workspaceID)
	if err != nil {
		return defaultParallelLimit, err
	}
	return EffectiveParallelLimit(sub, scheduleMaxParallel), nil
}
