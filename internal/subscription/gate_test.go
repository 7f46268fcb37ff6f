package subscription

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncsocial/syncsocial/internal/automation/models"
	"github.com/syncsocial/syncsocial/internal/automation/store"
	"github.com/syncsocial/syncsocial/internal/db"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	pool, err := db.NewSQLitePool(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	st, err := store.New(pool)
	require.NoError(t, err)
	return st
}

func intPtr(v int) *int { return &v }

func TestIsActive(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Minute)

	res := IsActive(nil, now)
	assert.True(t, res.Allowed)

	res = IsActive(&models.WorkspaceSubscription{Status: "active", CurrentPeriodEnd: &future}, now)
	assert.True(t, res.Allowed)

	res = IsActive(&models.WorkspaceSubscription{Status: " Trial "}, now)
	assert.True(t, res.Allowed, "status comparison ignores case and whitespace")

	res = IsActive(&models.WorkspaceSubscription{Status: "canceled"}, now)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonInactive, res.Reason)

	res = IsActive(&models.WorkspaceSubscription{Status: "active", CurrentPeriodEnd: &past}, now)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonExpired, res.Reason)

	res = IsActive(&models.WorkspaceSubscription{Status: "active", CurrentPeriodEnd: &now}, now)
	assert.False(t, res.Allowed, "a period ending exactly now is expired")
}

func TestHasRemainingQuota(t *testing.T) {
	assert.True(t, HasRemainingQuota(nil, 1<<40).Allowed)

	uncapped := &models.WorkspaceSubscription{Status: "active"}
	assert.True(t, HasRemainingQuota(uncapped, 1<<40).Allowed)

	capped := &models.WorkspaceSubscription{Status: "active", AutomationRuntimeHours: intPtr(2)}
	assert.True(t, HasRemainingQuota(capped, 7199).Allowed)

	res := HasRemainingQuota(capped, 7200)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonQuotaExceeded, res.Reason)

	zero := &models.WorkspaceSubscription{Status: "active", AutomationRuntimeHours: intPtr(0)}
	assert.True(t, HasRemainingQuota(zero, 999999).Allowed, "non-positive caps are ignored")
}

func TestEffectiveParallelLimit(t *testing.T) {
	assert.Equal(t, 4, EffectiveParallelLimit(nil, 4))
	assert.Equal(t, 1, EffectiveParallelLimit(nil, 0))
	assert.Equal(t, 1, EffectiveParallelLimit(nil, -3))

	sub := &models.WorkspaceSubscription{MaxParallelSessions: intPtr(2)}
	assert.Equal(t, 2, EffectiveParallelLimit(sub, 5))
	assert.Equal(t, 1, EffectiveParallelLimit(sub, 1))

	unlimited := &models.WorkspaceSubscription{MaxParallelSessions: intPtr(0)}
	assert.Equal(t, 8, EffectiveParallelLimit(unlimited, 8))
}

func TestMonthStart(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	in := time.Date(2026, 8, 1, 3, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), MonthStart(in),
		"bucketing follows UTC, not local time")
}

func TestCheckRunAllowed(t *testing.T) {
	st := newTestStore(t)
	gate := NewGate(st)
	ctx := context.Background()
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	ws := &models.Workspace{Name: "acme"}
	require.NoError(t, st.CreateWorkspace(ctx, ws))

	// No subscription row: everything allowed.
	res, err := gate.CheckRunAllowed(ctx, ws.ID, now)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	end := now.Add(60 * 24 * time.Hour)
	require.NoError(t, st.UpsertWorkspaceSubscription(ctx, &models.WorkspaceSubscription{
		WorkspaceID:            ws.ID,
		Status:                 "active",
		PlanKey:                "starter",
		Seats:                  3,
		AutomationRuntimeHours: intPtr(1),
		CurrentPeriodEnd:       &end,
	}))

	res, err = gate.CheckRunAllowed(ctx, ws.ID, now)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	require.NoError(t, st.AddUsageSeconds(ctx, ws.ID, MonthStart(now), 3600))

	res, err = gate.CheckRunAllowed(ctx, ws.ID, now)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonQuotaExceeded, res.Reason)

	// Usage in a previous month does not count against this month.
	nextMonth := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	res, err = gate.CheckRunAllowed(ctx, ws.ID, nextMonth)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	require.NoError(t, st.UpsertWorkspaceSubscription(ctx, &models.WorkspaceSubscription{
		WorkspaceID: ws.ID,
		Status:      "past_due",
		PlanKey:     "starter",
		Seats:       3,
	}))
	res, err = gate.CheckRunAllowed(ctx, ws.ID, now)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonInactive, res.Reason)
}

func TestParallelLimit(t *testing.T) {
	st := newTestStore(t)
	gate := NewGate(st)
	ctx := context.Background()

	ws := &models.Workspace{Name: "acme"}
	require.NoError(t, st.CreateWorkspace(ctx, ws))

	limit, err := gate.ParallelLimit(ctx, ws.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, limit)

	require.NoError(t, st.UpsertWorkspaceSubscription(ctx, &models.WorkspaceSubscription{
		WorkspaceID:         ws.ID,
		Status:              "active",
		PlanKey:             "starter",
		Seats:               3,
		MaxParallelSessions: intPtr(2),
	}))

	limit, err = gate.ParallelLimit(ctx, ws.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, limit)
}
