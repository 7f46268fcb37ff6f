package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncsocial/syncsocial/internal/automation/capture"
	"github.com/syncsocial/syncsocial/internal/automation/cluster"
	"github.com/syncsocial/syncsocial/internal/automation/models"
	"github.com/syncsocial/syncsocial/internal/automation/scheduler"
	"github.com/syncsocial/syncsocial/internal/automation/store"
	"github.com/syncsocial/syncsocial/internal/common/logger"
	"github.com/syncsocial/syncsocial/internal/crypto"
	"github.com/syncsocial/syncsocial/internal/db"
	"github.com/syncsocial/syncsocial/internal/subscription"
	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

// fakeCluster is an in-memory BrowserCluster for service tests.
type fakeCluster struct {
	mu       sync.Mutex
	sessions map[string]bool
	loggedIn map[string]bool
	stopped  []string
	startErr error
}

var _ cluster.BrowserCluster = (*fakeCluster)(nil)

func newFakeCluster() *fakeCluster {
	return &fakeCluster{
		sessions: make(map[string]bool),
		loggedIn: make(map[string]bool),
	}
}

func (f *fakeCluster) StartLoginSession(_ context.Context, req *v1.StartLoginSessionRequest) (*v1.StartLoginSessionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.sessions[req.LoginSessionID] = true
	url := "https://remote.example/" + req.LoginSessionID
	return &v1.StartLoginSessionResponse{RemoteURL: &url}, nil
}

func (f *fakeCluster) IsLoggedIn(_ context.Context, loginSessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sessions[loginSessionID] {
		return false, cluster.ErrSessionNotFound
	}
	return f.loggedIn[loginSessionID], nil
}

func (f *fakeCluster) CaptureStorageState(_ context.Context, loginSessionID string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sessions[loginSessionID] {
		return nil, cluster.ErrSessionNotFound
	}
	return map[string]any{"cookies": []any{map[string]any{"name": "auth", "value": "tok"}}}, nil
}

func (f *fakeCluster) StopLoginSession(_ context.Context, loginSessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, loginSessionID)
	f.stopped = append(f.stopped, loginSessionID)
	return nil
}

func (f *fakeCluster) ExecuteBatch(_ context.Context, req *v1.ExecuteBatchRequest) (*v1.ExecuteBatchResponse, error) {
	results := make([]v1.ExecuteActionResult, len(req.Actions))
	for i := range results {
		results[i] = v1.ExecuteActionResult{Status: v1.ActionResultSucceeded}
	}
	return &v1.ExecuteBatchResponse{Results: results}, nil
}

func (f *fakeCluster) setLoggedIn(id string, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedIn[id] = v
}

// idleExecutor satisfies the scheduler's executor without doing work.
type idleExecutor struct{}

func (idleExecutor) CanExecute() bool                      { return false }
func (idleExecutor) Execute(context.Context, string) error { return nil }
func (idleExecutor) ActiveCount() int                      { return 0 }

type fixture struct {
	store        *store.Store
	service      *Service
	cluster      *fakeCluster
	workspace    *models.Workspace
	artifactsDir string
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console", OutputPath: "stderr"})
	require.NoError(t, err)
	return log
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	pool, err := db.NewSQLitePool(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	st, err := store.New(pool)
	require.NoError(t, err)

	log := newTestLogger(t)
	cl := newFakeCluster()
	vault, err := crypto.NewVault("test-passphrase")
	require.NoError(t, err)

	// Auto capture is off so login sessions only advance through the API.
	watcher := capture.NewWatcher(st, cl, vault, nil, log, false)
	sched := scheduler.New(st, idleExecutor{}, nil, log, scheduler.Config{TickInterval: time.Hour})
	gate := subscription.NewGate(st)
	artifactsDir := t.TempDir()

	svc := New(st, sched, gate, cl, watcher, nil, artifactsDir, log)

	ws := &models.Workspace{Name: "acme"}
	require.NoError(t, st.CreateWorkspace(ctx, ws))

	return &fixture{store: st, service: svc, cluster: cl, workspace: ws, artifactsDir: artifactsDir}
}

func (f *fixture) addAccount(t *testing.T) *models.SocialAccount {
	t.Helper()
	acc, err := f.service.CreateSocialAccount(context.Background(), f.workspace.ID, &CreateSocialAccountRequest{
		PlatformKey: "x",
		Handle:      "@tester",
	})
	require.NoError(t, err)
	return acc
}

func (f *fixture) addStrategy(t *testing.T) *models.Strategy {
	t.Helper()
	strategy, err := f.service.CreateStrategy(context.Background(), f.workspace.ID, &CreateStrategyRequest{
		Name:        "likes",
		PlatformKey: "x",
		Config:      map[string]any{"type": "x_like", "targets": []any{"https://x.com/u/status/1"}},
	})
	require.NoError(t, err)
	return strategy
}

func TestCreateSocialAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acc, err := f.service.CreateSocialAccount(ctx, f.workspace.ID, &CreateSocialAccountRequest{
		PlatformKey: "  X ",
		Handle:      " @tester ",
	})
	require.NoError(t, err)
	assert.Equal(t, "x", acc.PlatformKey)
	assert.Equal(t, "@tester", acc.Handle)
	assert.Equal(t, models.AccountStatusNeedsLogin, acc.Status)
	assert.NotEmpty(t, acc.FingerprintProfile["user_agent"])
	assert.Contains(t, acc.FingerprintProfile, "viewport")

	_, err = f.service.CreateSocialAccount(ctx, f.workspace.ID, &CreateSocialAccountRequest{
		PlatformKey: "myspace",
		Handle:      "@tester",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported platform")
}

func TestLoginSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.addAccount(t)

	session, err := f.service.StartLoginSession(ctx, f.workspace.ID, acc.ID, "ops@acme.test")
	require.NoError(t, err)
	assert.Equal(t, models.LoginSessionActive, session.Status)
	require.NotNil(t, session.RemoteURL)
	assert.Contains(t, *session.RemoteURL, session.ID)

	// Not logged in yet: finalize must refuse.
	_, err = f.service.FinalizeLoginSession(ctx, f.workspace.ID, session.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in yet")

	f.cluster.setLoggedIn(session.ID, true)
	finalized, err := f.service.FinalizeLoginSession(ctx, f.workspace.ID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoginSessionSucceeded, finalized.Status)
	assert.Contains(t, f.cluster.stopped, session.ID)

	// Finalizing a succeeded session is a no-op.
	again, err := f.service.FinalizeLoginSession(ctx, f.workspace.ID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoginSessionSucceeded, again.Status)

	// The credential was sealed and the account flipped healthy.
	updated, err := f.service.GetSocialAccount(ctx, f.workspace.ID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusHealthy, updated.Status)
	cred, err := f.store.GetCredential(ctx, acc.ID, models.CredentialTypeStorageState)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, models.CredentialTypeStorageState, cred.CredentialType)
}

func TestLoginSessionStartFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.addAccount(t)

	f.cluster.startErr = assert.AnError
	session, err := f.service.StartLoginSession(ctx, f.workspace.ID, acc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.LoginSessionFailed, session.Status)
}

func TestCancelLoginSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.addAccount(t)

	session, err := f.service.StartLoginSession(ctx, f.workspace.ID, acc.ID, "")
	require.NoError(t, err)

	canceled, err := f.service.CancelLoginSession(ctx, f.workspace.ID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoginSessionCanceled, canceled.Status)
	assert.Contains(t, f.cluster.stopped, session.ID)

	// Cancel is idempotent on terminal sessions.
	again, err := f.service.CancelLoginSession(ctx, f.workspace.ID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoginSessionCanceled, again.Status)

	// A canceled session cannot be finalized.
	_, err = f.service.FinalizeLoginSession(ctx, f.workspace.ID, session.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid state")
}

func TestGetLoginSessionExpiresLazily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.addAccount(t)

	session, err := f.service.StartLoginSession(ctx, f.workspace.ID, acc.ID, "")
	require.NoError(t, err)

	_, err = f.store.DB().ExecContext(ctx,
		"UPDATE login_sessions SET expires_at = ? WHERE id = ?",
		time.Now().UTC().Add(-time.Minute), session.ID)
	require.NoError(t, err)

	got, err := f.service.GetLoginSession(ctx, f.workspace.ID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoginSessionExpired, got.Status)
	assert.Contains(t, f.cluster.stopped, session.ID)
}

func TestRunNow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	strategy := f.addStrategy(t)
	acc := f.addAccount(t)
	require.NoError(t, f.store.UpdateSocialAccountStatus(ctx, acc.ID, models.AccountStatusHealthy, time.Now().UTC()))

	sc, err := f.service.CreateSchedule(ctx, f.workspace.ID, &CreateScheduleRequest{
		StrategyID: strategy.ID,
		Enabled:    true,
		Frequency:  models.FrequencyManual,
	})
	require.NoError(t, err)

	run, err := f.service.RunNow(ctx, f.workspace.ID, sc.ID, "ops@acme.test")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusQueued, run.Status)
	require.NotNil(t, run.ScheduleID)
	assert.Equal(t, sc.ID, *run.ScheduleID)

	accountRuns, err := f.store.ListAccountRuns(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, accountRuns, 1)
	assert.Equal(t, acc.ID, accountRuns[0].SocialAccountID)

	advanced, err := f.service.GetSchedule(ctx, f.workspace.ID, sc.ID)
	require.NoError(t, err)
	assert.NotNil(t, advanced.LastRunAt)
}

func TestRunNowDisabledSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	strategy := f.addStrategy(t)
	f.addAccount(t)

	sc, err := f.service.CreateSchedule(ctx, f.workspace.ID, &CreateScheduleRequest{
		StrategyID: strategy.ID,
		Enabled:    false,
		Frequency:  models.FrequencyManual,
	})
	require.NoError(t, err)

	_, err = f.service.RunNow(ctx, f.workspace.ID, sc.ID, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule disabled")
}

func TestRunNowSubscriptionGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	strategy := f.addStrategy(t)
	f.addAccount(t)

	sc, err := f.service.CreateSchedule(ctx, f.workspace.ID, &CreateScheduleRequest{
		StrategyID: strategy.ID,
		Enabled:    true,
		Frequency:  models.FrequencyManual,
	})
	require.NoError(t, err)

	end := time.Now().UTC().Add(24 * time.Hour)
	require.NoError(t, f.store.UpsertWorkspaceSubscription(ctx, &models.WorkspaceSubscription{
		WorkspaceID:      f.workspace.ID,
		Status:           "canceled",
		PlanKey:          "pro",
		CurrentPeriodEnd: &end,
	}))

	_, err = f.service.RunNow(ctx, f.workspace.ID, sc.ID, "")
	require.Error(t, err)
	var notAllowed *RunNotAllowedError
	require.ErrorAs(t, err, &notAllowed)
	assert.Equal(t, subscription.ReasonInactive, notAllowed.Reason)
}

func TestGetRunDetailStripsScreenshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	strategy := f.addStrategy(t)
	acc := f.addAccount(t)
	require.NoError(t, f.store.UpdateSocialAccountStatus(ctx, acc.ID, models.AccountStatusHealthy, time.Now().UTC()))

	sc, err := f.service.CreateSchedule(ctx, f.workspace.ID, &CreateScheduleRequest{
		StrategyID: strategy.ID,
		Enabled:    true,
		Frequency:  models.FrequencyManual,
	})
	require.NoError(t, err)

	run, err := f.service.RunNow(ctx, f.workspace.ID, sc.ID, "")
	require.NoError(t, err)

	accountRuns, err := f.store.ListAccountRuns(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, accountRuns, 1)

	action, _, err := f.store.FindOrCreateAction(ctx, &models.Action{
		WorkspaceID:    f.workspace.ID,
		AccountRunID:   accountRuns[0].ID,
		ActionType:     "x_like",
		PlatformKey:    "x",
		IdempotencyKey: "k1",
		Status:         models.ActionSucceeded,
		Metadata:       map[string]any{"screenshot_base64": "AAAA", "tweet_id": "1"},
	})
	require.NoError(t, err)
	require.NoError(t, f.store.FinishAction(ctx, action.ID, models.ActionSucceeded, nil,
		map[string]any{"screenshot_base64": "AAAA", "tweet_id": "1"}, time.Now().UTC()))

	detail, err := f.service.GetRunDetail(ctx, f.workspace.ID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, detail.Run.ID)
	require.Len(t, detail.AccountRuns, 1)

	require.Len(t, detail.Actions, 1)
	assert.NotContains(t, detail.Actions[0].Metadata, "screenshot_base64")
	assert.Equal(t, "1", detail.Actions[0].Metadata["tweet_id"])
}

func TestResolveArtifactFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	strategy := f.addStrategy(t)
	acc := f.addAccount(t)
	require.NoError(t, f.store.UpdateSocialAccountStatus(ctx, acc.ID, models.AccountStatusHealthy, time.Now().UTC()))

	sc, err := f.service.CreateSchedule(ctx, f.workspace.ID, &CreateScheduleRequest{
		StrategyID: strategy.ID,
		Enabled:    true,
		Frequency:  models.FrequencyManual,
	})
	require.NoError(t, err)
	run, err := f.service.RunNow(ctx, f.workspace.ID, sc.ID, "")
	require.NoError(t, err)
	accountRuns, err := f.store.ListAccountRuns(ctx, run.ID)
	require.NoError(t, err)
	action, _, err := f.store.FindOrCreateAction(ctx, &models.Action{
		WorkspaceID:    f.workspace.ID,
		AccountRunID:   accountRuns[0].ID,
		ActionType:     "x_like",
		PlatformKey:    "x",
		IdempotencyKey: "k1",
		Status:         models.ActionSucceeded,
	})
	require.NoError(t, err)

	storageKey := "screenshots/shot.png"
	require.NoError(t, os.MkdirAll(filepath.Join(f.artifactsDir, "screenshots"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.artifactsDir, "screenshots", "shot.png"), []byte("png"), 0o644))

	artifact := &models.Artifact{
		WorkspaceID: f.workspace.ID,
		ActionID:    action.ID,
		Type:        "screenshot",
		StorageKey:  storageKey,
		Size:        3,
	}
	require.NoError(t, f.store.CreateArtifact(ctx, artifact))

	got, path, err := f.service.ResolveArtifactFile(ctx, f.workspace.ID, artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, artifact.ID, got.ID)
	assert.Equal(t, filepath.Join(f.artifactsDir, "screenshots", "shot.png"), path)

	// Missing row.
	_, _, err = f.service.ResolveArtifactFile(ctx, f.workspace.ID, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact not found")

	// Row present but file gone.
	require.NoError(t, os.Remove(path))
	_, _, err = f.service.ResolveArtifactFile(ctx, f.workspace.ID, artifact.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact file not found")
}

func TestUpdateScheduleRecomputesNextRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	strategy := f.addStrategy(t)

	sc, err := f.service.CreateSchedule(ctx, f.workspace.ID, &CreateScheduleRequest{
		StrategyID: strategy.ID,
		Enabled:    true,
		Frequency:  models.FrequencyManual,
	})
	require.NoError(t, err)
	assert.Nil(t, sc.NextRunAt)

	interval := models.FrequencyInterval
	updated, err := f.service.UpdateSchedule(ctx, f.workspace.ID, sc.ID, &UpdateScheduleRequest{
		Frequency:    &interval,
		ScheduleSpec: map[string]any{"every_minutes": 30},
	})
	require.NoError(t, err)
	require.NotNil(t, updated.NextRunAt)
	assert.True(t, updated.NextRunAt.After(time.Now().UTC().Add(-time.Minute)))

	// A toggle without a policy change keeps the fire time.
	disabled := false
	toggled, err := f.service.UpdateSchedule(ctx, f.workspace.ID, sc.ID, &UpdateScheduleRequest{
		Enabled: &disabled,
	})
	require.NoError(t, err)
	require.NotNil(t, toggled.NextRunAt)
	assert.WithinDuration(t, *updated.NextRunAt, *toggled.NextRunAt, time.Second)
}
