package executor

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncsocial/syncsocial/internal/automation/models"
	"github.com/syncsocial/syncsocial/internal/automation/store"
	"github.com/syncsocial/syncsocial/internal/common/logger"
	"github.com/syncsocial/syncsocial/internal/crypto"
	"github.com/syncsocial/syncsocial/internal/db"
	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

// fakeCluster scripts batch responses per call.
type fakeCluster struct {
	mu        sync.Mutex
	batches   []*v1.ExecuteBatchRequest
	responses []batchReply
}

type batchReply struct {
	resp *v1.ExecuteBatchResponse
	err  error
}

func (f *fakeCluster) StartLoginSession(context.Context, *v1.StartLoginSessionRequest) (*v1.StartLoginSessionResponse, error) {
	return &v1.StartLoginSessionResponse{}, nil
}

func (f *fakeCluster) IsLoggedIn(context.Context, string) (bool, error) { return false, nil }

func (f *fakeCluster) CaptureStorageState(context.Context, string) (map[string]any, error) {
	return nil, nil
}

func (f *fakeCluster) StopLoginSession(context.Context, string) error { return nil }

func (f *fakeCluster) ExecuteBatch(_ context.Context, req *v1.ExecuteBatchRequest) (*v1.ExecuteBatchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, req)
	if len(f.responses) == 0 {
		// Default: everything succeeds.
		results := make([]v1.ExecuteActionResult, len(req.Actions))
		for i := range results {
			results[i] = v1.ExecuteActionResult{Status: v1.ActionResultSucceeded}
		}
		return &v1.ExecuteBatchResponse{Results: results}, nil
	}
	reply := f.responses[0]
	f.responses = f.responses[1:]
	return reply.resp, reply.err
}

func (f *fakeCluster) queue(resp *v1.ExecuteBatchResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, batchReply{resp: resp, err: err})
}

func (f *fakeCluster) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console", OutputPath: "stderr"})
	require.NoError(t, err)
	return log
}

type fixture struct {
	store      *store.Store
	cluster    *fakeCluster
	executor   *Executor
	vault      *crypto.Vault
	workspace  *models.Workspace
	account    *models.SocialAccount
	strategy   *models.Strategy
	run        *models.Run
	accountRun *models.AccountRun
}

func newFixture(t *testing.T, strategyConfig map[string]any) *fixture {
	t.Helper()
	ctx := context.Background()

	pool, err := db.NewSQLitePool(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	st, err := store.New(pool)
	require.NoError(t, err)

	vault, err := crypto.NewVault("test-passphrase")
	require.NoError(t, err)

	cl := &fakeCluster{}
	exec := New(st, cl, vault, nil, newTestLogger(t), Config{
		MaxConcurrent: 2,
		ArtifactsDir:  t.TempDir(),
	})

	ws := &models.Workspace{Name: "acme"}
	require.NoError(t, st.CreateWorkspace(ctx, ws))

	acc := &models.SocialAccount{
		WorkspaceID: ws.ID,
		PlatformKey: "x",
		Handle:      "@tester",
		Status:      models.AccountStatusHealthy,
	}
	require.NoError(t, st.CreateSocialAccount(ctx, acc))

	blob, err := vault.EncryptJSON(map[string]any{"cookies": []any{}})
	require.NoError(t, err)
	require.NoError(t, st.UpsertCredential(ctx, &models.Credential{
		WorkspaceID:     ws.ID,
		SocialAccountID: acc.ID,
		CredentialType:  models.CredentialTypeStorageState,
		EncryptedBlob:   blob,
		KeyVersion:      crypto.KeyVersion,
	}))

	strategy := &models.Strategy{
		WorkspaceID: ws.ID,
		Name:        "plan",
		PlatformKey: "x",
		Config:      strategyConfig,
	}
	require.NoError(t, st.CreateStrategy(ctx, strategy))

	trigger := "test"
	run := &models.Run{
		WorkspaceID: ws.ID,
		StrategyID:  strategy.ID,
		TriggeredBy: &trigger,
		Status:      models.RunStatusQueued,
	}
	require.NoError(t, st.CreateRun(ctx, run))

	ar := &models.AccountRun{
		WorkspaceID:     ws.ID,
		RunID:           run.ID,
		SocialAccountID: acc.ID,
		Status:          models.AccountRunQueued,
	}
	require.NoError(t, st.CreateAccountRun(ctx, ar))

	return &fixture{
		store:      st,
		cluster:    cl,
		executor:   exec,
		vault:      vault,
		workspace:  ws,
		account:    acc,
		strategy:   strategy,
		run:        run,
		accountRun: ar,
	}
}

func (f *fixture) execute(t *testing.T) *models.AccountRun {
	t.Helper()
	ctx := context.Background()
	f.executor.executeAccountRun(ctx, f.accountRun.ID)

	ar, err := f.store.GetAccountRun(ctx, f.accountRun.ID)
	require.NoError(t, err)
	require.NotNil(t, ar)
	return ar
}

func likeConfig() map[string]any {
	return map[string]any{
		"type":    "x_like",
		"targets": []any{"https://x.com/user/status/111"},
	}
}

func TestExecuteAccountRunSucceeds(t *testing.T) {
	f := newFixture(t, likeConfig())
	ctx := context.Background()

	ar := f.execute(t)
	assert.Equal(t, models.AccountRunSucceeded, ar.Status)
	assert.Nil(t, ar.ErrorCode)

	actions, err := f.store.ListActions(ctx, ar.ID)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, models.ActionHealthCheck, actions[0].ActionType)
	assert.Equal(t, models.ActionXLike, actions[1].ActionType)
	for _, action := range actions {
		assert.Equal(t, models.ActionSucceeded, action.Status)
	}

	run, err := f.store.GetRun(ctx, f.run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, run.Status)
	require.NotNil(t, run.FinishedAt)

	// Usage accrued for the month of completion.
	now := time.Now().UTC()
	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	_, err = f.store.GetUsageSeconds(ctx, f.workspace.ID, periodStart)
	assert.NoError(t, err)
}

func TestExecuteAccountRunAuthRequiredFlipsAccount(t *testing.T) {
	f := newFixture(t, likeConfig())
	ctx := context.Background()

	code := models.ErrCodeAuthRequired
	aborted := models.ErrCodeAborted
	f.cluster.queue(&v1.ExecuteBatchResponse{Results: []v1.ExecuteActionResult{
		{Status: v1.ActionResultFailed, ErrorCode: &code},
		{Status: v1.ActionResultFailed, ErrorCode: &aborted},
	}}, nil)

	ar := f.execute(t)
	assert.Equal(t, models.AccountRunFailed, ar.Status)
	require.NotNil(t, ar.ErrorCode)
	assert.Equal(t, models.ErrCodeAuthRequired, *ar.ErrorCode)

	acc, err := f.store.GetSocialAccount(ctx, f.workspace.ID, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusNeedsLogin, acc.Status)
}

func TestExecuteAccountRunTransportError(t *testing.T) {
	f := newFixture(t, likeConfig())
	ctx := context.Background()

	f.cluster.queue(nil, assert.AnError)

	ar := f.execute(t)
	assert.Equal(t, models.AccountRunFailed, ar.Status)
	require.NotNil(t, ar.ErrorCode)
	assert.Equal(t, models.ErrCodeBrowserNodeError, *ar.ErrorCode)

	actions, err := f.store.ListActions(ctx, ar.ID)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	for _, action := range actions {
		assert.Equal(t, models.ActionFailed, action.Status)
		require.NotNil(t, action.ErrorCode)
		assert.Equal(t, models.ErrCodeBrowserNodeError, *action.ErrorCode)
	}
}

func TestExecuteAccountRunMismatchedResults(t *testing.T) {
	f := newFixture(t, likeConfig())

	f.cluster.queue(&v1.ExecuteBatchResponse{Results: []v1.ExecuteActionResult{
		{Status: v1.ActionResultSucceeded},
	}}, nil)

	ar := f.execute(t)
	assert.Equal(t, models.AccountRunFailed, ar.Status)
	require.NotNil(t, ar.ErrorCode)
	assert.Equal(t, models.ErrCodeBrowserNodeError, *ar.ErrorCode)
}

func TestExecuteAccountRunMissingCredential(t *testing.T) {
	f := newFixture(t, likeConfig())
	ctx := context.Background()

	// Recreate the account without a credential.
	fresh := &models.SocialAccount{
		WorkspaceID: f.workspace.ID,
		PlatformKey: "x",
		Handle:      "@naked",
		Status:      models.AccountStatusHealthy,
	}
	require.NoError(t, f.store.CreateSocialAccount(ctx, fresh))
	ar := &models.AccountRun{
		WorkspaceID:     f.workspace.ID,
		RunID:           f.run.ID,
		SocialAccountID: fresh.ID,
		Status:          models.AccountRunQueued,
	}
	require.NoError(t, f.store.CreateAccountRun(ctx, ar))

	f.executor.executeAccountRun(ctx, ar.ID)

	got, err := f.store.GetAccountRun(ctx, ar.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountRunFailed, got.Status)
	require.NotNil(t, got.ErrorCode)
	assert.Equal(t, models.ErrCodeAuthRequired, *got.ErrorCode)
	assert.Zero(t, f.cluster.batchCount())
}

func TestExecuteAccountRunDecryptFailure(t *testing.T) {
	f := newFixture(t, likeConfig())
	ctx := context.Background()

	require.NoError(t, f.store.UpsertCredential(ctx, &models.Credential{
		WorkspaceID:     f.workspace.ID,
		SocialAccountID: f.account.ID,
		CredentialType:  models.CredentialTypeStorageState,
		EncryptedBlob:   []byte("garbage"),
		KeyVersion:      crypto.KeyVersion,
	}))

	ar := f.execute(t)
	assert.Equal(t, models.AccountRunFailed, ar.Status)
	require.NotNil(t, ar.ErrorCode)
	assert.Equal(t, models.ErrCodeCredentialDecryptFailed, *ar.ErrorCode)
}

func TestExecuteAccountRunMissingStrategy(t *testing.T) {
	f := newFixture(t, likeConfig())
	ctx := context.Background()

	require.NoError(t, f.store.DeleteStrategy(ctx, f.workspace.ID, f.strategy.ID))

	ar := f.execute(t)
	assert.Equal(t, models.AccountRunFailed, ar.Status)
	require.NotNil(t, ar.ErrorCode)
	assert.Equal(t, models.ErrCodeStrategyNotFound, *ar.ErrorCode)
}

func TestExecuteAccountRunIdempotentReplay(t *testing.T) {
	f := newFixture(t, likeConfig())
	ctx := context.Background()

	// First pass completes both actions.
	ar := f.execute(t)
	require.Equal(t, models.AccountRunSucceeded, ar.Status)
	require.Equal(t, 1, f.cluster.batchCount())

	// A later run with the same plan reuses the finished x_like action;
	// only the run-scoped health_check is dispatched again.
	trigger := "test"
	secondRun := &models.Run{
		WorkspaceID: f.workspace.ID,
		StrategyID:  f.strategy.ID,
		TriggeredBy: &trigger,
		Status:      models.RunStatusQueued,
	}
	require.NoError(t, f.store.CreateRun(ctx, secondRun))
	second := &models.AccountRun{
		WorkspaceID:     f.workspace.ID,
		RunID:           secondRun.ID,
		SocialAccountID: f.account.ID,
		Status:          models.AccountRunQueued,
	}
	require.NoError(t, f.store.CreateAccountRun(ctx, second))
	f.executor.executeAccountRun(ctx, second.ID)

	got, err := f.store.GetAccountRun(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountRunSucceeded, got.Status)

	require.Equal(t, 2, f.cluster.batchCount())
	f.cluster.mu.Lock()
	lastBatch := f.cluster.batches[1]
	f.cluster.mu.Unlock()
	assert.Len(t, lastBatch.Actions, 1)
	assert.Equal(t, models.ActionHealthCheck, lastBatch.Actions[0].ActionType)
}

func TestExecuteAccountRunSearchFlow(t *testing.T) {
	f := newFixture(t, map[string]any{
		"type":        "x_search_like",
		"query":       "golang",
		"max_actions": float64(2),
	})
	ctx := context.Background()

	// Phase 1: health_check + collect, candidates in the collect metadata.
	f.cluster.queue(&v1.ExecuteBatchResponse{Results: []v1.ExecuteActionResult{
		{Status: v1.ActionResultSucceeded},
		{Status: v1.ActionResultSucceeded, Metadata: map[string]any{
			"candidates": []any{
				map[string]any{"tweet_id": "10", "url": "https://x.com/a/status/10", "is_verified": true},
				map[string]any{"tweet_id": "11", "url": "https://x.com/b/status/11", "is_verified": true},
			},
		}},
	}}, nil)

	ar := f.execute(t)
	assert.Equal(t, models.AccountRunSucceeded, ar.Status)

	// Two batches: collect phase, then the planned likes.
	require.Equal(t, 2, f.cluster.batchCount())
	f.cluster.mu.Lock()
	phase2 := f.cluster.batches[1]
	f.cluster.mu.Unlock()
	require.Len(t, phase2.Actions, 2)
	for _, item := range phase2.Actions {
		assert.Equal(t, models.ActionXLike, item.ActionType)
	}

	actions, err := f.store.ListActions(ctx, ar.ID)
	require.NoError(t, err)
	assert.Len(t, actions, 4) // health_check + collect + 2 likes
}

func TestExecuteAccountRunSearchFlowTypedCandidates(t *testing.T) {
	// The in-process cluster hands metadata back without a JSON round trip,
	// so candidates arrive typed rather than as generic maps.
	f := newFixture(t, map[string]any{
		"type":        "x_search_like",
		"query":       "golang",
		"max_actions": float64(2),
	})
	ctx := context.Background()

	f.cluster.queue(&v1.ExecuteBatchResponse{Results: []v1.ExecuteActionResult{
		{Status: v1.ActionResultSucceeded},
		{Status: v1.ActionResultSucceeded, Metadata: map[string]any{
			"candidates": []v1.SearchCandidate{
				{TweetID: "10", URL: "https://x.com/a/status/10"},
				{TweetID: "11", URL: "https://x.com/b/status/11"},
			},
		}},
	}}, nil)

	ar := f.execute(t)
	assert.Equal(t, models.AccountRunSucceeded, ar.Status)

	require.Equal(t, 2, f.cluster.batchCount())
	f.cluster.mu.Lock()
	phase2 := f.cluster.batches[1]
	f.cluster.mu.Unlock()
	require.Len(t, phase2.Actions, 2)

	actions, err := f.store.ListActions(ctx, ar.ID)
	require.NoError(t, err)
	assert.Len(t, actions, 4)
}

func TestExecuteAccountRunSearchNoCandidates(t *testing.T) {
	f := newFixture(t, map[string]any{
		"type":  "x_search_like",
		"query": "golang",
	})

	f.cluster.queue(&v1.ExecuteBatchResponse{Results: []v1.ExecuteActionResult{
		{Status: v1.ActionResultSucceeded},
		{Status: v1.ActionResultSucceeded, Metadata: map[string]any{"candidates": []any{}}},
	}}, nil)

	ar := f.execute(t)
	assert.Equal(t, models.AccountRunSucceeded, ar.Status)
	assert.Equal(t, 1, f.cluster.batchCount())
}

func TestExecuteStoresScreenshotArtifact(t *testing.T) {
	f := newFixture(t, likeConfig())
	ctx := context.Background()

	shot := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	f.cluster.queue(&v1.ExecuteBatchResponse{Results: []v1.ExecuteActionResult{
		{Status: v1.ActionResultSucceeded},
		{Status: v1.ActionResultSucceeded, ScreenshotBase64: &shot},
	}}, nil)

	ar := f.execute(t)
	require.Equal(t, models.AccountRunSucceeded, ar.Status)

	actions, err := f.store.ListActions(ctx, ar.ID)
	require.NoError(t, err)
	require.Len(t, actions, 2)

	artifacts, err := f.store.ListArtifactsForAction(ctx, actions[1].ID)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, models.ArtifactTypeScreenshot, artifacts[0].Type)
	assert.Equal(t, f.workspace.ID+"/"+actions[1].ID+"-screenshot.png", artifacts[0].StorageKey)

	data, err := os.ReadFile(filepath.Join(f.executor.config.ArtifactsDir, artifacts[0].StorageKey))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestExecuteSkipsClaimedRun(t *testing.T) {
	f := newFixture(t, likeConfig())
	ctx := context.Background()

	// Claim the row out from under the executor.
	claimed, err := f.store.ClaimAccountRun(ctx, f.accountRun.ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, claimed)

	f.executor.executeAccountRun(ctx, f.accountRun.ID)
	assert.Zero(t, f.cluster.batchCount())
}

func TestExecutorCapacity(t *testing.T) {
	f := newFixture(t, likeConfig())

	assert.True(t, f.executor.CanExecute())
	require.NoError(t, f.executor.Execute(context.Background(), f.accountRun.ID))
	f.executor.Wait()
	assert.Equal(t, 0, f.executor.ActiveCount())
}
