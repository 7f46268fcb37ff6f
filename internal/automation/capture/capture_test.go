package capture

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncsocial/syncsocial/internal/automation/cluster"
	"github.com/syncsocial/syncsocial/internal/automation/models"
	"github.com/syncsocial/syncsocial/internal/automation/store"
	"github.com/syncsocial/syncsocial/internal/common/logger"
	"github.com/syncsocial/syncsocial/internal/crypto"
	"github.com/syncsocial/syncsocial/internal/db"
	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

type fakeNode struct {
	mu           sync.Mutex
	loggedIn     bool
	probeErr     error
	captureErr   error
	storageState map[string]any
	stopped      []string
}

func (f *fakeNode) StartLoginSession(context.Context, *v1.StartLoginSessionRequest) (*v1.StartLoginSessionResponse, error) {
	return &v1.StartLoginSessionResponse{}, nil
}

func (f *fakeNode) IsLoggedIn(context.Context, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedIn, f.probeErr
}

func (f *fakeNode) CaptureStorageState(context.Context, string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return f.storageState, nil
}

func (f *fakeNode) StopLoginSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeNode) ExecuteBatch(context.Context, *v1.ExecuteBatchRequest) (*v1.ExecuteBatchResponse, error) {
	return &v1.ExecuteBatchResponse{}, nil
}

func (f *fakeNode) stoppedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.stopped))
	copy(out, f.stopped)
	return out
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console", OutputPath: "stderr"})
	require.NoError(t, err)
	return log
}

type fixture struct {
	store   *store.Store
	node    *fakeNode
	watcher *Watcher
	vault   *crypto.Vault
	account *models.SocialAccount
	session *models.LoginSession
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	pool, err := db.NewSQLitePool(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	st, err := store.New(pool)
	require.NoError(t, err)

	vault, err := crypto.NewVault("test-passphrase")
	require.NoError(t, err)

	node := &fakeNode{storageState: map[string]any{"cookies": []any{map[string]any{"name": "auth_token"}}}}
	watcher := NewWatcher(st, node, vault, nil, newTestLogger(t), true)
	watcher.pollInterval = time.Millisecond

	ws := &models.Workspace{Name: "acme"}
	require.NoError(t, st.CreateWorkspace(ctx, ws))

	acc := &models.SocialAccount{
		WorkspaceID: ws.ID,
		PlatformKey: "x",
		Handle:      "@tester",
		Status:      models.AccountStatusNeedsLogin,
	}
	require.NoError(t, st.CreateSocialAccount(ctx, acc))

	session := &models.LoginSession{
		WorkspaceID:     ws.ID,
		SocialAccountID: acc.ID,
		PlatformKey:     "x",
		Status:          models.LoginSessionActive,
		CreatedBy:       "user-1",
	}
	require.NoError(t, st.CreateLoginSession(ctx, session))

	return &fixture{store: st, node: node, watcher: watcher, vault: vault, account: acc, session: session}
}

func TestFinalizeCapturesCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.watcher.Finalize(ctx, f.session.ID))

	session, err := f.store.GetLoginSession(ctx, f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoginSessionSucceeded, session.Status)

	cred, err := f.store.GetCredential(ctx, f.account.ID, models.CredentialTypeStorageState)
	require.NoError(t, err)
	require.NotNil(t, cred)
	require.NotNil(t, cred.ValidatedAt)

	// The sealed blob round-trips to the captured state.
	doc, err := f.vault.DecryptJSON(cred.EncryptedBlob)
	require.NoError(t, err)
	assert.Contains(t, doc, "cookies")

	acc, err := f.store.GetSocialAccount(ctx, f.account.WorkspaceID, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusHealthy, acc.Status)
	require.NotNil(t, acc.LastHealthCheckAt)

	assert.Equal(t, []string{f.session.ID}, f.node.stoppedIDs())
}

func TestFinalizeTerminalSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.UpdateLoginSessionStatus(ctx, f.session.ID, models.LoginSessionCanceled))
	assert.ErrorIs(t, f.watcher.Finalize(ctx, f.session.ID), ErrNotCapturable)
}

func TestFinalizeCaptureFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.node.captureErr = assert.AnError
	require.Error(t, f.watcher.Finalize(ctx, f.session.ID))

	session, err := f.store.GetLoginSession(ctx, f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoginSessionFailed, session.Status)
	assert.Equal(t, []string{f.session.ID}, f.node.stoppedIDs())
}

func TestRunExpiresStaleSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Create a session that is already past its TTL.
	expired := &models.LoginSession{
		WorkspaceID:     f.session.WorkspaceID,
		SocialAccountID: f.account.ID,
		PlatformKey:     "x",
		Status:          models.LoginSessionActive,
		ExpiresAt:       time.Now().UTC().Add(-time.Minute),
		CreatedBy:       "user-1",
	}
	require.NoError(t, f.store.CreateLoginSession(ctx, expired))

	f.watcher.run(ctx, expired.ID)

	session, err := f.store.GetLoginSession(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoginSessionExpired, session.Status)
	assert.Equal(t, []string{expired.ID}, f.node.stoppedIDs())
}

func TestRunStopsWhenRuntimeMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.node.probeErr = cluster.ErrSessionNotFound
	f.watcher.run(ctx, f.session.ID)

	// Status untouched; the session will expire on its own.
	session, err := f.store.GetLoginSession(ctx, f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoginSessionActive, session.Status)
	assert.Empty(t, f.node.stoppedIDs())
}

func TestRunCapturesOnLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.node.loggedIn = true
	f.watcher.run(ctx, f.session.ID)

	session, err := f.store.GetLoginSession(ctx, f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoginSessionSucceeded, session.Status)
}

func TestWatcherDisabledWithoutVault(t *testing.T) {
	f := newFixture(t)
	w := NewWatcher(f.store, f.node, nil, nil, newTestLogger(t), true)
	assert.False(t, w.enabled)

	w = NewWatcher(f.store, f.node, f.vault, nil, newTestLogger(t), false)
	assert.False(t, w.enabled)
}
