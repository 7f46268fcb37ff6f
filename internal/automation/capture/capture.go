// Package capture watches interactive login sessions and seals the browser
// storage state into a credential the moment the user finishes logging in.
package capture

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/automation/cluster"
	"github.com/syncsocial/syncsocial/internal/automation/models"
	"github.com/syncsocial/syncsocial/internal/automation/store"
	"github.com/syncsocial/syncsocial/internal/common/logger"
	"github.com/syncsocial/syncsocial/internal/crypto"
	"github.com/syncsocial/syncsocial/internal/events"
	"github.com/syncsocial/syncsocial/internal/events/bus"
)

// PollInterval is how often an active login session is probed.
const PollInterval = 3 * time.Second

// ErrNotCapturable is returned by Finalize when the session is already in a
// state that cannot accept a capture.
var ErrNotCapturable = errors.New("login session is not capturable")

// Watcher polls login sessions until they succeed, fail, or expire.
type Watcher struct {
	store   *store.Store
	cluster cluster.BrowserCluster
	vault   *crypto.Vault
	bus     bus.EventBus
	logger  *logger.Logger

	enabled      bool
	pollInterval time.Duration
}

// NewWatcher creates a watcher. Auto capture is disabled when enabled is
// false or vault is nil; Watch then becomes a no-op and logins must be
// finalized through the API.
func NewWatcher(st *store.Store, cl cluster.BrowserCluster, vault *crypto.Vault, eventBus bus.EventBus, log *logger.Logger, enabled bool) *Watcher {
	return &Watcher{
		store:        st,
		cluster:      cl,
		vault:        vault,
		bus:          eventBus,
		logger:       log.WithFields(zap.String("component", "auto-capture")),
		enabled:      enabled && vault != nil,
		pollInterval: PollInterval,
	}
}

// Watch starts a background poll loop for the login session.
func (w *Watcher) Watch(loginSessionID string) {
	if !w.enabled {
		return
	}
	go w.run(context.Background(), loginSessionID)
}

func (w *Watcher) run(ctx context.Context, loginSessionID string) {
	log := w.logger.WithFields(zap.String("login_session_id", loginSessionID))

	for {
		session, err := w.store.GetLoginSession(ctx, loginSessionID)
		if err != nil {
			log.Error("failed to load login session", zap.Error(err))
			return
		}
		if session == nil || session.Status.IsTerminal() {
			return
		}

		if !session.ExpiresAt.After(time.Now().UTC()) {
			w.setStatus(ctx, session, models.LoginSessionExpired)
			w.stopRuntime(ctx, loginSessionID)
			log.Info("login session expired")
			return
		}

		loggedIn, err := w.cluster.IsLoggedIn(ctx, loginSessionID)
		if errors.Is(err, cluster.ErrSessionNotFound) {
			// The node lost the runtime; the session will expire on its own.
			return
		}
		if err != nil {
			time.Sleep(w.pollInterval)
			continue
		}
		if !loggedIn {
			time.Sleep(w.pollInterval)
			continue
		}

		if err := w.Finalize(ctx, loginSessionID); err != nil {
			log.Warn("auto capture failed", zap.Error(err))
		}
		return
	}
}

// Finalize captures the storage state, seals it into the account's
// credential, marks the account healthy, and closes the runtime. It is also
// the manual completion path for deployments without auto capture.
func (w *Watcher) Finalize(ctx context.Context, loginSessionID string) error {
	if w.vault == nil {
		return errors.New("credential encryption key is not configured")
	}

	session, err := w.store.GetLoginSession(ctx, loginSessionID)
	if err != nil {
		return err
	}
	if session == nil || session.Status.IsTerminal() {
		return ErrNotCapturable
	}

	storageState, err := w.cluster.CaptureStorageState(ctx, loginSessionID)
	if err != nil {
		w.failSession(ctx, session, loginSessionID)
		return err
	}
	blob, err := w.vault.EncryptJSON(storageState)
	if err != nil {
		w.failSession(ctx, session, loginSessionID)
		return err
	}

	w.setStatus(ctx, session, models.LoginSessionCapturing)

	now := time.Now().UTC()
	if err := w.store.UpsertCredential(ctx, &models.Credential{
		WorkspaceID:     session.WorkspaceID,
		SocialAccountID: session.SocialAccountID,
		CredentialType:  models.CredentialTypeStorageState,
		EncryptedBlob:   blob,
		KeyVersion:      crypto.KeyVersion,
		ValidatedAt:     &now,
	}); err != nil {
		w.failSession(ctx, session, loginSessionID)
		return err
	}

	if err := w.store.UpdateSocialAccountStatus(ctx, session.SocialAccountID, models.AccountStatusHealthy, now); err != nil {
		w.logger.Error("failed to mark account healthy",
			zap.String("social_account_id", session.SocialAccountID),
			zap.Error(err))
	}

	w.setStatus(ctx, session, models.LoginSessionSucceeded)
	w.stopRuntime(ctx, loginSessionID)

	w.logger.Info("captured login session",
		zap.String("login_session_id", loginSessionID),
		zap.String("social_account_id", session.SocialAccountID))
	return nil
}

func (w *Watcher) failSession(ctx context.Context, session *models.LoginSession, loginSessionID string) {
	w.setStatus(ctx, session, models.LoginSessionFailed)
	w.stopRuntime(ctx, loginSessionID)
}

func (w *Watcher) stopRuntime(ctx context.Context, loginSessionID string) {
	if err := w.cluster.StopLoginSession(ctx, loginSessionID); err != nil && !errors.Is(err, cluster.ErrSessionNotFound) {
		w.logger.Warn("failed to stop login runtime",
			zap.String("login_session_id", loginSessionID),
			zap.Error(err))
	}
}

// setStatus persists a status transition and publishes it to watchers.
// Terminal states are absorbing; a lost race is not an error here.
func (w *Watcher) setStatus(ctx context.Context, session *models.LoginSession, status models.LoginSessionStatus) {
	if err := w.store.UpdateLoginSessionStatus(ctx, session.ID, status); err != nil {
		w.logger.Warn("login session status transition rejected",
			zap.String("login_session_id", session.ID),
			zap.String("status", string(status)),
			zap.Error(err))
		return
	}
	session.Status = status

	if w.bus == nil {
		return
	}
	event := bus.NewEvent(events.LoginSessionStatusChanged, "auto-capture", map[string]any{
		"login_session_id":  session.ID,
		"workspace_id":      session.WorkspaceID,
		"social_account_id": session.SocialAccountID,
		"status":            string(status),
	})
	if err := w.bus.Publish(ctx, events.BuildLoginSessionStatusSubject(session.ID), event); err != nil {
		w.logger.Warn("failed to publish login session status", zap.Error(err))
	}
}
