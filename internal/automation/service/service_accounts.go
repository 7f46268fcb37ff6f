package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/automation/cluster"
	"github.com/syncsocial/syncsocial/internal/automation/models"
	"github.com/syncsocial/syncsocial/internal/events"
	"github.com/syncsocial/syncsocial/internal/platform"
	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

// Social account operations

// CreateSocialAccountRequest carries the fields for linking a new account.
type CreateSocialAccountRequest struct {
	PlatformKey string
	Handle      string
	Labels      map[string]any
}

// CreateSocialAccount links a platform identity to the workspace. The
// account starts in needs_login with a freshly assigned fingerprint profile.
func (s *Service) CreateSocialAccount(ctx context.Context, workspaceID string, req *CreateSocialAccountRequest) (*models.SocialAccount, error) {
	platformKey := strings.ToLower(strings.TrimSpace(req.PlatformKey))
	if _, err := platform.Lookup(platformKey); err != nil {
		return nil, err
	}

	acc := &models.SocialAccount{
		WorkspaceID:        workspaceID,
		PlatformKey:        platformKey,
		Handle:             strings.TrimSpace(req.Handle),
		Status:             models.AccountStatusNeedsLogin,
		Labels:             req.Labels,
		FingerprintProfile: generateFingerprintProfile(),
	}
	if err := s.store.CreateSocialAccount(ctx, acc); err != nil {
		s.logger.Error("failed to create social account", zap.Error(err))
		return nil, err
	}
	s.logger.Info("social account created",
		zap.String("workspace_id", workspaceID),
		zap.String("account_id", acc.ID),
		zap.String("platform", platformKey))
	return acc, nil
}

// ListSocialAccounts returns the workspace's accounts, newest first.
func (s *Service) ListSocialAccounts(ctx context.Context, workspaceID string) ([]*models.SocialAccount, error) {
	return s.store.ListSocialAccounts(ctx, workspaceID)
}

// GetSocialAccount retrieves a workspace-scoped account.
func (s *Service) GetSocialAccount(ctx context.Context, workspaceID, id string) (*models.SocialAccount, error) {
	acc, err := s.store.GetSocialAccount(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("social account not found")
	}
	return acc, nil
}

// DeleteSocialAccount removes an account and its dependents.
func (s *Service) DeleteSocialAccount(ctx context.Context, workspaceID, id string) error {
	return s.store.DeleteSocialAccount(ctx, workspaceID, id)
}

// Login session operations

// StartLoginSession creates a login session for an account and asks the
// browser cluster to open an interactive login page. The auto-capture
// watcher takes over once the session is active.
func (s *Service) StartLoginSession(ctx context.Context, workspaceID, accountID, createdBy string) (*models.LoginSession, error) {
	acc, err := s.GetSocialAccount(ctx, workspaceID, accountID)
	if err != nil {
		return nil, err
	}

	session := &models.LoginSession{
		WorkspaceID:     workspaceID,
		SocialAccountID: acc.ID,
		PlatformKey:     acc.PlatformKey,
		Status:          models.LoginSessionCreated,
		CreatedBy:       createdBy,
	}
	if err := s.store.CreateLoginSession(ctx, session); err != nil {
		return nil, err
	}

	resp, err := s.cluster.StartLoginSession(ctx, &v1.StartLoginSessionRequest{
		LoginSessionID:     session.ID,
		PlatformKey:        acc.PlatformKey,
		FingerprintProfile: acc.FingerprintProfile,
	})
	if err != nil {
		s.logger.Error("failed to start login runtime",
			zap.String("login_session_id", session.ID),
			zap.Error(err))
		s.setLoginSessionStatus(ctx, session, models.LoginSessionFailed)
		return session, nil
	}

	if err := s.store.SetLoginSessionRemoteURL(ctx, session.ID, resp.RemoteURL); err != nil {
		s.logger.Warn("failed to store remote URL",
			zap.String("login_session_id", session.ID),
			zap.Error(err))
	}
	session.RemoteURL = resp.RemoteURL
	s.setLoginSessionStatus(ctx, session, models.LoginSessionActive)
	s.capture.Watch(session.ID)

	s.logger.Info("login session started",
		zap.String("workspace_id", workspaceID),
		zap.String("login_session_id", session.ID),
		zap.String("account_id", acc.ID))
	return session, nil
}

// GetLoginSession retrieves a session, lazily expiring it when its TTL has
// elapsed while it was still open.
func (s *Service) GetLoginSession(ctx context.Context, workspaceID, id string) (*models.LoginSession, error) {
	session, err := s.store.GetLoginSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.WorkspaceID != workspaceID {
		return nil, fmt.Errorf("login session not found")
	}
	s.expireIfNeeded(ctx, session)
	return session, nil
}

// CancelLoginSession cancels an open session and stops its worker runtime.
// Canceling an already terminal session is a no-op.
func (s *Service) CancelLoginSession(ctx context.Context, workspaceID, id string) (*models.LoginSession, error) {
	session, err := s.GetLoginSession(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return session, nil
	}

	s.setLoginSessionStatus(ctx, session, models.LoginSessionCanceled)
	if err := s.cluster.StopLoginSession(ctx, session.ID); err != nil {
		s.logger.Debug("failed to stop login runtime",
			zap.String("login_session_id", session.ID),
			zap.Error(err))
	}
	return session, nil
}

// FinalizeLoginSession captures credentials from a logged-in session on
// demand, without waiting for the auto-capture poll.
func (s *Service) FinalizeLoginSession(ctx context.Context, workspaceID, id string) (*models.LoginSession, error) {
	session, err := s.GetLoginSession(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if session.Status == models.LoginSessionSucceeded {
		return session, nil
	}
	if session.Status.IsTerminal() {
		return nil, fmt.Errorf("invalid state: login session is %s", session.Status)
	}

	loggedIn, err := s.cluster.IsLoggedIn(ctx, session.ID)
	if err != nil {
		if errors.Is(err, cluster.ErrSessionNotFound) {
			return nil, fmt.Errorf("invalid state: login session runtime not found")
		}
		return nil, err
	}
	if !loggedIn {
		return nil, fmt.Errorf("not logged in yet")
	}

	if err := s.capture.Finalize(ctx, session.ID); err != nil {
		return nil, err
	}
	return s.store.GetLoginSession(ctx, id)
}

// expireIfNeeded flips an open session past its TTL to expired and makes a
// best-effort attempt to stop the worker runtime.
func (s *Service) expireIfNeeded(ctx context.Context, session *models.LoginSession) {
	if session.Status.IsTerminal() || session.Status == models.LoginSessionCapturing {
		return
	}
	if session.ExpiresAt.After(time.Now().UTC()) {
		return
	}
	s.setLoginSessionStatus(ctx, session, models.LoginSessionExpired)
	if err := s.cluster.StopLoginSession(ctx, session.ID); err != nil {
		s.logger.Debug("failed to stop expired login runtime",
			zap.String("login_session_id", session.ID),
			zap.Error(err))
	}
}

func (s *Service) setLoginSessionStatus(ctx context.Context, session *models.LoginSession, status models.LoginSessionStatus) {
	if err := s.store.UpdateLoginSessionStatus(ctx, session.ID, status); err != nil {
		s.logger.Warn("failed to update login session status",
			zap.String("login_session_id", session.ID),
			zap.String("status", string(status)),
			zap.Error(err))
		return
	}
	session.Status = status
	s.publish(ctx, events.BuildLoginSessionStatusSubject(session.ID), events.LoginSessionStatusChanged, map[string]any{
		"login_session_id": session.ID,
		"workspace_id":     session.WorkspaceID,
		"status":           string(status),
	})
}
