package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/syncsocial/syncsocial/internal/automation/models"
)

const loginSessionColumns = `id, workspace_id, social_account_id, platform_key, status, remote_url, expires_at, created_by, created_at, updated_at`

func scanLoginSession(row interface{ Scan(...any) error }) (*models.LoginSession, error) {
	ls := &models.LoginSession{}
	var remoteURL sql.NullString
	err := row.Scan(&ls.ID, &ls.WorkspaceID, &ls.SocialAccountID, &ls.PlatformKey, &ls.Status,
		&remoteURL, &ls.ExpiresAt, &ls.CreatedBy, &ls.CreatedAt, &ls.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if remoteURL.Valid {
		ls.RemoteURL = &remoteURL.String
	}
	return ls, nil
}

// CreateLoginSession creates a new login session with the standard TTL
func (s *Store) CreateLoginSession(ctx context.Context, ls *models.LoginSession) error {
	if ls.ID == "" {
		ls.ID = uuid.New().String()
	}
	if ls.Status == "" {
		ls.Status = models.LoginSessionCreated
	}
	now := time.Now().UTC()
	ls.CreatedAt = now
	ls.UpdatedAt = now
	if ls.ExpiresAt.IsZero() {
		ls.ExpiresAt = now.Add(models.LoginSessionTTL)
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO login_sessions (`+loginSessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), ls.ID, ls.WorkspaceID, ls.SocialAccountID, ls.PlatformKey, ls.Status,
		ls.RemoteURL, ls.ExpiresAt, ls.CreatedBy, ls.CreatedAt, ls.UpdatedAt)
	return err
}

// GetLoginSession retrieves a login session by ID
func (s *Store) GetLoginSession(ctx context.Context, id string) (*models.LoginSession, error) {
	row := s.ro.QueryRowContext(ctx, s.ro.Rebind(`
		SELECT `+loginSessionColumns+` FROM login_sessions WHERE id = ?
	`), id)
	ls, err := scanLoginSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("login session not found: %s", id)
	}
	return ls, err
}

// ListLoginSessions returns the sessions for a workspace, newest first
func (s *Store) ListLoginSessions(ctx context.Context, workspaceID string) ([]*models.LoginSession, error) {
	rows, err := s.ro.QueryContext(ctx, s.ro.Rebind(`
		SELECT `+loginSessionColumns+` FROM login_sessions WHERE workspace_id = ? ORDER BY created_at DESC
	`), workspaceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []*models.LoginSession
	for rows.Next() {
		ls, err := scanLoginSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, ls)
	}
	return sessions, rows.Err()
}

// UpdateLoginSessionStatus advances a session's status. Terminal states are
// absorbing: the update is refused once the row is terminal.
func (s *Store) UpdateLoginSessionStatus(ctx context.Context, id string, status models.LoginSessionStatus) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE login_sessions SET status = ?, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?, ?, ?)
	`), status, time.Now().UTC(), id,
		models.LoginSessionSucceeded, models.LoginSessionFailed, models.LoginSessionExpired, models.LoginSessionCanceled)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("login session not found or terminal: %s", id)
	}
	return nil
}

// SetLoginSessionRemoteURL stores the worker-provided remote URL
func (s *Store) SetLoginSessionRemoteURL(ctx context.Context, id string, remoteURL *string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE login_sessions SET remote_url = ?, updated_at = ? WHERE id = ?
	`), remoteURL, time.Now().UTC(), id)
	return err
}
