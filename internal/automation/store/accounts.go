package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syncsocial/syncsocial/internal/automation/models"
)

const accountColumns = `id, workspace_id, platform_key, handle, status, labels, fingerprint_profile, last_health_check_at, created_at, updated_at`

func (s *Store) scanAccount(row interface{ Scan(...any) error }) (*models.SocialAccount, error) {
	acc := &models.SocialAccount{}
	var labels, fingerprint string
	var lastCheck sql.NullTime
	err := row.Scan(&acc.ID, &acc.WorkspaceID, &acc.PlatformKey, &acc.Handle, &acc.Status,
		&labels, &fingerprint, &lastCheck, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	acc.Labels = unmarshalMap(labels)
	acc.FingerprintProfile = unmarshalMap(fingerprint)
	if lastCheck.Valid {
		acc.LastHealthCheckAt = &lastCheck.Time
	}
	return acc, nil
}

// CreateSocialAccount creates a new social account
func (s *Store) CreateSocialAccount(ctx context.Context, acc *models.SocialAccount) error {
	if acc.ID == "" {
		acc.ID = uuid.New().String()
	}
	if acc.Status == "" {
		acc.Status = models.AccountStatusNeedsLogin
	}
	now := time.Now().UTC()
	acc.CreatedAt = now
	acc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO social_accounts (id, workspace_id, platform_key, handle, status, labels, fingerprint_profile, last_health_check_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), acc.ID, acc.WorkspaceID, acc.PlatformKey, acc.Handle, acc.Status,
		marshalMap(acc.Labels), marshalMap(acc.FingerprintProfile), acc.LastHealthCheckAt, acc.CreatedAt, acc.UpdatedAt)
	return err
}

// GetSocialAccount retrieves a social account by ID within a workspace
func (s *Store) GetSocialAccount(ctx context.Context, workspaceID, id string) (*models.SocialAccount, error) {
	row := s.ro.QueryRowContext(ctx, s.ro.Rebind(`
		SELECT `+accountColumns+` FROM social_accounts WHERE workspace_id = ? AND id = ?
	`), workspaceID, id)
	acc, err := s.scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("social account not found: %s", id)
	}
	return acc, err
}

// ListSocialAccounts returns all accounts for a workspace
func (s *Store) ListSocialAccounts(ctx context.Context, workspaceID string) ([]*models.SocialAccount, error) {
	return s.querySocialAccounts(ctx, `
		SELECT `+accountColumns+` FROM social_accounts WHERE workspace_id = ? ORDER BY created_at
	`, workspaceID)
}

// ListHealthySocialAccounts returns accounts with status healthy
func (s *Store) ListHealthySocialAccounts(ctx context.Context, workspaceID string) ([]*models.SocialAccount, error) {
	return s.querySocialAccounts(ctx, `
		SELECT `+accountColumns+` FROM social_accounts WHERE workspace_id = ? AND status = ? ORDER BY created_at
	`, workspaceID, models.AccountStatusHealthy)
}

// ListSocialAccountsByIDs returns the accounts with the given IDs, scoped to the workspace
func (s *Store) ListSocialAccountsByIDs(ctx context.Context, workspaceID string, ids []string) ([]*models.SocialAccount, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, 0, len(ids)+1)
	args = append(args, workspaceID)
	for _, id := range ids {
		args = append(args, id)
	}
	return s.querySocialAccounts(ctx, `
		SELECT `+accountColumns+` FROM social_accounts
		WHERE workspace_id = ? AND id IN (`+placeholders+`) ORDER BY created_at
	`, args...)
}

func (s *Store) querySocialAccounts(ctx context.Context, query string, args ...any) ([]*models.SocialAccount, error) {
	rows, err := s.ro.QueryContext(ctx, s.ro.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var accounts []*models.SocialAccount
	for rows.Next() {
		acc, err := s.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// UpdateSocialAccountStatus flips an account's health status and stamps the
// last health check time.
func (s *Store) UpdateSocialAccountStatus(ctx context.Context, id string, status models.AccountStatus, checkedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE social_accounts SET status = ?, last_health_check_at = ?, updated_at = ? WHERE id = ?
	`), status, checkedAt, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("social account not found: %s", id)
	}
	return nil
}

// UpdateSocialAccount persists user-editable account fields
func (s *Store) UpdateSocialAccount(ctx context.Context, acc *models.SocialAccount) error {
	acc.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE social_accounts SET handle = ?, labels = ?, fingerprint_profile = ?, updated_at = ?
		WHERE workspace_id = ? AND id = ?
	`), acc.Handle, marshalMap(acc.Labels), marshalMap(acc.FingerprintProfile), acc.UpdatedAt, acc.WorkspaceID, acc.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("social account not found: %s", acc.ID)
	}
	return nil
}

// DeleteSocialAccount removes an account and its credentials
func (s *Store) DeleteSocialAccount(ctx context.Context, workspaceID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM credentials WHERE social_account_id = ?`), id); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("failed to rollback credential delete: %w", rollbackErr)
		}
		return err
	}
	result, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM social_accounts WHERE workspace_id = ? AND id = ?`), workspaceID, id)
	if err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("failed to rollback account delete: %w", rollbackErr)
		}
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("failed to rollback account delete: %w", rollbackErr)
		}
		return fmt.Errorf("social account not found: %s", id)
	}
	return tx.Commit()
}

// CountSocialAccounts returns the number of accounts in a workspace
func (s *Store) CountSocialAccounts(ctx context.Context, workspaceID string) (int, error) {
	var count int
	err := s.ro.QueryRowContext(ctx, s.ro.Rebind(`
		SELECT COUNT(*) FROM social_accounts WHERE workspace_id = ?
	`), workspaceID).Scan(&count)
	return count, err
}
