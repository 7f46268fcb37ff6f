package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/syncsocial/syncsocial/internal/automation/models"
)

// UpsertCredential inserts or replaces the credential for
// (social_account_id, credential_type), refreshing the blob and validated_at.
func (s *Store) UpsertCredential(ctx context.Context, cred *models.Credential) error {
	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}
	if cred.CredentialType == "" {
		cred.CredentialType = models.CredentialTypeStorageState
	}
	now := time.Now().UTC()
	cred.CreatedAt = now
	cred.UpdatedAt = now

	// Engine-native upsert keyed on the (account, type) unique index.
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO credentials (id, workspace_id, social_account_id, credential_type, encrypted_blob, key_version, validated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(social_account_id, credential_type) DO UPDATE SET
			encrypted_blob = excluded.encrypted_blob,
			key_version = excluded.key_version,
			validated_at = excluded.validated_at,
			updated_at = excluded.updated_at
	`), cred.ID, cred.WorkspaceID, cred.SocialAccountID, cred.CredentialType,
		cred.EncryptedBlob, cred.KeyVersion, cred.ValidatedAt, cred.CreatedAt, cred.UpdatedAt)
	return err
}

// GetCredential retrieves the credential for an account and type.
// Returns (nil, nil) when absent; the executor treats that as AUTH_REQUIRED.
func (s *Store) GetCredential(ctx context.Context, socialAccountID, credentialType string) (*models.Credential, error) {
	cred := &models.Credential{}
	var validatedAt sql.NullTime
	err := s.ro.QueryRowContext(ctx, s.ro.Rebind(`
		SELECT id, workspace_id, social_account_id, credential_type, encrypted_blob, key_version, validated_at, created_at, updated_at
		FROM credentials WHERE social_account_id = ? AND credential_type = ?
	`), socialAccountID, credentialType).Scan(&cred.ID, &cred.WorkspaceID, &cred.SocialAccountID,
		&cred.CredentialType, &cred.EncryptedBlob, &cred.KeyVersion, &validatedAt, &cred.CreatedAt, &cred.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if validatedAt.Valid {
		cred.ValidatedAt = &validatedAt.Time
	}
	return cred, nil
}
