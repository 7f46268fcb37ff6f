// Package crypto implements the credential vault: authenticated encryption of
// per-account storage-state blobs with a single environment-provided key.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize is the key size in bytes (AES-256).
	KeySize = 32

	// KeyVersion is stamped on every credential written by this vault.
	// Rotation would bump this; the vault never re-encrypts existing rows.
	KeyVersion = 1
)

// ErrNoKey indicates the vault was asked to operate without a configured key.
var ErrNoKey = errors.New("credential encryption key is not configured")

// ErrDecryptFailed indicates the blob could not be authenticated, decrypted,
// or parsed. Callers map this to the CREDENTIAL_DECRYPT_FAILED error code.
var ErrDecryptFailed = errors.New("credential decrypt failed")

// Vault seals and opens JSON documents with AES-256-GCM.
// The stored blob layout is nonce || ciphertext.
type Vault struct {
	key []byte
}

// NewVault derives a vault key from the configured key material. A base64
// encoding of exactly 32 bytes is used directly; any other string is hashed
// with SHA-256 so operators can supply arbitrary passphrases.
func NewVault(keyMaterial string) (*Vault, error) {
	if keyMaterial == "" {
		return nil, ErrNoKey
	}
	if decoded, err := base64.StdEncoding.DecodeString(keyMaterial); err == nil && len(decoded) == KeySize {
		return &Vault{key: decoded}, nil
	}
	if decoded, err := base64.URLEncoding.DecodeString(keyMaterial); err == nil && len(decoded) == KeySize {
		return &Vault{key: decoded}, nil
	}
	sum := sha256.Sum256([]byte(keyMaterial))
	return &Vault{key: sum[:]}, nil
}

// EncryptJSON serializes the document as compact JSON (Go's encoder emits
// sorted map keys, so equal maps produce equal plaintexts) and seals it.
func (v *Vault) EncryptJSON(doc map[string]any) ([]byte, error) {
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("serialize credential: %w", err)
	}

	ciphertext, nonce, err := Encrypt(plaintext, v.key)
	if err != nil {
		return nil, err
	}

	blob := make([]byte, 0, len(nonce)+len(ciphertext))
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)
	return blob, nil
}

// DecryptJSON opens a sealed blob and parses the JSON document. Every failure
// mode (truncated blob, bad auth tag, malformed JSON) returns ErrDecryptFailed.
func (v *Vault) DecryptJSON(blob []byte) (map[string]any, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	if len(blob) < gcm.NonceSize() {
		return nil, ErrDecryptFailed
	}

	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	plaintext, err := Decrypt(ciphertext, nonce, v.key)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	var doc map[string]any
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return nil, ErrDecryptFailed
	}
	return doc, nil
}

// Encrypt encrypts plaintext using AES-256-GCM with a random nonce.
// Returns (ciphertext, nonce, error).
func Encrypt(plaintext, key []byte) ([]byte, []byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Decrypt decrypts ciphertext using AES-256-GCM.
func Decrypt(ciphertext, nonce, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}

	return plaintext, nil
}
