// Package vault encrypts LinkedIn secrets (passwords, session cookies) before
// they are persisted.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/davidR-jmd/fb-leads/internal/interfaces"
)

// ErrMissingKey is returned when no encryption key is configured
var ErrMissingKey = errors.New("encryption key is not configured")

// Vault seals secrets with AES-256-GCM. Payloads are nonce || ciphertext,
// base64 encoded.
type Vault struct {
	aead cipher.AEAD
}

var _ interfaces.CredentialVault = (*Vault)(nil)

// New derives a 256-bit key from the configured secret of any length
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, ErrMissingKey
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals one plaintext value. Each call uses a fresh nonce, so equal
// inputs produce different outputs.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	payload := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(payload), nil
}

// Decrypt opens a value produced by Encrypt
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	payload, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}

	nonceSize := v.aead.NonceSize()
	if len(payload) < nonceSize {
		return "", fmt.Errorf("sealed value is too short")
	}

	plaintext, err := v.aead.Open(nil, payload[:nonceSize], payload[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt sealed value: %w", err)
	}
	return string(plaintext), nil
}
