package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// SyncTokenSecretPrefix is the fixed prefix of every sync token secret.
const SyncTokenSecretPrefix = "st-"

// SyncToken is a bearer credential that gates config bundle pulls. Only the
// SHA-256 digest of the secret is persisted; the plaintext is returned once
// at issue time. Tokens are never physically deleted here: revocation sets
// RevokedAt and is irreversible.
type SyncToken struct {
	ID         string // UUID, the public handle used for revocation.
	IdentityID int64
	SecretHash string
	APIKeyID   *int64 // Optional credential scope; nil means identity-wide.
	CreatedAt  time.Time
	LastUsedAt *time.Time
	RevokedAt  *time.Time
}

// Revoked reports whether the token has been revoked.
func (t *SyncToken) Revoked() bool {
	return t.RevokedAt != nil
}

// Age returns how long ago the token was created relative to now.
func (t *SyncToken) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}

// NewSyncTokenSecret generates a fresh token secret: "st-" plus 64 hex
// characters (256 bits of entropy) from crypto/rand.
func NewSyncTokenSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate sync token secret: %w", err)
	}
	return SyncTokenSecretPrefix + hex.EncodeToString(b), nil
}
