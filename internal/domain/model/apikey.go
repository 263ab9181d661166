package model

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

// APIKeySecretPrefix is the fixed prefix of every gateway API key secret.
const APIKeySecretPrefix = "sk-"

// apiKeySecretPattern matches a well-formed key secret: prefix plus 48 hex chars.
var apiKeySecretPattern = regexp.MustCompile(`^sk-[0-9a-f]{48}$`)

// APIKey is a gateway credential owned by an identity. The secret value is
// globally unique; the store's UNIQUE constraint is the final arbiter under
// concurrent creation.
type APIKey struct {
	ID         int64
	IdentityID int64
	Secret     string
	Name       string
	CreatedAt  time.Time
}

// NewAPIKeySecret generates a fresh key secret: "sk-" plus 48 hex characters
// (192 bits of entropy) from crypto/rand.
func NewAPIKeySecret() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate key secret: %w", err)
	}
	return APIKeySecretPrefix + hex.EncodeToString(b), nil
}

// ValidAPIKeySecret reports whether s is a well-formed key secret.
func ValidAPIKeySecret(s string) bool {
	return apiKeySecretPattern.MatchString(s)
}

// HashSecret returns the SHA-256 hex digest of a secret value. Used both as
// the stored form of sync token secrets and as the key fingerprint returned
// to contributors.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// MaskSecret returns a display-safe form of a secret, keeping the prefix and
// the last four characters: "sk-...89ab".
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:3] + "..." + secret[len(secret)-4:]
}
