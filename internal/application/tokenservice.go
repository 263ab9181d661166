package application

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/evanrudell/relaypanel/internal/domain/model"
	"github.com/evanrudell/relaypanel/internal/domain/port/driven"
)

// Sentinel errors returned by TokenService operations.
var (
	// ErrTokenUnauthorized indicates the presented bearer value matches no
	// active sync token.
	ErrTokenUnauthorized = errors.New("sync token unauthorized")

	// ErrTokenExpired indicates the token exists but is past the configured
	// maximum age. Distinct from unauthorized so clients can prompt
	// re-issuance instead of treating it as a permanent denial.
	ErrTokenExpired = errors.New("sync token expired")

	// ErrNotTokenOwner indicates the requesting identity does not own the token.
	ErrNotTokenOwner = errors.New("not the token owner")
)

// ValidatedToken is the result of a successful bearer validation.
type ValidatedToken struct {
	TokenID    string
	IdentityID int64
	APIKeyID   *int64 // Non-nil when the token is scoped to one credential.
}

// TokenService issues, validates, and revokes the bearer tokens that gate
// config bundle pulls. Plaintext secrets are returned once at issue time;
// only SHA-256 digests are persisted.
type TokenService struct {
	tokens      driven.SyncTokenStore
	maxAge      time.Duration
	touchWindow time.Duration
	logger      *slog.Logger
}

// NewTokenService creates a TokenService. maxAge bounds token validity
// (computed at validation time, never persisted, so changing it retroactively
// changes outcomes for existing tokens). touchWindow throttles last-used
// updates on the hot validation path.
func NewTokenService(tokens driven.SyncTokenStore, maxAge, touchWindow time.Duration, logger *slog.Logger) *TokenService {
	return &TokenService{
		tokens:      tokens,
		maxAge:      maxAge,
		touchWindow: touchWindow,
		logger:      logger,
	}
}

// Issue generates a new sync token for the identity, optionally scoped to
// one API key. The returned plaintext is shown exactly once and never stored.
func (s *TokenService) Issue(ctx context.Context, identityID int64, apiKeyID *int64) (string, *model.SyncToken, error) {
	secret, err := model.NewSyncTokenSecret()
	if err != nil {
		return "", nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return "", nil, fmt.Errorf("generate token id: %w", err)
	}

	token := model.SyncToken{
		ID:         id.String(),
		IdentityID: identityID,
		SecretHash: model.HashSecret(secret),
		APIKeyID:   apiKeyID,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		return "", nil, err
	}

	return secret, &token, nil
}

// Validate checks a presented bearer value. Unknown or revoked tokens map to
// ErrTokenUnauthorized; tokens older than the configured maximum map to
// ErrTokenExpired with the record left untouched. On success the last-used
// timestamp is refreshed in a fire-and-forget goroutine, and only when the
// previous touch is older than the throttle window.
func (s *TokenService) Validate(ctx context.Context, bearer string) (*ValidatedToken, error) {
	hash := model.HashSecret(bearer)

	token, err := s.tokens.GetBySecretHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("look up sync token: %w", err)
	}
	if token == nil {
		return nil, ErrTokenUnauthorized
	}

	// The lookup is by indexed hash; re-compare in constant time so the
	// accept/reject decision never depends on secret content timing.
	if subtle.ConstantTimeCompare([]byte(hash), []byte(token.SecretHash)) != 1 {
		return nil, ErrTokenUnauthorized
	}

	now := time.Now().UTC()
	if token.Age(now) > s.maxAge {
		return nil, ErrTokenExpired
	}

	if token.LastUsedAt == nil || now.Sub(*token.LastUsedAt) > s.touchWindow {
		go s.touch(token.ID, now)
	}

	return &ValidatedToken{
		TokenID:    token.ID,
		IdentityID: token.IdentityID,
		APIKeyID:   token.APIKeyID,
	}, nil
}

// touch updates last_used_at off the validation path. Failures are logged
// and never reach the caller.
func (s *TokenService) touch(id string, usedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.tokens.Touch(ctx, id, usedAt); err != nil {
		s.logger.Warn("sync token touch failed", "token_id", id, "error", err)
	}
}

// Revoke irreversibly revokes a token owned by the requesting identity.
// Unknown ids map to driven.ErrTokenNotFound; another identity's token maps
// to ErrNotTokenOwner. Revoking an already-revoked token is a no-op.
func (s *TokenService) Revoke(ctx context.Context, requestingIdentity int64, tokenID string) error {
	token, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		return err
	}
	if token == nil {
		return driven.ErrTokenNotFound
	}

	if token.IdentityID != requestingIdentity {
		return ErrNotTokenOwner
	}

	if token.Revoked() {
		return nil
	}

	return s.tokens.Revoke(ctx, tokenID, time.Now().UTC())
}

// ListForIdentity returns the identity's tokens, newest first.
func (s *TokenService) ListForIdentity(ctx context.Context, identityID int64) ([]model.SyncToken, error) {
	return s.tokens.ListByIdentity(ctx, identityID)
}
