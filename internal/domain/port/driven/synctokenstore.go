package driven

import (
	"context"
	"errors"
	"time"

	"github.com/evanrudell/relaypanel/internal/domain/model"
)

// ErrTokenNotFound indicates the requested sync token does not exist.
var ErrTokenNotFound = errors.New("sync token not found")

// SyncTokenStore defines the driven port for sync token persistence.
// Tokens are soft-deleted only: Revoke sets revoked_at and nothing here
// ever removes a row.
// GetByID and GetBySecretHash return nil, nil when no token matches;
// GetBySecretHash only considers non-revoked tokens.
type SyncTokenStore interface {
	Create(ctx context.Context, token model.SyncToken) error
	GetByID(ctx context.Context, id string) (*model.SyncToken, error)
	GetBySecretHash(ctx context.Context, secretHash string) (*model.SyncToken, error)
	ListByIdentity(ctx context.Context, identityID int64) ([]model.SyncToken, error)
	// Touch updates last_used_at. Best-effort callers ignore its error.
	Touch(ctx context.Context, id string, usedAt time.Time) error
	// Revoke sets revoked_at. Returns ErrTokenNotFound for unknown ids;
	// revoking an already-revoked token is a no-op, not an error.
	Revoke(ctx context.Context, id string, revokedAt time.Time) error
}
