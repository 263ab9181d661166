package driven

import (
	"context"
	"errors"

	"github.com/evanrudell/relaypanel/internal/domain/model"
)

// Sentinel errors returned by OAuthAccountStore implementations.
var (
	// ErrAccountNotFound indicates the requested ownership record does not exist.
	ErrAccountNotFound = errors.New("oauth account not found")

	// ErrDuplicateAccount indicates the (provider, account name) pair is
	// already linked to some identity.
	ErrDuplicateAccount = errors.New("oauth account already linked")
)

// OAuthAccountStore defines the driven port for OAuth ownership persistence.
// Create returns ErrDuplicateAccount on a (provider, account name) collision.
// Get returns nil, nil when no record matches.
type OAuthAccountStore interface {
	Create(ctx context.Context, account model.OAuthAccount) (int64, error)
	Get(ctx context.Context, provider model.OAuthProvider, accountName string) (*model.OAuthAccount, error)
	ListByIdentity(ctx context.Context, identityID int64) ([]model.OAuthAccount, error)
	// Delete returns ErrAccountNotFound when no record matches.
	Delete(ctx context.Context, provider model.OAuthProvider, accountName string) error
}
