package driven

import (
	"context"
	"errors"

	"github.com/evanrudell/relaypanel/internal/domain/model"
)

// ErrExternalAccountNotFound indicates the provider has no account with the
// given name.
var ErrExternalAccountNotFound = errors.New("external account not found")

// VerifiedAccount is the provider's canonical view of an account.
type VerifiedAccount struct {
	Login string
	Email string
}

// AccountVerifier defines the driven port for resolving an external account
// name against its provider before linking it to an identity.
// Lookup returns ErrExternalAccountNotFound for unknown accounts; any other
// error means the provider could not be consulted.
type AccountVerifier interface {
	Supports(provider model.OAuthProvider) bool
	Lookup(ctx context.Context, accountName string) (*VerifiedAccount, error)
}
