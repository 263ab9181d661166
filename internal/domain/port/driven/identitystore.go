package driven

import (
	"context"
	"errors"

	"github.com/evanrudell/relaypanel/internal/domain/model"
)

// ErrIdentityNotFound indicates the requested identity does not exist.
var ErrIdentityNotFound = errors.New("identity not found")

// IdentityStore defines the driven port for identity lookups. The account
// system owns the table; this subsystem reads it for ownership and
// privilege checks. Create exists for seeding and tests.
// GetByID and GetByUsername return nil, nil when no identity matches.
// OldestAdmin returns nil, nil when no admin identity exists.
type IdentityStore interface {
	Create(ctx context.Context, identity model.Identity) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Identity, error)
	GetByUsername(ctx context.Context, username string) (*model.Identity, error)
	OldestAdmin(ctx context.Context) (*model.Identity, error)
}
