package driven

import (
	"context"
	"errors"

	"github.com/evanrudell/relaypanel/internal/domain/model"
)

// Sentinel errors returned by APIKeyStore implementations.
var (
	// ErrKeyNotFound indicates the requested API key does not exist.
	ErrKeyNotFound = errors.New("api key not found")

	// ErrDuplicateKey indicates the secret value is already registered.
	// The store's UNIQUE constraint raises this, making it the final
	// arbiter when two concurrent creates race past an existence check.
	ErrDuplicateKey = errors.New("api key already exists")
)

// APIKeyStore defines the driven port for API key persistence.
// Create returns ErrDuplicateKey on a secret collision.
// GetByID returns nil, nil when the key does not exist.
type APIKeyStore interface {
	Create(ctx context.Context, key model.APIKey) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.APIKey, error)
	GetBySecret(ctx context.Context, secret string) (*model.APIKey, error)
	ListByIdentity(ctx context.Context, identityID int64) ([]model.APIKey, error)
	// ListAllSecrets returns every stored secret value, the full local set
	// pushed to the gateway on each sync.
	ListAllSecrets(ctx context.Context) ([]string, error)
	CountByIdentity(ctx context.Context, identityID int64) (int, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id int64) error
	// ImportBatch creates ownership records for the given secrets under one
	// transaction, skipping secrets that already exist locally. Names are
	// assigned sequentially by the implementation. Returns the number of
	// records created; on error the transaction is rolled back entirely.
	ImportBatch(ctx context.Context, identityID int64, secrets []string) (int, error)
}
