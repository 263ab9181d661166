package driven

import (
	"context"

	"github.com/evanrudell/relaypanel/internal/domain/model"
)

// MigrationStateStore defines the driven port for the singleton migration
// audit record. Get returns nil, nil before the first recorded run; Record
// overwrites the singleton row.
type MigrationStateStore interface {
	Get(ctx context.Context) (*model.MigrationState, error)
	Record(ctx context.Context, state model.MigrationState) error
}
