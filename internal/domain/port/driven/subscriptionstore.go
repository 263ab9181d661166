package driven

import (
	"context"
	"time"

	"github.com/evanrudell/relaypanel/internal/domain/model"
)

// SubscriptionStore defines the driven port for config subscription state.
// Get returns nil, nil when the identity has no subscription row yet.
// MarkSynced upserts the row and sets last_synced_at.
type SubscriptionStore interface {
	Get(ctx context.Context, identityID int64) (*model.ConfigSubscription, error)
	MarkSynced(ctx context.Context, identityID int64, syncedAt time.Time) error
}
