package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evanrudell/relaypanel/internal/domain/model"
	"github.com/evanrudell/relaypanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SubscriptionStore = (*SubscriptionRepo)(nil)

// SubscriptionRepo is the SQLite implementation of the SubscriptionStore
// port interface.
type SubscriptionRepo struct {
	db *DB
}

// NewSubscriptionRepo creates a new SubscriptionRepo backed by the given DB.
func NewSubscriptionRepo(db *DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

// Get retrieves the subscription row for an identity. Returns nil, nil if
// the identity has never synced.
func (r *SubscriptionRepo) Get(ctx context.Context, identityID int64) (*model.ConfigSubscription, error) {
	const query = `SELECT identity_id, active, last_synced_at FROM config_subscriptions WHERE identity_id = ?`

	var sub model.ConfigSubscription
	var active int
	var lastSyncedAt sql.NullString

	err := r.db.Reader.QueryRowContext(ctx, query, identityID).Scan(&sub.IdentityID, &active, &lastSyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription for identity %d: %w", identityID, err)
	}

	sub.Active = active != 0

	sub.LastSyncedAt, err = parseNullTime(lastSyncedAt)
	if err != nil {
		return nil, fmt.Errorf("parse last_synced_at: %w", err)
	}

	return &sub, nil
}

// MarkSynced upserts the subscription row and sets last_synced_at.
func (r *SubscriptionRepo) MarkSynced(ctx context.Context, identityID int64, syncedAt time.Time) error {
	const query = `
		INSERT INTO config_subscriptions (identity_id, active, last_synced_at)
		VALUES (?, 1, ?)
		ON CONFLICT(identity_id) DO UPDATE SET
			active = 1,
			last_synced_at = excluded.last_synced_at
	`

	if _, err := r.db.Writer.ExecContext(ctx, query, identityID, syncedAt.UTC()); err != nil {
		return fmt.Errorf("mark subscription synced for identity %d: %w", identityID, err)
	}

	return nil
}
