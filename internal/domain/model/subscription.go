package model

import "time"

// ConfigSubscription tracks a pull client's bundle consumption for an
// identity. LastSyncedAt is updated whenever a full bundle is served.
type ConfigSubscription struct {
	IdentityID   int64
	Active       bool
	LastSyncedAt *time.Time
}
