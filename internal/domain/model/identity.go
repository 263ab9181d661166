package model

import "time"

// Identity is a local console account capable of owning API keys, sync
// tokens, and OAuth account links. The surrounding account system owns the
// full user record; this subsystem reads the fields it needs for ownership
// and privilege checks.
type Identity struct {
	ID        int64
	Username  string
	Email     string
	IsAdmin   bool
	CreatedAt time.Time
}
