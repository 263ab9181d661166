package model

import "time"

// MigrationState is the singleton audit marker left by the migration runner.
// It records that the one-time import happened and how it went; it is never
// used as a work queue.
type MigrationState struct {
	LastRunAt     time.Time
	Outcome       MigrationOutcome
	ImportedCount int
}
