package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/evanrudell/relaypanel/internal/domain/model"
	"github.com/evanrudell/relaypanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MigrationStateStore = (*MigrationStateRepo)(nil)

// MigrationStateRepo is the SQLite implementation of the MigrationStateStore
// port interface. The table holds at most one row (id = 1).
type MigrationStateRepo struct {
	db *DB
}

// NewMigrationStateRepo creates a new MigrationStateRepo backed by the given DB.
func NewMigrationStateRepo(db *DB) *MigrationStateRepo {
	return &MigrationStateRepo{db: db}
}

// Get retrieves the singleton migration record. Returns nil, nil before the
// first recorded run.
func (r *MigrationStateRepo) Get(ctx context.Context) (*model.MigrationState, error) {
	const query = `SELECT last_run_at, outcome, imported_count FROM migration_state WHERE id = 1`

	var state model.MigrationState
	var lastRunAt string
	var outcome string

	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&lastRunAt, &outcome, &state.ImportedCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get migration state: %w", err)
	}

	state.Outcome = model.MigrationOutcome(outcome)

	state.LastRunAt, err = parseTime(lastRunAt)
	if err != nil {
		return nil, fmt.Errorf("parse last_run_at: %w", err)
	}

	return &state, nil
}

// Record overwrites the singleton migration record.
func (r *MigrationStateRepo) Record(ctx context.Context, state model.MigrationState) error {
	const query = `
		INSERT INTO migration_state (id, last_run_at, outcome, imported_count)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			outcome = excluded.outcome,
			imported_count = excluded.imported_count
	`

	_, err := r.db.Writer.ExecContext(ctx, query, state.LastRunAt.UTC(), string(state.Outcome), state.ImportedCount)
	if err != nil {
		return fmt.Errorf("record migration state: %w", err)
	}

	return nil
}
