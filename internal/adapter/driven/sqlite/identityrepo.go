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
var _ driven.IdentityStore = (*IdentityRepo)(nil)

// IdentityRepo is the SQLite implementation of the IdentityStore port interface.
type IdentityRepo struct {
	db *DB
}

// NewIdentityRepo creates a new IdentityRepo backed by the given DB.
func NewIdentityRepo(db *DB) *IdentityRepo {
	return &IdentityRepo{db: db}
}

// Create inserts a new identity and returns its generated id.
func (r *IdentityRepo) Create(ctx context.Context, identity model.Identity) (int64, error) {
	const query = `INSERT INTO identities (username, email, is_admin, created_at) VALUES (?, ?, ?, ?)`

	createdAt := identity.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	isAdmin := 0
	if identity.IsAdmin {
		isAdmin = 1
	}

	result, err := r.db.Writer.ExecContext(ctx, query, identity.Username, identity.Email, isAdmin, createdAt)
	if err != nil {
		return 0, fmt.Errorf("create identity %s: %w", identity.Username, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read identity id: %w", err)
	}

	return id, nil
}

// GetByID retrieves an identity by id. Returns nil, nil if it does not exist.
func (r *IdentityRepo) GetByID(ctx context.Context, id int64) (*model.Identity, error) {
	const query = `SELECT id, username, email, is_admin, created_at FROM identities WHERE id = ?`

	identity, err := scanIdentity(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity %d: %w", id, err)
	}

	return identity, nil
}

// GetByUsername retrieves an identity by username. Returns nil, nil if it
// does not exist.
func (r *IdentityRepo) GetByUsername(ctx context.Context, username string) (*model.Identity, error) {
	const query = `SELECT id, username, email, is_admin, created_at FROM identities WHERE username = ?`

	identity, err := scanIdentity(r.db.Reader.QueryRowContext(ctx, query, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity %s: %w", username, err)
	}

	return identity, nil
}

// OldestAdmin returns the admin identity with the earliest created_at, the
// assignment target for migrated credentials. Returns nil, nil when no admin
// identity exists.
func (r *IdentityRepo) OldestAdmin(ctx context.Context) (*model.Identity, error) {
	const query = `
		SELECT id, username, email, is_admin, created_at
		FROM identities
		WHERE is_admin = 1
		ORDER BY created_at, id
		LIMIT 1
	`

	identity, err := scanIdentity(r.db.Reader.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get oldest admin: %w", err)
	}

	return identity, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(s scanner) (*model.Identity, error) {
	var identity model.Identity
	var isAdmin int
	var createdAt string

	err := s.Scan(&identity.ID, &identity.Username, &identity.Email, &isAdmin, &createdAt)
	if err != nil {
		return nil, err
	}

	identity.IsAdmin = isAdmin != 0

	identity.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &identity, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}

// parseNullTime parses an optional datetime column into *time.Time.
func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}

	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
