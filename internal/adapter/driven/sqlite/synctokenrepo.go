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
var _ driven.SyncTokenStore = (*SyncTokenRepo)(nil)

// SyncTokenRepo is the SQLite implementation of the SyncTokenStore port
// interface. Tokens are soft-deleted only: Revoke sets revoked_at and no
// method here removes a row.
type SyncTokenRepo struct {
	db *DB
}

// NewSyncTokenRepo creates a new SyncTokenRepo backed by the given DB.
func NewSyncTokenRepo(db *DB) *SyncTokenRepo {
	return &SyncTokenRepo{db: db}
}

// Create inserts a new sync token record.
func (r *SyncTokenRepo) Create(ctx context.Context, token model.SyncToken) error {
	const query = `
		INSERT INTO sync_tokens (id, identity_id, secret_hash, api_key_id, created_at, last_used_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, NULL, NULL)
	`

	createdAt := token.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var apiKeyID any
	if token.APIKeyID != nil {
		apiKeyID = *token.APIKeyID
	}

	_, err := r.db.Writer.ExecContext(ctx, query, token.ID, token.IdentityID, token.SecretHash, apiKeyID, createdAt)
	if err != nil {
		return fmt.Errorf("create sync token %s: %w", token.ID, err)
	}

	return nil
}

// GetByID retrieves a sync token by id, revoked or not. Returns nil, nil if
// it does not exist.
func (r *SyncTokenRepo) GetByID(ctx context.Context, id string) (*model.SyncToken, error) {
	const query = `
		SELECT id, identity_id, secret_hash, api_key_id, created_at, last_used_at, revoked_at
		FROM sync_tokens
		WHERE id = ?
	`

	token, err := scanSyncToken(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync token %s: %w", id, err)
	}

	return token, nil
}

// GetBySecretHash retrieves the non-revoked sync token with the given secret
// hash. Returns nil, nil if no active token matches.
func (r *SyncTokenRepo) GetBySecretHash(ctx context.Context, secretHash string) (*model.SyncToken, error) {
	const query = `
		SELECT id, identity_id, secret_hash, api_key_id, created_at, last_used_at, revoked_at
		FROM sync_tokens
		WHERE secret_hash = ? AND revoked_at IS NULL
	`

	token, err := scanSyncToken(r.db.Reader.QueryRowContext(ctx, query, secretHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync token by hash: %w", err)
	}

	return token, nil
}

// ListByIdentity returns all sync tokens owned by the given identity,
// newest first, including revoked ones.
func (r *SyncTokenRepo) ListByIdentity(ctx context.Context, identityID int64) ([]model.SyncToken, error) {
	const query = `
		SELECT id, identity_id, secret_hash, api_key_id, created_at, last_used_at, revoked_at
		FROM sync_tokens
		WHERE identity_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, identityID)
	if err != nil {
		return nil, fmt.Errorf("list sync tokens for identity %d: %w", identityID, err)
	}
	defer rows.Close()

	var tokens []model.SyncToken
	for rows.Next() {
		token, err := scanSyncToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync token: %w", err)
		}
		tokens = append(tokens, *token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync tokens: %w", err)
	}

	return tokens, nil
}

// Touch updates last_used_at for the given token.
func (r *SyncTokenRepo) Touch(ctx context.Context, id string, usedAt time.Time) error {
	const query = `UPDATE sync_tokens SET last_used_at = ? WHERE id = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, usedAt.UTC(), id); err != nil {
		return fmt.Errorf("touch sync token %s: %w", id, err)
	}

	return nil
}

// Revoke sets revoked_at for the given token if it is not already set.
// Returns ErrTokenNotFound for unknown ids; revoking an already-revoked
// token is a no-op.
func (r *SyncTokenRepo) Revoke(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE sync_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`

	result, err := r.db.Writer.ExecContext(ctx, query, revokedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("revoke sync token %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		// Either unknown or already revoked; only the former is an error.
		existing, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("revoke sync token %s: %w", id, driven.ErrTokenNotFound)
		}
	}

	return nil
}

func scanSyncToken(s scanner) (*model.SyncToken, error) {
	var token model.SyncToken
	var apiKeyID sql.NullInt64
	var createdAt string
	var lastUsedAt, revokedAt sql.NullString

	err := s.Scan(&token.ID, &token.IdentityID, &token.SecretHash, &apiKeyID, &createdAt, &lastUsedAt, &revokedAt)
	if err != nil {
		return nil, err
	}

	if apiKeyID.Valid {
		token.APIKeyID = &apiKeyID.Int64
	}

	token.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	token.LastUsedAt, err = parseNullTime(lastUsedAt)
	if err != nil {
		return nil, fmt.Errorf("parse last_used_at: %w", err)
	}

	token.RevokedAt, err = parseNullTime(revokedAt)
	if err != nil {
		return nil, fmt.Errorf("parse revoked_at: %w", err)
	}

	return &token, nil
}
