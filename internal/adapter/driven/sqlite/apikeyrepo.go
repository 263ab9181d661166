package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evanrudell/relaypanel/internal/domain/model"
	"github.com/evanrudell/relaypanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.APIKeyStore = (*APIKeyRepo)(nil)

// APIKeyRepo is the SQLite implementation of the APIKeyStore port interface.
type APIKeyRepo struct {
	db *DB
}

// NewAPIKeyRepo creates a new APIKeyRepo backed by the given DB.
func NewAPIKeyRepo(db *DB) *APIKeyRepo {
	return &APIKeyRepo{db: db}
}

// Create inserts a new API key and returns its generated id. The UNIQUE
// constraint on secret is the final arbiter under concurrent creation;
// violations surface as ErrDuplicateKey.
func (r *APIKeyRepo) Create(ctx context.Context, key model.APIKey) (int64, error) {
	const query = `INSERT INTO api_keys (identity_id, secret, name, created_at) VALUES (?, ?, ?, ?)`

	createdAt := key.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := r.db.Writer.ExecContext(ctx, query, key.IdentityID, key.Secret, key.Name, createdAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return 0, fmt.Errorf("create api key %s: %w", key.Name, driven.ErrDuplicateKey)
		}
		return 0, fmt.Errorf("create api key %s: %w", key.Name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read api key id: %w", err)
	}

	return id, nil
}

// GetByID retrieves an API key by id. Returns nil, nil if it does not exist.
func (r *APIKeyRepo) GetByID(ctx context.Context, id int64) (*model.APIKey, error) {
	const query = `SELECT id, identity_id, secret, name, created_at FROM api_keys WHERE id = ?`

	key, err := scanAPIKey(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get api key %d: %w", id, err)
	}

	return key, nil
}

// GetBySecret retrieves an API key by its secret value. Returns nil, nil if
// no key holds that secret.
func (r *APIKeyRepo) GetBySecret(ctx context.Context, secret string) (*model.APIKey, error) {
	const query = `SELECT id, identity_id, secret, name, created_at FROM api_keys WHERE secret = ?`

	key, err := scanAPIKey(r.db.Reader.QueryRowContext(ctx, query, secret))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get api key by secret: %w", err)
	}

	return key, nil
}

// ListByIdentity returns all API keys owned by the given identity, ordered
// by creation time.
func (r *APIKeyRepo) ListByIdentity(ctx context.Context, identityID int64) ([]model.APIKey, error) {
	const query = `
		SELECT id, identity_id, secret, name, created_at
		FROM api_keys
		WHERE identity_id = ?
		ORDER BY created_at, id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, identityID)
	if err != nil {
		return nil, fmt.Errorf("list api keys for identity %d: %w", identityID, err)
	}
	defer rows.Close()

	var keys []model.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, *key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}

	return keys, nil
}

// ListAllSecrets returns every stored secret value ordered by id. This is
// the full local set pushed to the gateway on each sync.
func (r *APIKeyRepo) ListAllSecrets(ctx context.Context) ([]string, error) {
	const query = `SELECT secret FROM api_keys ORDER BY id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list api key secrets: %w", err)
	}
	defer rows.Close()

	secrets := []string{}
	for rows.Next() {
		var secret string
		if err := rows.Scan(&secret); err != nil {
			return nil, fmt.Errorf("scan api key secret: %w", err)
		}
		secrets = append(secrets, secret)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api key secrets: %w", err)
	}

	return secrets, nil
}

// CountByIdentity returns the number of API keys owned by the given identity.
func (r *APIKeyRepo) CountByIdentity(ctx context.Context, identityID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM api_keys WHERE identity_id = ?`

	var count int
	if err := r.db.Reader.QueryRowContext(ctx, query, identityID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count api keys for identity %d: %w", identityID, err)
	}

	return count, nil
}

// Count returns the total number of API keys.
func (r *APIKeyRepo) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM api_keys`

	var count int
	if err := r.db.Reader.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count api keys: %w", err)
	}

	return count, nil
}

// Delete removes an API key by id. Returns ErrKeyNotFound if it does not exist.
func (r *APIKeyRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM api_keys WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete api key %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete api key %d: %w", id, driven.ErrKeyNotFound)
	}

	return nil
}

// ImportBatch creates ownership records for the given secrets under one
// transaction, naming them imported-1, imported-2, and so on. Secrets already
// present locally are skipped via a per-row existence check, which guards
// against partial prior state even when the caller's idempotency gate has
// already passed. Returns the number of records created.
func (r *APIKeyRepo) ImportBatch(ctx context.Context, identityID int64, secrets []string) (int, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	const existsQuery = `SELECT COUNT(*) FROM api_keys WHERE secret = ?`
	const insertQuery = `INSERT INTO api_keys (identity_id, secret, name, created_at) VALUES (?, ?, ?, ?)`

	now := time.Now().UTC()
	imported := 0

	for _, secret := range secrets {
		var exists int
		if err := tx.QueryRowContext(ctx, existsQuery, secret).Scan(&exists); err != nil {
			return 0, fmt.Errorf("check existing secret: %w", err)
		}
		if exists > 0 {
			continue
		}

		name := fmt.Sprintf("imported-%d", imported+1)
		if _, err := tx.ExecContext(ctx, insertQuery, identityID, secret, name, now); err != nil {
			return 0, fmt.Errorf("import api key %s: %w", name, err)
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}

	return imported, nil
}

func scanAPIKey(s scanner) (*model.APIKey, error) {
	var key model.APIKey
	var createdAt string

	err := s.Scan(&key.ID, &key.IdentityID, &key.Secret, &key.Name, &createdAt)
	if err != nil {
		return nil, err
	}

	key.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &key, nil
}
