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
var _ driven.OAuthAccountStore = (*OAuthAccountRepo)(nil)

// OAuthAccountRepo is the SQLite implementation of the OAuthAccountStore
// port interface.
type OAuthAccountRepo struct {
	db *DB
}

// NewOAuthAccountRepo creates a new OAuthAccountRepo backed by the given DB.
func NewOAuthAccountRepo(db *DB) *OAuthAccountRepo {
	return &OAuthAccountRepo{db: db}
}

// Create inserts a new ownership record and returns its generated id.
// A (provider, account_name) collision surfaces as ErrDuplicateAccount.
func (r *OAuthAccountRepo) Create(ctx context.Context, account model.OAuthAccount) (int64, error) {
	const query = `
		INSERT INTO oauth_accounts (identity_id, provider, account_name, email, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		account.IdentityID, string(account.Provider), account.AccountName, account.Email, createdAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return 0, fmt.Errorf("create oauth account %s/%s: %w", account.Provider, account.AccountName, driven.ErrDuplicateAccount)
		}
		return 0, fmt.Errorf("create oauth account %s/%s: %w", account.Provider, account.AccountName, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read oauth account id: %w", err)
	}

	return id, nil
}

// Get retrieves an ownership record by provider and account name. Returns
// nil, nil if it does not exist.
func (r *OAuthAccountRepo) Get(ctx context.Context, provider model.OAuthProvider, accountName string) (*model.OAuthAccount, error) {
	const query = `
		SELECT id, identity_id, provider, account_name, email, created_at
		FROM oauth_accounts
		WHERE provider = ? AND account_name = ?
	`

	account, err := scanOAuthAccount(r.db.Reader.QueryRowContext(ctx, query, string(provider), accountName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get oauth account %s/%s: %w", provider, accountName, err)
	}

	return account, nil
}

// ListByIdentity returns all ownership records for the given identity,
// ordered by provider then account name.
func (r *OAuthAccountRepo) ListByIdentity(ctx context.Context, identityID int64) ([]model.OAuthAccount, error) {
	const query = `
		SELECT id, identity_id, provider, account_name, email, created_at
		FROM oauth_accounts
		WHERE identity_id = ?
		ORDER BY provider, account_name
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, identityID)
	if err != nil {
		return nil, fmt.Errorf("list oauth accounts for identity %d: %w", identityID, err)
	}
	defer rows.Close()

	var accounts []model.OAuthAccount
	for rows.Next() {
		account, err := scanOAuthAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan oauth account: %w", err)
		}
		accounts = append(accounts, *account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate oauth accounts: %w", err)
	}

	return accounts, nil
}

// Delete removes an ownership record by provider and account name. Returns
// ErrAccountNotFound if it does not exist.
func (r *OAuthAccountRepo) Delete(ctx context.Context, provider model.OAuthProvider, accountName string) error {
	const query = `DELETE FROM oauth_accounts WHERE provider = ? AND account_name = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, string(provider), accountName)
	if err != nil {
		return fmt.Errorf("delete oauth account %s/%s: %w", provider, accountName, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete oauth account %s/%s: %w", provider, accountName, driven.ErrAccountNotFound)
	}

	return nil
}

func scanOAuthAccount(s scanner) (*model.OAuthAccount, error) {
	var account model.OAuthAccount
	var provider string
	var createdAt string

	err := s.Scan(&account.ID, &account.IdentityID, &provider, &account.AccountName, &account.Email, &createdAt)
	if err != nil {
		return nil, err
	}

	account.Provider = model.OAuthProvider(provider)

	account.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &account, nil
}
