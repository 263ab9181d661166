package model

import "time"

// OAuthAccount records that an identity owns an external provider account.
// The (Provider, AccountName) pair is unique across all identities; one
// identity may own any number of accounts.
type OAuthAccount struct {
	ID          int64
	IdentityID  int64
	Provider    OAuthProvider
	AccountName string
	Email       string
	CreatedAt   time.Time
}
