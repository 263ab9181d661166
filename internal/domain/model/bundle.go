package model

import "time"

// ConfigBundle is the versioned configuration payload served to external
// pull clients. Version is derived from the bundle's stable content, so an
// unchanged configuration always produces the same version token.
type ConfigBundle struct {
	Version     string
	GatewayURL  string
	Keys        []BundleKey
	Accounts    []BundleAccount
	GeneratedAt time.Time
}

// BundleKey is one credential entry inside a bundle.
type BundleKey struct {
	ID     int64
	Name   string
	Secret string
}

// BundleAccount is one OAuth ownership entry inside a bundle.
type BundleAccount struct {
	Provider    OAuthProvider
	AccountName string
	Email       string
}
