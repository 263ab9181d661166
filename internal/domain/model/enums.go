package model

// OAuthProvider identifies an external account provider.
type OAuthProvider string

const (
	ProviderGitHub OAuthProvider = "github"
	ProviderGoogle OAuthProvider = "google"
)

// Valid reports whether p is a known provider value.
func (p OAuthProvider) Valid() bool {
	switch p {
	case ProviderGitHub, ProviderGoogle:
		return true
	}
	return false
}

// MigrationOutcome records how a migration run ended.
type MigrationOutcome string

const (
	MigrationCompleted MigrationOutcome = "completed"
)
