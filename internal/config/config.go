// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded once at startup and
// passed into each component's constructor. No component reads process
// environment at call time.
type Config struct {
	ListenAddr string
	DBPath     string

	// ManagementAPIURL and ManagementAPIKey locate and authenticate against
	// the relay gateway's synchronization endpoint. Unprefixed names match
	// the deployed sidecar contract.
	ManagementAPIURL string
	ManagementAPIKey string

	// SessionSecret signs the console's HS256 session tokens.
	SessionSecret string

	// GitHubToken authenticates OAuth account verification lookups.
	// Optional; without it, account names are accepted unverified.
	GitHubToken string

	SyncTokenMaxAge      time.Duration
	SyncTokenTouchWindow time.Duration
	MaxKeysPerIdentity   int
}

// HasGateway returns true when both the management URL and secret are
// configured. Used by the composition root to decide whether to create a
// real gateway client at startup or wire services with a nil client.
func (c *Config) HasGateway() bool {
	return c.ManagementAPIURL != "" && c.ManagementAPIKey != ""
}

// HasGitHubToken returns true when a GitHub token is configured for the
// account verifier.
func (c *Config) HasGitHubToken() bool {
	return c.GitHubToken != ""
}

// Load reads configuration from the environment (after loading .env if
// present) and returns a validated Config. RELAYPANEL_SESSION_SECRET is
// required. Gateway settings (MANAGEMENT_API_URL, MANAGEMENT_API_KEY) are
// optional; without them sync operations report the gateway as unconfigured.
// Optional variables with defaults: RELAYPANEL_LISTEN_ADDR (127.0.0.1:8080),
// RELAYPANEL_DB_PATH (relaypanel.db), RELAYPANEL_SYNC_TOKEN_MAX_AGE_DAYS (90),
// RELAYPANEL_SYNC_TOKEN_TOUCH_WINDOW (1h), RELAYPANEL_MAX_KEYS_PER_IDENTITY (5).
func Load() (*Config, error) {
	_ = godotenv.Load()

	sessionSecret := os.Getenv("RELAYPANEL_SESSION_SECRET")
	if sessionSecret == "" {
		return nil, fmt.Errorf("RELAYPANEL_SESSION_SECRET is required")
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("RELAYPANEL_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "relaypanel.db"
	if v, ok := os.LookupEnv("RELAYPANEL_DB_PATH"); ok {
		dbPath = v
	}

	maxAgeDays := 90
	if v, ok := os.LookupEnv("RELAYPANEL_SYNC_TOKEN_MAX_AGE_DAYS"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("RELAYPANEL_SYNC_TOKEN_MAX_AGE_DAYS has invalid value %q", v)
		}
		maxAgeDays = parsed
	}

	touchWindow := time.Hour
	if v, ok := os.LookupEnv("RELAYPANEL_SYNC_TOKEN_TOUCH_WINDOW"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("RELAYPANEL_SYNC_TOKEN_TOUCH_WINDOW has invalid duration %q: %w", v, err)
		}
		touchWindow = parsed
	}

	maxKeys := 5
	if v, ok := os.LookupEnv("RELAYPANEL_MAX_KEYS_PER_IDENTITY"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("RELAYPANEL_MAX_KEYS_PER_IDENTITY has invalid value %q", v)
		}
		maxKeys = parsed
	}

	return &Config{
		ListenAddr:           listenAddr,
		DBPath:               dbPath,
		ManagementAPIURL:     os.Getenv("MANAGEMENT_API_URL"),
		ManagementAPIKey:     os.Getenv("MANAGEMENT_API_KEY"),
		SessionSecret:        sessionSecret,
		GitHubToken:          os.Getenv("RELAYPANEL_GITHUB_TOKEN"),
		SyncTokenMaxAge:      time.Duration(maxAgeDays) * 24 * time.Hour,
		SyncTokenTouchWindow: touchWindow,
		MaxKeysPerIdentity:   maxKeys,
	}, nil
}
