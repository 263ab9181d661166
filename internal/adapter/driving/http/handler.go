package httphandler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/evanrudell/relaypanel/internal/application"
	"github.com/evanrudell/relaypanel/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter that serves the credential and
// configuration synchronization API.
type Handler struct {
	identities    driven.IdentityStore
	tokenSvc      *application.TokenService
	syncSvc       *application.SyncService
	reconcileSvc  *application.ReconcileService
	contribSvc    *application.ContributionService
	migrationSvc  *application.MigrationService
	bundleSvc     *application.BundleService
	sessionSecret []byte
	hasGateway    bool
	logger        *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	identities driven.IdentityStore,
	tokenSvc *application.TokenService,
	syncSvc *application.SyncService,
	reconcileSvc *application.ReconcileService,
	contribSvc *application.ContributionService,
	migrationSvc *application.MigrationService,
	bundleSvc *application.BundleService,
	sessionSecret []byte,
	hasGateway bool,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		identities:    identities,
		tokenSvc:      tokenSvc,
		syncSvc:       syncSvc,
		reconcileSvc:  reconcileSvc,
		contribSvc:    contribSvc,
		migrationSvc:  migrationSvc,
		bundleSvc:     bundleSvc,
		sessionSecret: sessionSecret,
		hasGateway:    hasGateway,
		logger:        logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Session-gated console operations.
	mux.Handle("POST /api/v1/keys", h.requireSession(h.ContributeKey))
	mux.Handle("DELETE /api/v1/keys/{id}", h.requireSession(h.RemoveKey))
	mux.Handle("GET /api/v1/keys/check", h.requireSession(h.CheckKeys))
	mux.Handle("POST /api/v1/sync-tokens", h.requireSession(h.IssueSyncToken))
	mux.Handle("DELETE /api/v1/sync-tokens/{id}", h.requireSession(h.RevokeSyncToken))
	mux.Handle("POST /api/v1/accounts", h.requireSession(h.ContributeAccount))
	mux.Handle("DELETE /api/v1/accounts/{provider}/{account}", h.requireSession(h.RemoveAccount))

	// Admin-only operations.
	mux.Handle("POST /api/v1/admin/sync", h.requireAdmin(h.TriggerSync))
	mux.Handle("POST /api/v1/admin/migrate", h.requireAdmin(h.RunMigration))

	// Sync-token-gated bundle pulls.
	mux.HandleFunc("GET /api/v1/bundle/version", h.BundleVersion)
	mux.HandleFunc("GET /api/v1/bundle", h.Bundle)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health reports process liveness and whether a gateway is configured.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:            "ok",
		Time:              time.Now().UTC().Format(time.RFC3339),
		GatewayConfigured: h.hasGateway,
	})
}
