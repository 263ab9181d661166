package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	gatewayadapter "github.com/evanrudell/relaypanel/internal/adapter/driven/gateway"
	githubadapter "github.com/evanrudell/relaypanel/internal/adapter/driven/github"
	sqliteadapter "github.com/evanrudell/relaypanel/internal/adapter/driven/sqlite"
	httphandler "github.com/evanrudell/relaypanel/internal/adapter/driving/http"
	"github.com/evanrudell/relaypanel/internal/application"
	"github.com/evanrudell/relaypanel/internal/config"
	"github.com/evanrudell/relaypanel/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"gateway_configured", cfg.HasGateway(),
		"token_max_age", cfg.SyncTokenMaxAge,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire store adapters.
	identityStore := sqliteadapter.NewIdentityRepo(db)
	keyStore := sqliteadapter.NewAPIKeyRepo(db)
	tokenStore := sqliteadapter.NewSyncTokenRepo(db)
	accountStore := sqliteadapter.NewOAuthAccountRepo(db)
	subscriptionStore := sqliteadapter.NewSubscriptionRepo(db)
	migrationStateStore := sqliteadapter.NewMigrationStateRepo(db)

	// 6. Create gateway client (nil when unconfigured; services then report
	// the gateway as unavailable instead of failing at startup).
	var gatewayClient driven.GatewayClient
	if cfg.HasGateway() {
		gatewayClient = gatewayadapter.NewClient(cfg.ManagementAPIURL, cfg.ManagementAPIKey)
		slog.Info("gateway client created", "url", cfg.ManagementAPIURL)
	} else {
		slog.Info("no management gateway configured, sync operations disabled")
	}

	// 6b. Create GitHub account verifier (nil without a token; account
	// names are then accepted unverified).
	var verifier driven.AccountVerifier
	if cfg.HasGitHubToken() {
		verifier = githubadapter.NewVerifier(cfg.GitHubToken)
		slog.Info("github account verifier created")
	}

	// 7. Create application services.
	tokenSvc := application.NewTokenService(tokenStore, cfg.SyncTokenMaxAge, cfg.SyncTokenTouchWindow, slog.Default())
	syncSvc := application.NewSyncService(keyStore, gatewayClient, slog.Default())
	reconcileSvc := application.NewReconcileService(keyStore, gatewayClient, slog.Default())
	contribSvc := application.NewContributionService(
		keyStore, accountStore, gatewayClient, verifier, syncSvc, cfg.MaxKeysPerIdentity, slog.Default(),
	)
	migrationSvc := application.NewMigrationService(
		keyStore, identityStore, migrationStateStore, gatewayClient, syncSvc, slog.Default(),
	)
	bundleSvc := application.NewBundleService(
		keyStore, accountStore, subscriptionStore, cfg.ManagementAPIURL, slog.Default(),
	)

	// 8. Create HTTP handler and register routes.
	apiHandler := httphandler.NewHandler(
		identityStore, tokenSvc, syncSvc, reconcileSvc, contribSvc, migrationSvc, bundleSvc,
		[]byte(cfg.SessionSecret), cfg.HasGateway(), slog.Default(),
	)
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 9. Log startup complete.
	slog.Info("relaypanel started", "listen_addr", cfg.ListenAddr)

	// 10. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 11. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
