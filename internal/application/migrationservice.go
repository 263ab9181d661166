package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/evanrudell/relaypanel/internal/domain/model"
	"github.com/evanrudell/relaypanel/internal/domain/port/driven"
)

// Sentinel errors returned by MigrationService.Run.
var (
	// ErrAlreadyMigrated indicates local ownership records already exist, so
	// the one-time import has nothing to do. Returned on every run after the
	// first success, making the operation safe to trigger on each deployment.
	ErrAlreadyMigrated = errors.New("migration already run")

	// ErrNoEligibleIdentity indicates no admin identity exists to receive
	// the imported credentials.
	ErrNoEligibleIdentity = errors.New("no eligible admin identity")
)

// MigrationResult is the outcome of a successful migration run.
type MigrationResult struct {
	Imported int
	Identity string
}

// MigrationService performs the one-time bulk import of pre-existing gateway
// credentials into local ownership records, assigned to the oldest-created
// admin identity.
type MigrationService struct {
	keys       driven.APIKeyStore
	identities driven.IdentityStore
	state      driven.MigrationStateStore
	gateway    driven.GatewayClient // may be nil when unconfigured
	sync       *SyncService
	logger     *slog.Logger
}

// NewMigrationService creates a MigrationService.
func NewMigrationService(
	keys driven.APIKeyStore,
	identities driven.IdentityStore,
	state driven.MigrationStateStore,
	gateway driven.GatewayClient,
	sync *SyncService,
	logger *slog.Logger,
) *MigrationService {
	return &MigrationService{
		keys:       keys,
		identities: identities,
		state:      state,
		gateway:    gateway,
		sync:       sync,
		logger:     logger,
	}
}

// Run imports the gateway's current credential set. The idempotency gate is
// the presence of any local key record: once one exists, Run aborts with
// ErrAlreadyMigrated before touching anything. The import itself happens in
// one store transaction; the confirmation push afterwards is best-effort
// because the committed local records are already the source of truth.
func (s *MigrationService) Run(ctx context.Context) (*MigrationResult, error) {
	if s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}

	count, err := s.keys.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count local keys: %w", err)
	}
	if count > 0 {
		return nil, ErrAlreadyMigrated
	}

	remote, err := s.gateway.FetchKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	admin, err := s.identities.OldestAdmin(ctx)
	if err != nil {
		return nil, fmt.Errorf("find admin identity: %w", err)
	}
	if admin == nil {
		return nil, ErrNoEligibleIdentity
	}

	imported, err := s.keys.ImportBatch(ctx, admin.ID, remote)
	if err != nil {
		return nil, fmt.Errorf("import keys: %w", err)
	}

	if err := s.state.Record(ctx, model.MigrationState{
		LastRunAt:     time.Now().UTC(),
		Outcome:       model.MigrationCompleted,
		ImportedCount: imported,
	}); err != nil {
		// The import is committed; a missing audit row is not worth failing over.
		s.logger.Warn("recording migration state failed", "error", err)
	}

	s.logger.Info("migration complete",
		"imported", imported,
		"identity", admin.Username,
	)

	if result := s.sync.Push(ctx); !result.Synced {
		s.logger.Warn("confirmation push after migration failed", "detail", result.Detail)
	}

	return &MigrationResult{Imported: imported, Identity: admin.Username}, nil
}
