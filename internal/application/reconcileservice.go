package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/evanrudell/relaypanel/internal/domain/port/driven"
)

// CheckResult is the outcome of a reconciliation check. Divergence is not an
// error: Missing and Extra carry the two sides of the diff and InSync is
// true only when both are empty.
type CheckResult struct {
	InSync     bool     `json:"in_sync"`
	LocalCount int      `json:"local_count"`
	Missing    []string `json:"missing"` // Local secrets absent from the gateway.
	Extra      []string `json:"extra"`   // Gateway secrets owned by no local identity.
}

// ReconcileService compares local and remote credential sets without
// mutating either side. Detection and repair are deliberately separate:
// a check can run on any schedule, and repair is always an explicit
// SyncService.Push.
//
// Missing is computed against the identity's own keys. Extra is computed
// against the global local set, not the identity's: the gateway does not
// track per-identity ownership, so scoping "extra" to one identity would
// flag every other identity's keys as strays.
type ReconcileService struct {
	keys    driven.APIKeyStore
	gateway driven.GatewayClient // may be nil when unconfigured
	logger  *slog.Logger
}

// NewReconcileService creates a ReconcileService.
func NewReconcileService(keys driven.APIKeyStore, gateway driven.GatewayClient, logger *slog.Logger) *ReconcileService {
	return &ReconcileService{
		keys:    keys,
		gateway: gateway,
		logger:  logger,
	}
}

// Check diffs the identity's local credential set against the gateway's
// full set. It performs reads only, on both sides, regardless of outcome.
func (s *ReconcileService) Check(ctx context.Context, identityID int64) (CheckResult, error) {
	if s.gateway == nil {
		return CheckResult{}, ErrGatewayNotConfigured
	}

	local, err := s.keys.ListByIdentity(ctx, identityID)
	if err != nil {
		return CheckResult{}, fmt.Errorf("read local key set: %w", err)
	}

	allSecrets, err := s.keys.ListAllSecrets(ctx)
	if err != nil {
		return CheckResult{}, fmt.Errorf("read local key set: %w", err)
	}

	remote, err := s.gateway.FetchKeys(ctx)
	if err != nil {
		return CheckResult{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	remoteSet := make(map[string]struct{}, len(remote))
	for _, secret := range remote {
		remoteSet[secret] = struct{}{}
	}

	anyLocal := make(map[string]struct{}, len(allSecrets))
	for _, secret := range allSecrets {
		anyLocal[secret] = struct{}{}
	}

	missing := []string{}
	for _, key := range local {
		if _, ok := remoteSet[key.Secret]; !ok {
			missing = append(missing, key.Secret)
		}
	}

	extra := []string{}
	for _, secret := range remote {
		if _, ok := anyLocal[secret]; !ok {
			extra = append(extra, secret)
		}
	}

	sort.Strings(missing)
	sort.Strings(extra)

	result := CheckResult{
		InSync:     len(missing) == 0 && len(extra) == 0,
		LocalCount: len(local),
		Missing:    missing,
		Extra:      extra,
	}

	if !result.InSync {
		s.logger.Warn("reconciliation check found divergence",
			"identity_id", identityID,
			"missing", len(missing),
			"extra", len(extra),
		)
	}

	return result, nil
}
