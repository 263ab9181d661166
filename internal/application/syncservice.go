package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/evanrudell/relaypanel/internal/domain/port/driven"
)

// Sentinel errors shared by the gateway-facing services.
var (
	// ErrGatewayNotConfigured indicates the management gateway URL or secret
	// is absent from deployment configuration. Not retried: retrying cannot
	// fix a missing setting.
	ErrGatewayNotConfigured = errors.New("management gateway not configured")

	// ErrGatewayUnavailable indicates the gateway could not be reached or
	// answered with a non-success status.
	ErrGatewayUnavailable = errors.New("management gateway unavailable")
)

// maxPushRetries bounds the sync engine's retry loop: one initial attempt
// plus up to three retries with 1s, 2s, 4s waits.
const maxPushRetries = 3

// PushResult is the outcome of a sync push. Push never raises to its
// caller; failures are carried here.
type PushResult struct {
	Synced   bool   `json:"synced"`
	Count    int    `json:"count"`
	Attempts int    `json:"attempts"`
	Detail   string `json:"detail,omitempty"`
}

// SyncService pushes the full local credential set to the gateway. Because
// the remote call is a full replace, overlapping pushes converge to the same
// remote state; the only hazard is ordinary read skew between the local read
// and the remote write, which is acceptable.
type SyncService struct {
	keys    driven.APIKeyStore
	gateway driven.GatewayClient // may be nil when unconfigured
	logger  *slog.Logger
	timer   backoff.Timer // nil outside tests; default timer sleeps for real
}

// NewSyncService creates a SyncService. gateway may be nil when the
// deployment has no management gateway configured; Push then reports a
// failed result without attempting anything.
func NewSyncService(keys driven.APIKeyStore, gateway driven.GatewayClient, logger *slog.Logger) *SyncService {
	return &SyncService{
		keys:    keys,
		gateway: gateway,
		logger:  logger,
	}
}

// NewSyncServiceWithTimer creates a SyncService with an injected backoff
// timer. Intended for tests that assert the retry schedule without sleeping.
func NewSyncServiceWithTimer(keys driven.APIKeyStore, gateway driven.GatewayClient, logger *slog.Logger, timer backoff.Timer) *SyncService {
	return &SyncService{
		keys:    keys,
		gateway: gateway,
		logger:  logger,
		timer:   timer,
	}
}

// Push reads the full local credential set and replaces the gateway's set
// with it, retrying on failure with 1s, 2s, 4s waits. The retry waits block
// the calling request (worst case ~7s). Push never returns an error; every
// outcome is a PushResult, and every attempt is logged.
func (s *SyncService) Push(ctx context.Context) PushResult {
	if s.gateway == nil {
		return PushResult{Detail: ErrGatewayNotConfigured.Error()}
	}

	secrets, err := s.keys.ListAllSecrets(ctx)
	if err != nil {
		s.logger.Error("sync push aborted: reading local key set failed", "error", err)
		return PushResult{Detail: fmt.Sprintf("read local key set: %v", err)}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxInterval = 4 * time.Second
	policy.MaxElapsedTime = 0

	attempts := 0
	operation := func() error {
		attempts++
		if err := s.gateway.ReplaceKeys(ctx, secrets); err != nil {
			s.logger.Warn("sync push attempt failed",
				"attempt", attempts,
				"count", len(secrets),
				"error", err,
			)
			return err
		}
		s.logger.Info("sync push attempt succeeded", "attempt", attempts, "count", len(secrets))
		return nil
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Info("sync push retrying", "wait", wait)
	}

	// Deliberately not bound to ctx: an abandoned request does not stop an
	// in-flight retry loop.
	err = backoff.RetryNotifyWithTimer(operation, backoff.WithMaxRetries(policy, maxPushRetries), notify, s.timer)
	if err != nil {
		return PushResult{
			Attempts: attempts,
			Detail:   fmt.Sprintf("%v: %v", ErrGatewayUnavailable, err),
		}
	}

	return PushResult{
		Synced:   true,
		Count:    len(secrets),
		Attempts: attempts,
	}
}
