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

// Sentinel errors returned by ContributionService operations.
var (
	// ErrKeyAlreadyContributed indicates the secret is already registered
	// locally or at the gateway.
	ErrKeyAlreadyContributed = errors.New("api key already contributed")

	// ErrKeyLimitReached indicates the identity is at its key cap.
	ErrKeyLimitReached = errors.New("api key limit reached")

	// ErrInvalidKeySecret indicates a malformed user-supplied key secret.
	ErrInvalidKeySecret = errors.New("invalid api key secret format")

	// ErrUnknownProvider indicates an unrecognized OAuth provider value.
	ErrUnknownProvider = errors.New("unknown oauth provider")

	// ErrProviderUnavailable indicates the external provider could not be
	// consulted to verify an account.
	ErrProviderUnavailable = errors.New("oauth provider unavailable")

	// ErrAccessDenied indicates a non-privileged caller tried to remove a
	// record owned by another identity.
	ErrAccessDenied = errors.New("access denied")
)

// KeyContribution is the outcome of a successful key contribution.
// Secret is set only when the service generated the secret; callers who
// supplied their own already hold it. SyncWarning is non-empty when the
// local write succeeded but the gateway push did not.
type KeyContribution struct {
	KeyID       int64
	Name        string
	Secret      string
	KeyHash     string
	KeyMask     string
	SyncWarning string
}

// AccountContribution is the outcome of a successful OAuth account link.
type AccountContribution struct {
	Account     model.OAuthAccount
	SyncWarning string
}

// Removal is the outcome of a successful key or account removal.
type Removal struct {
	SyncWarning string
}

// ContributionService implements the per-identity dual-write operations:
// every durable local write happens first, then the gateway is notified via
// a sync push. A failed push never rolls back the local write -- the local
// store is the source of truth, and a later reconciliation or sync pass
// closes the gap. Push failures surface as SyncWarning, not as errors.
type ContributionService struct {
	keys     driven.APIKeyStore
	accounts driven.OAuthAccountStore
	gateway  driven.GatewayClient   // may be nil when unconfigured
	verifier driven.AccountVerifier // may be nil when no provider credentials
	sync     *SyncService
	maxKeys  int
	logger   *slog.Logger
}

// NewContributionService creates a ContributionService. gateway and verifier
// may be nil; the duplicate pre-check and account verification are then
// skipped and the local store alone arbitrates.
func NewContributionService(
	keys driven.APIKeyStore,
	accounts driven.OAuthAccountStore,
	gateway driven.GatewayClient,
	verifier driven.AccountVerifier,
	sync *SyncService,
	maxKeys int,
	logger *slog.Logger,
) *ContributionService {
	return &ContributionService{
		keys:     keys,
		accounts: accounts,
		gateway:  gateway,
		verifier: verifier,
		sync:     sync,
		maxKeys:  maxKeys,
		logger:   logger,
	}
}

// ContributeKey registers a key secret for the identity. An empty secret
// asks the service to generate one. The gateway's current set is consulted
// before writing (a fetch failure there is a hard, pre-write failure); the
// store's UNIQUE constraint remains the final arbiter for concurrent
// contributions of the same secret.
func (s *ContributionService) ContributeKey(ctx context.Context, identityID int64, secret, name string) (*KeyContribution, error) {
	generated := false
	if secret == "" {
		var err error
		secret, err = model.NewAPIKeySecret()
		if err != nil {
			return nil, err
		}
		generated = true
	} else if !model.ValidAPIKeySecret(secret) {
		return nil, ErrInvalidKeySecret
	}

	if s.gateway != nil {
		remote, err := s.gateway.FetchKeys(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		for _, existing := range remote {
			if existing == secret {
				return nil, ErrKeyAlreadyContributed
			}
		}
	}

	existing, err := s.keys.GetBySecret(ctx, secret)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrKeyAlreadyContributed
	}

	count, err := s.keys.CountByIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if count >= s.maxKeys {
		return nil, ErrKeyLimitReached
	}

	keyID, err := s.keys.Create(ctx, model.APIKey{
		IdentityID: identityID,
		Secret:     secret,
		Name:       name,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, driven.ErrDuplicateKey) {
			return nil, ErrKeyAlreadyContributed
		}
		return nil, err
	}

	contribution := &KeyContribution{
		KeyID:   keyID,
		Name:    name,
		KeyHash: model.HashSecret(secret),
		KeyMask: model.MaskSecret(secret),
	}
	if generated {
		contribution.Secret = secret
	}
	contribution.SyncWarning = s.pushAfterWrite(ctx, "contribute key", "key_id", keyID)

	return contribution, nil
}

// ContributeOAuthAccount links an external account to the identity. When a
// verifier is wired for the provider, the account is resolved first: the
// canonical login replaces the submitted name and a missing email is
// backfilled from the provider's public record.
func (s *ContributionService) ContributeOAuthAccount(ctx context.Context, identityID int64, provider model.OAuthProvider, accountName, email string) (*AccountContribution, error) {
	if !provider.Valid() {
		return nil, ErrUnknownProvider
	}

	if s.verifier != nil && s.verifier.Supports(provider) {
		verified, err := s.verifier.Lookup(ctx, accountName)
		if err != nil {
			if errors.Is(err, driven.ErrExternalAccountNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		accountName = verified.Login
		if email == "" {
			email = verified.Email
		}
	}

	account := model.OAuthAccount{
		IdentityID:  identityID,
		Provider:    provider,
		AccountName: accountName,
		Email:       email,
		CreatedAt:   time.Now().UTC(),
	}

	accountID, err := s.accounts.Create(ctx, account)
	if err != nil {
		return nil, err
	}
	account.ID = accountID

	warning := s.pushAfterWrite(ctx, "contribute oauth account", "account", accountName)

	return &AccountContribution{Account: account, SyncWarning: warning}, nil
}

// RemoveOAuthAccount deletes an ownership record. A privileged caller may
// remove any identity's record; others may remove only their own.
func (s *ContributionService) RemoveOAuthAccount(ctx context.Context, requestingIdentity int64, privileged bool, provider model.OAuthProvider, accountName string) (*Removal, error) {
	record, err := s.accounts.Get(ctx, provider, accountName)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, driven.ErrAccountNotFound
	}

	if !privileged && record.IdentityID != requestingIdentity {
		return nil, ErrAccessDenied
	}

	if err := s.accounts.Delete(ctx, provider, accountName); err != nil {
		return nil, err
	}

	warning := s.pushAfterWrite(ctx, "remove oauth account", "account", accountName)

	return &Removal{SyncWarning: warning}, nil
}

// RemoveKey deletes an API key. A privileged caller may remove any
// identity's key; others may remove only their own.
func (s *ContributionService) RemoveKey(ctx context.Context, requestingIdentity int64, privileged bool, keyID int64) (*Removal, error) {
	key, err := s.keys.GetByID(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, driven.ErrKeyNotFound
	}

	if !privileged && key.IdentityID != requestingIdentity {
		return nil, ErrAccessDenied
	}

	if err := s.keys.Delete(ctx, keyID); err != nil {
		return nil, err
	}

	warning := s.pushAfterWrite(ctx, "remove key", "key_id", keyID)

	return &Removal{SyncWarning: warning}, nil
}

// pushAfterWrite notifies the gateway after a committed local write and
// converts a failed push into a logged warning string.
func (s *ContributionService) pushAfterWrite(ctx context.Context, op string, logKey string, logVal any) string {
	result := s.sync.Push(ctx)
	if result.Synced {
		return ""
	}

	s.logger.Warn("gateway push failed after local write",
		"operation", op,
		logKey, logVal,
		"detail", result.Detail,
	)

	return fmt.Sprintf("local change saved, but gateway sync failed: %s", result.Detail)
}
