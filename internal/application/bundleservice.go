package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/evanrudell/relaypanel/internal/domain/model"
	"github.com/evanrudell/relaypanel/internal/domain/port/driven"
)

// BundleService assembles versioned configuration bundles for pull clients.
// The version is a digest of the bundle's stable content: unchanged
// configuration yields an identical version token, so clients poll the
// cheap version endpoint and fetch the full bundle only on change.
type BundleService struct {
	keys       driven.APIKeyStore
	accounts   driven.OAuthAccountStore
	subs       driven.SubscriptionStore
	gatewayURL string
	logger     *slog.Logger
}

// NewBundleService creates a BundleService. gatewayURL is embedded in the
// payload so pull clients know where to send traffic.
func NewBundleService(
	keys driven.APIKeyStore,
	accounts driven.OAuthAccountStore,
	subs driven.SubscriptionStore,
	gatewayURL string,
	logger *slog.Logger,
) *BundleService {
	return &BundleService{
		keys:       keys,
		accounts:   accounts,
		subs:       subs,
		gatewayURL: gatewayURL,
		logger:     logger,
	}
}

// Version returns only the version token for the identity's current
// configuration, without touching subscription state.
func (s *BundleService) Version(ctx context.Context, identityID int64, scopedKeyID *int64) (string, error) {
	bundle, err := s.assemble(ctx, identityID, scopedKeyID)
	if err != nil {
		return "", err
	}
	return bundle.Version, nil
}

// Generate returns the full bundle and marks the identity's subscription as
// synced. The subscription update is best-effort: its failure is logged and
// the bundle is served anyway.
func (s *BundleService) Generate(ctx context.Context, identityID int64, scopedKeyID *int64) (*model.ConfigBundle, error) {
	bundle, err := s.assemble(ctx, identityID, scopedKeyID)
	if err != nil {
		return nil, err
	}
	bundle.GeneratedAt = time.Now().UTC()

	if err := s.subs.MarkSynced(ctx, identityID, bundle.GeneratedAt); err != nil {
		s.logger.Warn("marking subscription synced failed", "identity_id", identityID, "error", err)
	}

	return bundle, nil
}

// assemble builds the bundle content and its version. When scopedKeyID is
// set (a key-scoped sync token), only that key is included -- and none at
// all if the key has since been deleted or belongs to another identity.
func (s *BundleService) assemble(ctx context.Context, identityID int64, scopedKeyID *int64) (*model.ConfigBundle, error) {
	var keys []model.APIKey

	if scopedKeyID != nil {
		key, err := s.keys.GetByID(ctx, *scopedKeyID)
		if err != nil {
			return nil, err
		}
		if key != nil && key.IdentityID == identityID {
			keys = []model.APIKey{*key}
		}
	} else {
		var err error
		keys, err = s.keys.ListByIdentity(ctx, identityID)
		if err != nil {
			return nil, err
		}
	}

	accounts, err := s.accounts.ListByIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}

	bundleKeys := make([]model.BundleKey, 0, len(keys))
	for _, key := range keys {
		bundleKeys = append(bundleKeys, model.BundleKey{
			ID:     key.ID,
			Name:   key.Name,
			Secret: key.Secret,
		})
	}
	sort.Slice(bundleKeys, func(i, j int) bool { return bundleKeys[i].ID < bundleKeys[j].ID })

	bundleAccounts := make([]model.BundleAccount, 0, len(accounts))
	for _, account := range accounts {
		bundleAccounts = append(bundleAccounts, model.BundleAccount{
			Provider:    account.Provider,
			AccountName: account.AccountName,
			Email:       account.Email,
		})
	}
	sort.Slice(bundleAccounts, func(i, j int) bool {
		if bundleAccounts[i].Provider != bundleAccounts[j].Provider {
			return bundleAccounts[i].Provider < bundleAccounts[j].Provider
		}
		return bundleAccounts[i].AccountName < bundleAccounts[j].AccountName
	})

	bundle := &model.ConfigBundle{
		GatewayURL: s.gatewayURL,
		Keys:       bundleKeys,
		Accounts:   bundleAccounts,
	}

	version, err := fingerprint(bundle)
	if err != nil {
		return nil, err
	}
	bundle.Version = version

	return bundle, nil
}

// bundleFingerprint is the canonical, volatile-field-free serialization the
// version digest is computed over. Timestamps are deliberately excluded.
type bundleFingerprint struct {
	GatewayURL string                `json:"gateway_url"`
	Keys       []model.BundleKey     `json:"keys"`
	Accounts   []model.BundleAccount `json:"accounts"`
}

func fingerprint(bundle *model.ConfigBundle) (string, error) {
	data, err := json.Marshal(bundleFingerprint{
		GatewayURL: bundle.GatewayURL,
		Keys:       bundle.Keys,
		Accounts:   bundle.Accounts,
	})
	if err != nil {
		return "", fmt.Errorf("fingerprint bundle: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
