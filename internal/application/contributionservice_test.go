package application_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanrudell/relaypanel/internal/application"
	"github.com/evanrudell/relaypanel/internal/domain/model"
	"github.com/evanrudell/relaypanel/internal/domain/port/driven"
)

const validSecret = "sk-0123456789abcdef0123456789abcdef0123456789abcdef"

type contributionFixture struct {
	keys     *fakeKeyStore
	accounts *fakeAccountStore
	gateway  *fakeGateway
	verifier *fakeVerifier
	svc      *application.ContributionService
}

func newContributionFixture(t *testing.T, maxKeys int) *contributionFixture {
	t.Helper()

	f := &contributionFixture{
		keys:     newFakeKeyStore(),
		accounts: newFakeAccountStore(),
		gateway:  &fakeGateway{},
	}
	sync := application.NewSyncServiceWithTimer(f.keys, f.gateway, slog.Default(), newFakeTimer())
	f.svc = application.NewContributionService(f.keys, f.accounts, f.gateway, nil, sync, maxKeys, slog.Default())
	return f
}

func TestContributionService_ContributeKey_Supplied(t *testing.T) {
	f := newContributionFixture(t, 5)

	contribution, err := f.svc.ContributeKey(context.Background(), 1, validSecret, "build server")
	require.NoError(t, err)

	assert.NotZero(t, contribution.KeyID)
	assert.Equal(t, "build server", contribution.Name)
	// The caller already holds the secret; it is not echoed back.
	assert.Empty(t, contribution.Secret)
	assert.Equal(t, model.HashSecret(validSecret), contribution.KeyHash)
	assert.Equal(t, "sk-...cdef", contribution.KeyMask)
	assert.Empty(t, contribution.SyncWarning)

	// The write reached the gateway as a full-set push.
	calls := f.gateway.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{validSecret}, calls[0])
}

func TestContributionService_ContributeKey_Generated(t *testing.T) {
	f := newContributionFixture(t, 5)

	contribution, err := f.svc.ContributeKey(context.Background(), 1, "", "generated")
	require.NoError(t, err)

	// A generated secret is returned exactly once.
	assert.True(t, model.ValidAPIKeySecret(contribution.Secret))
	assert.True(t, strings.HasPrefix(contribution.Secret, "sk-"))
	assert.Equal(t, model.HashSecret(contribution.Secret), contribution.KeyHash)
}

func TestContributionService_ContributeKey_InvalidFormat(t *testing.T) {
	f := newContributionFixture(t, 5)

	_, err := f.svc.ContributeKey(context.Background(), 1, "sk-SHOUTING", "bad")
	assert.ErrorIs(t, err, application.ErrInvalidKeySecret)

	count, _ := f.keys.Count(context.Background())
	assert.Zero(t, count)
	assert.Empty(t, f.gateway.calls())
}

func TestContributionService_ContributeKey_DuplicateAtGateway(t *testing.T) {
	f := newContributionFixture(t, 5)
	f.gateway.fetchKeys = []string{validSecret}

	_, err := f.svc.ContributeKey(context.Background(), 1, validSecret, "dupe")
	assert.ErrorIs(t, err, application.ErrKeyAlreadyContributed)

	// Nothing was written locally and nothing was pushed.
	count, _ := f.keys.Count(context.Background())
	assert.Zero(t, count)
	assert.Empty(t, f.gateway.calls())
}

func TestContributionService_ContributeKey_DuplicateLocally(t *testing.T) {
	f := newContributionFixture(t, 5)
	ctx := context.Background()

	_, err := f.svc.ContributeKey(ctx, 1, validSecret, "first")
	require.NoError(t, err)

	// Identity does not matter; secrets are globally unique.
	_, err = f.svc.ContributeKey(ctx, 2, validSecret, "second")
	assert.ErrorIs(t, err, application.ErrKeyAlreadyContributed)

	count, _ := f.keys.Count(ctx)
	assert.Equal(t, 1, count)
}

func TestContributionService_ContributeKey_LimitReached(t *testing.T) {
	f := newContributionFixture(t, 1)
	ctx := context.Background()

	_, err := f.svc.ContributeKey(ctx, 1, "", "first")
	require.NoError(t, err)

	_, err = f.svc.ContributeKey(ctx, 1, "", "second")
	assert.ErrorIs(t, err, application.ErrKeyLimitReached)

	// Another identity is not affected by the first one's cap.
	_, err = f.svc.ContributeKey(ctx, 2, "", "other")
	require.NoError(t, err)
}

func TestContributionService_ContributeKey_GatewayFetchFails(t *testing.T) {
	f := newContributionFixture(t, 5)
	f.gateway.fetchErr = errors.New("timeout")

	// The pre-write duplicate check failing is a hard failure: without the
	// remote set the duplicate guarantee cannot be given.
	_, err := f.svc.ContributeKey(context.Background(), 1, validSecret, "k")
	assert.ErrorIs(t, err, application.ErrGatewayUnavailable)

	count, _ := f.keys.Count(context.Background())
	assert.Zero(t, count)
}

func TestContributionService_ContributeKey_PushFailureKeepsLocalWrite(t *testing.T) {
	f := newContributionFixture(t, 5)
	f.gateway.replaceErrs = []error{
		errors.New("down"), errors.New("down"), errors.New("down"), errors.New("down"),
	}

	contribution, err := f.svc.ContributeKey(context.Background(), 1, validSecret, "k")
	require.NoError(t, err)

	// Local write survives; the failed push is a warning, not a rollback.
	assert.NotEmpty(t, contribution.SyncWarning)
	assert.Contains(t, contribution.SyncWarning, "gateway sync failed")

	stored, err := f.keys.GetBySecret(context.Background(), validSecret)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestContributionService_ContributeOAuthAccount(t *testing.T) {
	f := newContributionFixture(t, 5)

	contribution, err := f.svc.ContributeOAuthAccount(context.Background(), 1, model.ProviderGitHub, "octocat", "octo@example.com")
	require.NoError(t, err)

	assert.NotZero(t, contribution.Account.ID)
	assert.Equal(t, "octocat", contribution.Account.AccountName)
	assert.Len(t, f.gateway.calls(), 1)
}

func TestContributionService_ContributeOAuthAccount_UnknownProvider(t *testing.T) {
	f := newContributionFixture(t, 5)

	_, err := f.svc.ContributeOAuthAccount(context.Background(), 1, model.OAuthProvider("gitlab"), "x", "")
	assert.ErrorIs(t, err, application.ErrUnknownProvider)
}

func TestContributionService_ContributeOAuthAccount_Duplicate(t *testing.T) {
	f := newContributionFixture(t, 5)
	ctx := context.Background()

	_, err := f.svc.ContributeOAuthAccount(ctx, 1, model.ProviderGitHub, "octocat", "")
	require.NoError(t, err)

	_, err = f.svc.ContributeOAuthAccount(ctx, 2, model.ProviderGitHub, "octocat", "")
	assert.ErrorIs(t, err, driven.ErrDuplicateAccount)
}

func TestContributionService_ContributeOAuthAccount_Verified(t *testing.T) {
	f := newContributionFixture(t, 5)
	f.verifier = &fakeVerifier{
		provider: model.ProviderGitHub,
		account:  &driven.VerifiedAccount{Login: "octocat", Email: "octo@example.com"},
	}
	sync := application.NewSyncServiceWithTimer(f.keys, f.gateway, slog.Default(), newFakeTimer())
	svc := application.NewContributionService(f.keys, f.accounts, f.gateway, f.verifier, sync, 5, slog.Default())

	contribution, err := svc.ContributeOAuthAccount(context.Background(), 1, model.ProviderGitHub, "OctoCat", "")
	require.NoError(t, err)

	// Canonical login wins and the missing email is backfilled.
	assert.Equal(t, "octocat", contribution.Account.AccountName)
	assert.Equal(t, "octo@example.com", contribution.Account.Email)
	assert.Equal(t, []string{"OctoCat"}, f.verifier.lookups)
}

func TestContributionService_ContributeOAuthAccount_VerifierNotFound(t *testing.T) {
	f := newContributionFixture(t, 5)
	verifier := &fakeVerifier{provider: model.ProviderGitHub, lookupErr: driven.ErrExternalAccountNotFound}
	sync := application.NewSyncServiceWithTimer(f.keys, f.gateway, slog.Default(), newFakeTimer())
	svc := application.NewContributionService(f.keys, f.accounts, f.gateway, verifier, sync, 5, slog.Default())

	_, err := svc.ContributeOAuthAccount(context.Background(), 1, model.ProviderGitHub, "ghost", "")
	assert.ErrorIs(t, err, driven.ErrExternalAccountNotFound)
}

func TestContributionService_ContributeOAuthAccount_VerifierUnavailable(t *testing.T) {
	f := newContributionFixture(t, 5)
	verifier := &fakeVerifier{provider: model.ProviderGitHub, lookupErr: errors.New("rate limited")}
	sync := application.NewSyncServiceWithTimer(f.keys, f.gateway, slog.Default(), newFakeTimer())
	svc := application.NewContributionService(f.keys, f.accounts, f.gateway, verifier, sync, 5, slog.Default())

	_, err := svc.ContributeOAuthAccount(context.Background(), 1, model.ProviderGitHub, "octocat", "")
	assert.ErrorIs(t, err, application.ErrProviderUnavailable)
}

func TestContributionService_RemoveKey(t *testing.T) {
	f := newContributionFixture(t, 5)
	ctx := context.Background()

	contribution, err := f.svc.ContributeKey(ctx, 1, validSecret, "k")
	require.NoError(t, err)

	removal, err := f.svc.RemoveKey(ctx, 1, false, contribution.KeyID)
	require.NoError(t, err)
	assert.Empty(t, removal.SyncWarning)

	// The removal push carries the now-empty set.
	calls := f.gateway.calls()
	require.Len(t, calls, 2)
	assert.Empty(t, calls[1])

	stored, err := f.keys.GetByID(ctx, contribution.KeyID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestContributionService_RemoveKey_AccessDenied(t *testing.T) {
	f := newContributionFixture(t, 5)
	ctx := context.Background()

	contribution, err := f.svc.ContributeKey(ctx, 1, validSecret, "k")
	require.NoError(t, err)

	_, err = f.svc.RemoveKey(ctx, 2, false, contribution.KeyID)
	assert.ErrorIs(t, err, application.ErrAccessDenied)

	// A privileged caller may remove anyone's key.
	_, err = f.svc.RemoveKey(ctx, 2, true, contribution.KeyID)
	require.NoError(t, err)
}

func TestContributionService_RemoveKey_NotFound(t *testing.T) {
	f := newContributionFixture(t, 5)

	_, err := f.svc.RemoveKey(context.Background(), 1, false, 999)
	assert.ErrorIs(t, err, driven.ErrKeyNotFound)
}

func TestContributionService_RemoveOAuthAccount(t *testing.T) {
	f := newContributionFixture(t, 5)
	ctx := context.Background()

	_, err := f.svc.ContributeOAuthAccount(ctx, 1, model.ProviderGitHub, "octocat", "")
	require.NoError(t, err)

	_, err = f.svc.RemoveOAuthAccount(ctx, 2, false, model.ProviderGitHub, "octocat")
	assert.ErrorIs(t, err, application.ErrAccessDenied)

	_, err = f.svc.RemoveOAuthAccount(ctx, 1, false, model.ProviderGitHub, "octocat")
	require.NoError(t, err)

	_, err = f.svc.RemoveOAuthAccount(ctx, 1, false, model.ProviderGitHub, "octocat")
	assert.ErrorIs(t, err, driven.ErrAccountNotFound)
}
