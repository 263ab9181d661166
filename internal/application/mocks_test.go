package application_test

import (
	"context"
	"sync"
	"time"

	"github.com/evanrudell/relaypanel/internal/domain/model"
	"github.com/evanrudell/relaypanel/internal/domain/port/driven"
)

// fakeKeyStore is an in-memory APIKeyStore.
type fakeKeyStore struct {
	mu      sync.Mutex
	nextID  int64
	keys    map[int64]model.APIKey
	listErr error
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{keys: make(map[int64]model.APIKey)}
}

func (s *fakeKeyStore) Create(_ context.Context, key model.APIKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.keys {
		if existing.Secret == key.Secret {
			return 0, driven.ErrDuplicateKey
		}
	}

	s.nextID++
	key.ID = s.nextID
	s.keys[key.ID] = key
	return key.ID, nil
}

func (s *fakeKeyStore) GetByID(_ context.Context, id int64) (*model.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[id]
	if !ok {
		return nil, nil
	}
	return &key, nil
}

func (s *fakeKeyStore) GetBySecret(_ context.Context, secret string) (*model.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.keys {
		if key.Secret == secret {
			key := key
			return &key, nil
		}
	}
	return nil, nil
}

func (s *fakeKeyStore) ListByIdentity(_ context.Context, identityID int64) ([]model.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.APIKey
	for _, key := range s.keys {
		if key.IdentityID == identityID {
			out = append(out, key)
		}
	}
	return out, nil
}

func (s *fakeKeyStore) ListAllSecrets(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}

	var out []string
	for id := int64(1); id <= s.nextID; id++ {
		if key, ok := s.keys[id]; ok {
			out = append(out, key.Secret)
		}
	}
	return out, nil
}

func (s *fakeKeyStore) CountByIdentity(_ context.Context, identityID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, key := range s.keys {
		if key.IdentityID == identityID {
			count++
		}
	}
	return count, nil
}

func (s *fakeKeyStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys), nil
}

func (s *fakeKeyStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[id]; !ok {
		return driven.ErrKeyNotFound
	}
	delete(s.keys, id)
	return nil
}

func (s *fakeKeyStore) ImportBatch(_ context.Context, identityID int64, secrets []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	imported := 0
	for _, secret := range secrets {
		exists := false
		for _, key := range s.keys {
			if key.Secret == secret {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		s.nextID++
		s.keys[s.nextID] = model.APIKey{ID: s.nextID, IdentityID: identityID, Secret: secret}
		imported++
	}
	return imported, nil
}

// fakeGateway is a scriptable GatewayClient. replaceErrs is consumed one
// error per ReplaceKeys call; once drained, calls succeed.
type fakeGateway struct {
	mu           sync.Mutex
	fetchKeys    []string
	fetchErr     error
	replaceErrs  []error
	replaceCalls [][]string
}

func (g *fakeGateway) FetchKeys(context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return append([]string(nil), g.fetchKeys...), nil
}

func (g *fakeGateway) ReplaceKeys(_ context.Context, keys []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.replaceCalls = append(g.replaceCalls, append([]string(nil), keys...))
	if len(g.replaceErrs) > 0 {
		err := g.replaceErrs[0]
		g.replaceErrs = g.replaceErrs[1:]
		return err
	}
	return nil
}

func (g *fakeGateway) calls() [][]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]string(nil), g.replaceCalls...)
}

// fakeTimer satisfies backoff.Timer and fires immediately while recording
// every requested wait, so retry-schedule tests run without sleeping.
type fakeTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	ch    chan time.Time
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{ch: make(chan time.Time, 1)}
}

func (t *fakeTimer) Start(duration time.Duration) {
	t.mu.Lock()
	t.waits = append(t.waits, duration)
	t.mu.Unlock()
	t.ch <- time.Now()
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) recorded() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.waits...)
}

// fakeTokenStore is an in-memory SyncTokenStore with touch instrumentation.
type fakeTokenStore struct {
	mu      sync.Mutex
	tokens  map[string]model.SyncToken
	touches []string
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[string]model.SyncToken)}
}

func (s *fakeTokenStore) Create(_ context.Context, token model.SyncToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.ID] = token
	return nil
}

func (s *fakeTokenStore) GetByID(_ context.Context, id string) (*model.SyncToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[id]
	if !ok {
		return nil, nil
	}
	return &token, nil
}

func (s *fakeTokenStore) GetBySecretHash(_ context.Context, secretHash string) (*model.SyncToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, token := range s.tokens {
		if token.SecretHash == secretHash && token.RevokedAt == nil {
			token := token
			return &token, nil
		}
	}
	return nil, nil
}

func (s *fakeTokenStore) ListByIdentity(_ context.Context, identityID int64) ([]model.SyncToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.SyncToken
	for _, token := range s.tokens {
		if token.IdentityID == identityID {
			out = append(out, token)
		}
	}
	return out, nil
}

func (s *fakeTokenStore) Touch(_ context.Context, id string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[id]
	if !ok {
		return driven.ErrTokenNotFound
	}
	token.LastUsedAt = &usedAt
	s.tokens[id] = token
	s.touches = append(s.touches, id)
	return nil
}

func (s *fakeTokenStore) Revoke(_ context.Context, id string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[id]
	if !ok {
		return driven.ErrTokenNotFound
	}
	if token.RevokedAt == nil {
		token.RevokedAt = &revokedAt
		s.tokens[id] = token
	}
	return nil
}

func (s *fakeTokenStore) touchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.touches)
}

// fakeAccountStore is an in-memory OAuthAccountStore.
type fakeAccountStore struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[string]model.OAuthAccount // keyed by provider/name
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{accounts: make(map[string]model.OAuthAccount)}
}

func accountKey(provider model.OAuthProvider, name string) string {
	return string(provider) + "/" + name
}

func (s *fakeAccountStore) Create(_ context.Context, account model.OAuthAccount) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := accountKey(account.Provider, account.AccountName)
	if _, ok := s.accounts[key]; ok {
		return 0, driven.ErrDuplicateAccount
	}

	s.nextID++
	account.ID = s.nextID
	s.accounts[key] = account
	return account.ID, nil
}

func (s *fakeAccountStore) Get(_ context.Context, provider model.OAuthProvider, accountName string) (*model.OAuthAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountKey(provider, accountName)]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

func (s *fakeAccountStore) ListByIdentity(_ context.Context, identityID int64) ([]model.OAuthAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.OAuthAccount
	for _, account := range s.accounts {
		if account.IdentityID == identityID {
			out = append(out, account)
		}
	}
	return out, nil
}

func (s *fakeAccountStore) Delete(_ context.Context, provider model.OAuthProvider, accountName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := accountKey(provider, accountName)
	if _, ok := s.accounts[key]; !ok {
		return driven.ErrAccountNotFound
	}
	delete(s.accounts, key)
	return nil
}

// fakeIdentityStore is an in-memory IdentityStore.
type fakeIdentityStore struct {
	nextID     int64
	identities []model.Identity
}

func (s *fakeIdentityStore) Create(_ context.Context, identity model.Identity) (int64, error) {
	s.nextID++
	identity.ID = s.nextID
	s.identities = append(s.identities, identity)
	return identity.ID, nil
}

func (s *fakeIdentityStore) GetByID(_ context.Context, id int64) (*model.Identity, error) {
	for _, identity := range s.identities {
		if identity.ID == id {
			identity := identity
			return &identity, nil
		}
	}
	return nil, nil
}

func (s *fakeIdentityStore) GetByUsername(_ context.Context, username string) (*model.Identity, error) {
	for _, identity := range s.identities {
		if identity.Username == username {
			identity := identity
			return &identity, nil
		}
	}
	return nil, nil
}

func (s *fakeIdentityStore) OldestAdmin(context.Context) (*model.Identity, error) {
	var oldest *model.Identity
	for i := range s.identities {
		identity := s.identities[i]
		if !identity.IsAdmin {
			continue
		}
		if oldest == nil || identity.CreatedAt.Before(oldest.CreatedAt) {
			oldest = &identity
		}
	}
	return oldest, nil
}

// fakeStateStore is an in-memory MigrationStateStore.
type fakeStateStore struct {
	state   *model.MigrationState
	records int
}

func (s *fakeStateStore) Get(context.Context) (*model.MigrationState, error) {
	return s.state, nil
}

func (s *fakeStateStore) Record(_ context.Context, state model.MigrationState) error {
	s.state = &state
	s.records++
	return nil
}

// fakeSubStore is an in-memory SubscriptionStore.
type fakeSubStore struct {
	mu    sync.Mutex
	marks map[int64]time.Time
}

func newFakeSubStore() *fakeSubStore {
	return &fakeSubStore{marks: make(map[int64]time.Time)}
}

func (s *fakeSubStore) Get(_ context.Context, identityID int64) (*model.ConfigSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	syncedAt, ok := s.marks[identityID]
	if !ok {
		return nil, nil
	}
	return &model.ConfigSubscription{IdentityID: identityID, Active: true, LastSyncedAt: &syncedAt}, nil
}

func (s *fakeSubStore) MarkSynced(_ context.Context, identityID int64, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[identityID] = syncedAt
	return nil
}

// fakeVerifier is a scriptable AccountVerifier.
type fakeVerifier struct {
	provider  model.OAuthProvider
	account   *driven.VerifiedAccount
	lookupErr error
	lookups   []string
}

func (v *fakeVerifier) Supports(provider model.OAuthProvider) bool {
	return provider == v.provider
}

func (v *fakeVerifier) Lookup(_ context.Context, accountName string) (*driven.VerifiedAccount, error) {
	v.lookups = append(v.lookups, accountName)
	if v.lookupErr != nil {
		return nil, v.lookupErr
	}
	return v.account, nil
}
