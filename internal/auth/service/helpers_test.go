package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/authcore/internal/auth/clients"
	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/internal/auth/events"
	"github.com/aussiebroadwan/authcore/internal/auth/metrics"
	"github.com/aussiebroadwan/authcore/internal/auth/store"
	redisdriver "github.com/aussiebroadwan/authcore/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/authcore/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/authcore/pkg/cryptox"
	"github.com/aussiebroadwan/authcore/pkg/jwtx"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer       = "https://auth.example.test"
	testSecret       = "correct-horse-battery-staple"
	testPublicID     = "spa"
	testBackendID    = "backend"
	testAPIID        = "api"
	testPublicCB     = "https://spa.example.test/callback"
	testBackendCB    = "https://backend.example.test/callback"
	testEntityID     = "user-1"
	testCodeVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// newFakeClock starts at the wall clock. The redis driver sets key TTLs
// against the server's clock, so a fixed past date would evict every record.
func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	store    store.Store
	registry *clients.Registry
	clock    *fakeClock
	events   *events.Recorder
	metrics  *metrics.Metrics
	factory  *TokenFactory

	tokens     *TokenService
	refresh    *RefreshEngine
	lifecycle  *LifecycleService
	revocation *RevocationService
	introspect *IntrospectionService

	public  *domain.Client
	backend *domain.Client
	api     *domain.Client
}

// newHarness wires the services over an in-memory sqlite store. Options
// adjust the token config before anything is built.
func newHarness(t *testing.T, opts ...func(*TokenConfig)) *harness {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return newHarnessOn(t, st, opts...)
}

// newRedisHarness wires the services over a miniredis-backed store.
func newRedisHarness(t *testing.T, opts ...func(*TokenConfig)) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return newHarnessOn(t, redisdriver.NewStoreWithClient(client, "test:"), opts...)
}

// newHarnessOn wires the services over st.
func newHarnessOn(t *testing.T, st store.Store, opts ...func(*TokenConfig)) *harness {
	t.Helper()

	require.NoError(t, st.ApplyMigrations(context.Background()))

	secretHash, err := cryptox.HashSecret(testSecret)
	require.NoError(t, err)

	catalog := []domain.Scope{
		{Name: ScopeOpenID},
		{Name: "profile"},
		{Name: ScopeOfflineAccess},
		{Name: ScopeTokenExchange},
		{Name: "files:*", Description: "File access", Pattern: true},
	}
	registry := clients.New(catalog, []string{ScopeOpenID},
		domain.Client{
			ID:           testPublicID,
			Name:         "Single page app",
			Type:         domain.ClientTypePublic,
			RedirectURIs: []string{testPublicCB},
			Scopes:       []string{ScopeOpenID, "profile", ScopeOfflineAccess, ScopeTokenExchange, "files:*"},
			Audience:     []string{testPublicID, testAPIID},
		},
		domain.Client{
			ID:           testBackendID,
			Name:         "Backend",
			Type:         domain.ClientTypeConfidential,
			SecretHash:   secretHash,
			RedirectURIs: []string{testBackendCB},
			Scopes:       []string{ScopeOpenID, ScopeOfflineAccess, "files:*"},
		},
		domain.Client{
			ID:         testAPIID,
			Name:       "Files API",
			Type:       domain.ClientTypeConfidential,
			SecretHash: secretHash,
			Scopes:     []string{"files:*"},
		},
	)

	cfg := DefaultTokenConfig()
	cfg.Issuer = testIssuer
	for _, opt := range opts {
		opt(&cfg)
	}
	require.NoError(t, cfg.Validate())

	signer, err := jwtx.NewSigner(jwtx.SignerConfig{
		Algorithm: "HS256",
		KeyID:     "test",
		Secret:    []byte("0123456789abcdef0123456789abcdef"),
	})
	require.NoError(t, err)

	h := &harness{
		store:    st,
		registry: registry,
		clock:    newFakeClock(),
		events:   &events.Recorder{},
		metrics:  metrics.New(prometheus.NewRegistry()),
		factory:  &TokenFactory{Signer: signer, Config: cfg},
	}

	auth := &ClientAuthenticator{Registry: registry}
	h.refresh = &RefreshEngine{
		Store:   st,
		Factory: h.factory,
		Events:  h.events,
		Metrics: h.metrics,
		Now:     h.clock.Now,
	}
	h.tokens = &TokenService{
		Store:    st,
		Registry: registry,
		Factory:  h.factory,
		Refresh:  h.refresh,
		Events:   h.events,
		Metrics:  h.metrics,
		Now:      h.clock.Now,
	}
	h.lifecycle = &LifecycleService{Store: st, Metrics: h.metrics, Now: h.clock.Now}
	h.revocation = &RevocationService{
		Store:   st,
		Clients: auth,
		Policy:  RevocationLenient,
		Events:  h.events,
		Metrics: h.metrics,
		Now:     h.clock.Now,
	}
	h.introspect = &IntrospectionService{Store: st, Clients: auth, Metrics: h.metrics, Now: h.clock.Now}

	for id, dst := range map[string]**domain.Client{testPublicID: &h.public, testBackendID: &h.backend, testAPIID: &h.api} {
		c, err := registry.GetClient(context.Background(), id)
		require.NoError(t, err)
		*dst = c
	}
	return h
}

// authorize issues a code for the test entity, bound to testCodeVerifier
// with S256.
func (h *harness) authorize(t *testing.T, client *domain.Client, scope ...string) string {
	t.Helper()

	redirect := testBackendCB
	if client.IsPublic() {
		redirect = testPublicCB
	}
	code, err := h.tokens.IssueAuthorizationCode(context.Background(), AuthorizationRequest{
		Client:              client,
		EntityID:            testEntityID,
		Claims:              map[string]any{"email": "user@example.test"},
		RedirectURI:         redirect,
		Scope:               scope,
		Nonce:               "n-0S6_WzA2Mj",
		CodeChallenge:       cryptox.S256Challenge(testCodeVerifier),
		CodeChallengeMethod: PKCEMethodS256,
		AuthTime:            h.clock.Now(),
	})
	require.NoError(t, err)
	return code
}

// grant runs the authorization code flow end to end.
func (h *harness) grant(t *testing.T, client *domain.Client, scope ...string) Issued {
	t.Helper()

	code := h.authorize(t, client, scope...)
	redirect := testBackendCB
	if client.IsPublic() {
		redirect = testPublicCB
	}
	issued, err := h.tokens.ExchangeAuthorizationCode(context.Background(), client, code, redirect, testCodeVerifier)
	require.NoError(t, err)
	return issued
}

func (h *harness) active(t *testing.T, value string) bool {
	t.Helper()

	res, err := h.introspect.Introspect(context.Background(), value, ClientCredentials{})
	require.NoError(t, err)
	return res.Active
}
