package http_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/clients"
	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/internal/auth/events"
	authhttp "github.com/aussiebroadwan/authcore/internal/auth/http"
	"github.com/aussiebroadwan/authcore/internal/auth/metrics"
	"github.com/aussiebroadwan/authcore/internal/auth/service"
	"github.com/aussiebroadwan/authcore/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/authcore/pkg/authsdk"
	"github.com/aussiebroadwan/authcore/pkg/cryptox"
	"github.com/aussiebroadwan/authcore/pkg/httpx"
	"github.com/aussiebroadwan/authcore/pkg/jwtx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer    = "https://auth.example.test"
	testSecret    = "s3cr3t:with/odd&chars"
	testPublicID  = "spa"
	testBackendID = "backend"
	testPublicCB  = "https://spa.example.test/callback"
	testBackendCB = "https://backend.example.test/callback"
	testVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
)

type testServer struct {
	*httptest.Server

	tokens   *service.TokenService
	registry *clients.Registry
	store    *sqlite.Store
	events   *events.Recorder
	metrics  *prometheus.Registry
}

type serverOption func(*service.TokenConfig, *serverSettings)

type serverSettings struct {
	revocation        service.RevocationPolicy
	requireClientAuth bool
	limits            *authhttp.RateLimits
}

func withTokenConfig(fn func(*service.TokenConfig)) serverOption {
	return func(cfg *service.TokenConfig, _ *serverSettings) { fn(cfg) }
}

func withRequireClientAuth() serverOption {
	return func(_ *service.TokenConfig, s *serverSettings) { s.requireClientAuth = true }
}

func withRateLimits(l authhttp.RateLimits) serverOption {
	return func(_ *service.TokenConfig, s *serverSettings) { s.limits = &l }
}

// generousLimits lets a test issue far more requests than the production
// limits allow from one address.
func generousLimits() authhttp.RateLimits {
	generous := httpx.RateLimit{Requests: 10000, Window: time.Minute, Burst: 10000}
	return authhttp.RateLimits{
		Token:       generous,
		Client:      generous,
		UserInfo:    generous,
		Discovery:   generous,
		HealthCheck: generous,
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations(context.Background()))

	secretHash, err := cryptox.HashSecret(testSecret)
	require.NoError(t, err)

	catalog := []domain.Scope{
		{Name: service.ScopeOpenID},
		{Name: "profile"},
		{Name: service.ScopeOfflineAccess},
		{Name: "files:*", Pattern: true},
	}
	registry := clients.New(catalog, []string{service.ScopeOpenID},
		domain.Client{
			ID:           testPublicID,
			Name:         "Single page app",
			Type:         domain.ClientTypePublic,
			RedirectURIs: []string{testPublicCB},
			Scopes:       []string{service.ScopeOpenID, "profile", service.ScopeOfflineAccess, "files:*"},
		},
		domain.Client{
			ID:           testBackendID,
			Name:         "Backend",
			Type:         domain.ClientTypeConfidential,
			SecretHash:   secretHash,
			RedirectURIs: []string{testBackendCB},
			Scopes:       []string{service.ScopeOpenID, service.ScopeOfflineAccess, "files:*"},
		},
	)

	cfg := service.DefaultTokenConfig()
	cfg.Issuer = testIssuer
	settings := serverSettings{revocation: service.RevocationLenient}
	for _, opt := range opts {
		opt(&cfg, &settings)
	}
	require.NoError(t, cfg.Validate())

	signer, err := jwtx.NewSigner(jwtx.SignerConfig{
		Algorithm: "HS256",
		KeyID:     "test",
		Secret:    []byte("0123456789abcdef0123456789abcdef"),
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	rec := &events.Recorder{}
	factory := &service.TokenFactory{Signer: signer, Config: cfg}
	auth := &service.ClientAuthenticator{Registry: registry}

	tokens := &service.TokenService{
		Store:    st,
		Registry: registry,
		Factory:  factory,
		Refresh:  &service.RefreshEngine{Store: st, Factory: factory, Events: rec, Metrics: m},
		Events:   rec,
		Metrics:  m,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := authhttp.NewRouter(jwtx.NewKeySet(), signer, testIssuer, "test", st, reg, logger)
	router.Scopes = registry.Scopes()
	router.Clients = auth
	router.TokenService = tokens
	router.RevocationService = &service.RevocationService{
		Store:   st,
		Clients: auth,
		Policy:  settings.revocation,
		Events:  rec,
		Metrics: m,
	}
	router.IntrospectionService = &service.IntrospectionService{
		Store:             st,
		Clients:           auth,
		RequireClientAuth: settings.requireClientAuth,
		Metrics:           m,
	}
	router.LifecycleService = &service.LifecycleService{Store: st, Metrics: m}
	router.Limits = generousLimits()
	if settings.limits != nil {
		router.Limits = *settings.limits
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{
		Server:   srv,
		tokens:   tokens,
		registry: registry,
		store:    st,
		events:   rec,
		metrics:  reg,
	}
}

func (s *testServer) client(id, secret string) *authsdk.SDKClient {
	c := authsdk.NewSDKClient(s.URL, id, secret)
	c.HTTPClient = s.Client()
	return c
}

func (s *testServer) public() *authsdk.SDKClient  { return s.client(testPublicID, "") }
func (s *testServer) backend() *authsdk.SDKClient { return s.client(testBackendID, testSecret) }

// code issues an authorization code for clientID bound to testVerifier.
func (s *testServer) code(t *testing.T, clientID string, scope ...string) (string, string) {
	t.Helper()

	c, err := s.registry.GetClient(context.Background(), clientID)
	require.NoError(t, err)

	redirect := testBackendCB
	if c.IsPublic() {
		redirect = testPublicCB
	}
	code, err := s.tokens.IssueAuthorizationCode(context.Background(), service.AuthorizationRequest{
		Client:              c,
		EntityID:            "user-1",
		Claims:              map[string]any{"email": "user@example.test"},
		RedirectURI:         redirect,
		Scope:               scope,
		Nonce:               "n-0S6_WzA2Mj",
		CodeChallenge:       cryptox.S256Challenge(testVerifier),
		CodeChallengeMethod: service.PKCEMethodS256,
		AuthTime:            time.Now(),
	})
	require.NoError(t, err)
	return code, redirect
}

// login runs the authorization code grant through the token endpoint.
func (s *testServer) login(t *testing.T, c *authsdk.SDKClient, scope ...string) *authsdk.TokenResponse {
	t.Helper()

	code, redirect := s.code(t, c.ClientID, scope...)
	res, err := c.AuthorizationCodeGrant(context.Background(), code, redirect, testVerifier)
	require.NoError(t, err)
	return res
}
