package service

import (
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/pkg/cryptox"
	"github.com/aussiebroadwan/authcore/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func testFactory(t *testing.T, opts ...func(*TokenConfig)) *TokenFactory {
	t.Helper()

	signer, err := jwtx.NewSigner(jwtx.SignerConfig{Algorithm: "HS256", Secret: []byte("0123456789abcdef0123456789abcdef")})
	require.NoError(t, err)

	cfg := DefaultTokenConfig()
	cfg.Issuer = testIssuer
	for _, opt := range opts {
		opt(&cfg)
	}
	return &TokenFactory{Signer: signer, Config: cfg}
}

func TestTokenFactoryMint(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client := &domain.Client{ID: "c1", Type: domain.ClientTypePublic, Audience: []string{"b", "a"}}
	gc := domain.GrantContext{
		Client:    client,
		GrantType: GrantTypeAuthorizationCode,
		EntityID:  "user-1",
		Nonce:     "abc",
	}

	t.Run("offline_access policy", func(t *testing.T) {
		f := testFactory(t)

		p, err := f.Payload(gc, []domain.Scope{{Name: ScopeOpenID}})
		require.NoError(t, err)
		require.Equal(t, domain.Audience{"b", "a"}, p.Audience)
		out, err := f.Mint("user-1", p, now)
		require.NoError(t, err)
		require.Nil(t, out.Refresh)
		require.Empty(t, out.Access.ChainAnchor())
		require.NotEmpty(t, out.IDToken)

		p, err = f.Payload(gc, []domain.Scope{{Name: ScopeOfflineAccess}})
		require.NoError(t, err)
		out, err = f.Mint("user-1", p, now)
		require.NoError(t, err)
		require.NotNil(t, out.Refresh)
		require.Equal(t, out.Refresh.Hash, out.Refresh.ChainAnchor())
		require.Equal(t, out.Refresh.Hash, out.Access.ChainAnchor())
		require.Empty(t, out.IDToken)
	})

	t.Run("records store fingerprints", func(t *testing.T) {
		f := testFactory(t)
		p, err := f.Payload(gc, nil)
		require.NoError(t, err)

		out, err := f.Mint("user-1", p, now)
		require.NoError(t, err)
		require.Equal(t, cryptox.FingerprintToken(out.Access.Value), out.Access.Hash)
		require.Equal(t, now.Add(time.Hour), out.Access.ExpiresAt)
		require.EqualValues(t, 3600, out.Access.Payload.TokenValidity)
		require.Equal(t, testIssuer, out.Access.Payload.IssuerURI)
	})

	t.Run("never policy and machine grants", func(t *testing.T) {
		f := testFactory(t, func(c *TokenConfig) { c.RefreshIssuePolicy = RefreshIssueNever })
		p, err := f.Payload(gc, []domain.Scope{{Name: ScopeOfflineAccess}})
		require.NoError(t, err)
		out, err := f.Mint("user-1", p, now)
		require.NoError(t, err)
		require.Nil(t, out.Refresh)

		f = testFactory(t, func(c *TokenConfig) { c.RefreshIssuePolicy = RefreshIssueAlways })
		cc := gc
		cc.GrantType = GrantTypeClientCredentials
		p, err = f.Payload(cc, nil)
		require.NoError(t, err)
		out, err = f.Mint("c1", p, now)
		require.NoError(t, err)
		require.Nil(t, out.Refresh)
	})

	t.Run("refresh repeats the nonce", func(t *testing.T) {
		f := testFactory(t, func(c *TokenConfig) { c.RefreshIssuePolicy = RefreshIssueAlways })
		issuedAt := time.Now().Truncate(time.Second)

		p, err := f.Payload(gc, []domain.Scope{{Name: ScopeOpenID}})
		require.NoError(t, err)
		first, err := f.Mint("user-1", p, issuedAt)
		require.NoError(t, err)

		out, err := f.Refresh(*first.Refresh, first.Refresh.Payload.EffectiveScope, true, issuedAt)
		require.NoError(t, err)
		require.NotEmpty(t, out.IDToken)
		require.Nil(t, out.Access.Payload.PKCE)

		v := jwtx.NewSignerVerifier(f.Signer, jwtx.VerifyOptions{Issuer: testIssuer, Audience: []string{"c1"}})
		claims, err := v.Verify(out.IDToken)
		require.NoError(t, err)
		require.Equal(t, "abc", claims.Nonce)
		require.Equal(t, "c1", claims.AuthorizedParty)
	})

	t.Run("refresh validity zero never expires", func(t *testing.T) {
		f := testFactory(t, func(c *TokenConfig) {
			c.RefreshIssuePolicy = RefreshIssueAlways
			c.RefreshTokenValidity = 0
		})
		p, err := f.Payload(gc, nil)
		require.NoError(t, err)
		out, err := f.Mint("user-1", p, now)
		require.NoError(t, err)
		require.True(t, out.Refresh.ExpiresAt.IsZero())
		require.Zero(t, out.Refresh.Payload.TokenValidity)
	})
}

func TestTokenFactoryJWTAccessToken(t *testing.T) {
	t.Parallel()

	f := testFactory(t, func(c *TokenConfig) { c.AccessTokenFormat = AccessTokenJWT })
	now := time.Now().Truncate(time.Second)
	client := &domain.Client{ID: "c1", Type: domain.ClientTypeConfidential}

	p, err := f.Payload(domain.GrantContext{Client: client, EntityID: "user-1"}, []domain.Scope{{Name: "files:read"}})
	require.NoError(t, err)
	rec, err := f.NewAccessToken("user-1", p, now)
	require.NoError(t, err)

	v := jwtx.NewSignerVerifier(f.Signer, jwtx.VerifyOptions{Issuer: testIssuer, Audience: []string{"c1"}})
	claims, err := v.Verify(rec.Value)
	require.NoError(t, err)

	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "c1", claims.ClientID)
	require.Equal(t, "files:read", claims.Scope)
	require.Equal(t, claims.IssuedAt.Time, claims.NotBefore.Time)
	require.NotEmpty(t, claims.ID)
	require.Equal(t, cryptox.FingerprintToken(rec.Value), rec.Hash)
}

func TestTokenFactorySubjectClaim(t *testing.T) {
	t.Parallel()

	f := testFactory(t, func(c *TokenConfig) { c.SubjectClaim = "email" })
	client := &domain.Client{ID: "c1"}

	p, err := f.Payload(domain.GrantContext{
		Client:   client,
		EntityID: "user-1",
		Claims:   map[string]any{"email": "user@example.test"},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "user@example.test", p.Subject)

	_, err = f.Payload(domain.GrantContext{Client: client, EntityID: "user-1"}, nil)
	require.ErrorIs(t, err, ErrClaimMapping)
	require.True(t, errors.Is(err, jwtx.ErrConfiguration))

	_, err = f.Payload(domain.GrantContext{Client: client, Claims: map[string]any{"email": 42}}, nil)
	require.ErrorIs(t, err, ErrClaimMapping)
}

func TestTokenConfigValidate(t *testing.T) {
	t.Parallel()

	ok := DefaultTokenConfig()
	ok.Issuer = testIssuer
	require.NoError(t, ok.Validate())

	cases := map[string]func(*TokenConfig){
		"missing issuer":       func(c *TokenConfig) { c.Issuer = "" },
		"unknown format":       func(c *TokenConfig) { c.AccessTokenFormat = "paseto" },
		"cap below validity":   func(c *TokenConfig) { c.MaxExtendedAccessTokenValidity = time.Minute },
		"negative refresh":     func(c *TokenConfig) { c.RefreshTokenValidity = -time.Second },
		"unknown issue policy": func(c *TokenConfig) { c.RefreshIssuePolicy = "sometimes" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := ok
			mutate(&c)
			require.ErrorIs(t, c.Validate(), jwtx.ErrConfiguration)
		})
	}
}
