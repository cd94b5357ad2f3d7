package http_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/internal/auth/service"
	"github.com/aussiebroadwan/authcore/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func getUserInfo(t *testing.T, srv *testServer, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/v1/oauth2/userinfo", nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestUserInfoRejectsBadTokens(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	for name, token := range map[string]string{
		"missing": "",
		"unknown": "never-issued",
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			resp := getUserInfo(t, srv, token)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			require.Contains(t, resp.Header.Get("WWW-Authenticate"), `Bearer error="invalid_token"`)
		})
	}
}

func TestUserInfoClaims(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := newTestServer(t)

	res := srv.login(t, srv.public(), service.ScopeOpenID, service.ScopeOfflineAccess)
	session := srv.public().NewSessionFromTokens(res.AccessToken, res.RefreshToken, res.Scope, res.ExpiresIn)

	info, err := session.GetUserInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, "user-1", info.Subject())
	require.Equal(t, "user@example.test", info["email"])
}

func TestUserInfoSlidesExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := newTestServer(t, withTokenConfig(func(cfg *service.TokenConfig) {
		cfg.AccessTokenValidity = time.Minute
		cfg.MaxExtendedAccessTokenValidity = time.Hour
	}))

	res := srv.login(t, srv.backend(), service.ScopeOpenID)
	hash := cryptox.FingerprintToken(res.AccessToken)

	before, err := srv.store.Tokens().GetToken(ctx, domain.TokenTypeAccessToken, hash)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	resp := getUserInfo(t, srv, res.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	after, err := srv.store.Tokens().GetToken(ctx, domain.TokenTypeAccessToken, hash)
	require.NoError(t, err)
	require.True(t, after.ExpiresAt.After(before.ExpiresAt))
	require.False(t, after.ExpiresAt.After(after.CreatedAt.Add(time.Hour)))
}

func TestUserInfoStoreFailureIsServerError(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	res := srv.login(t, srv.backend(), service.ScopeOpenID)
	require.NoError(t, srv.store.Close())

	resp := getUserInfo(t, srv, res.AccessToken)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Empty(t, resp.Header.Get("WWW-Authenticate"))
}
