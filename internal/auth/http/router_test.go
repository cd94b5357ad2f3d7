package http_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/aussiebroadwan/authcore/internal/auth/service"
	"github.com/aussiebroadwan/authcore/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationCodeFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := newTestServer(t)

	res := srv.login(t, srv.public(), service.ScopeOpenID, service.ScopeOfflineAccess)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)
	require.NotEmpty(t, res.IDToken)
	require.Equal(t, "Bearer", res.TokenType)
	require.Equal(t, 3600, res.ExpiresIn)
	require.ElementsMatch(t, []string{service.ScopeOpenID, service.ScopeOfflineAccess}, strings.Fields(res.Scope))

	info, err := srv.backend().Introspect(ctx, res.AccessToken)
	require.NoError(t, err)
	require.True(t, info.Active)
	require.Equal(t, testPublicID, info.ClientID)
	require.Equal(t, "user-1", info.Sub)
	require.Equal(t, testIssuer, info.Iss)
	require.Equal(t, info.Iat+3600, info.Exp)
}

func TestRefreshReplayRevokesChain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("sequential", func(t *testing.T) {
		srv := newTestServer(t)
		spa := srv.public()

		first := srv.login(t, spa, service.ScopeOfflineAccess)

		second, err := spa.RefreshGrant(ctx, first.RefreshToken, nil)
		require.NoError(t, err)
		require.NotEmpty(t, second.RefreshToken)
		require.NotEqual(t, first.RefreshToken, second.RefreshToken)

		_, err = spa.RefreshGrant(ctx, first.RefreshToken, nil)
		var oauthErr *authsdk.OAuth2Error
		require.True(t, errors.As(err, &oauthErr))
		require.Equal(t, authsdk.ErrorCodeInvalidGrant, oauthErr.Code)

		for _, tok := range []string{first.AccessToken, second.AccessToken, second.RefreshToken} {
			info, err := srv.backend().Introspect(ctx, tok)
			require.NoError(t, err)
			require.False(t, info.Active)
		}
	})

	t.Run("concurrent", func(t *testing.T) {
		srv := newTestServer(t)
		spa := srv.public()
		first := srv.login(t, spa, service.ScopeOfflineAccess)

		errs := make(chan error, 2)
		for range 2 {
			go func() {
				_, err := spa.RefreshGrant(ctx, first.RefreshToken, nil)
				errs <- err
			}()
		}

		failed := 0
		for range 2 {
			if err := <-errs; err != nil {
				failed++
			}
		}
		require.GreaterOrEqual(t, failed, 1)

		info, err := srv.backend().Introspect(ctx, first.AccessToken)
		require.NoError(t, err)
		require.False(t, info.Active)
	})
}

func TestRevokeRefreshTokenRevokesChain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := newTestServer(t)
	spa := srv.public()

	first := srv.login(t, spa, service.ScopeOfflineAccess)
	second, err := spa.RefreshGrant(ctx, first.RefreshToken, nil)
	require.NoError(t, err)

	require.NoError(t, spa.RevokeToken(ctx, second.RefreshToken, "refresh_token"))

	for _, tok := range []string{first.AccessToken, second.AccessToken, second.RefreshToken} {
		info, err := srv.backend().Introspect(ctx, tok)
		require.NoError(t, err)
		require.False(t, info.Active)
	}
}

func TestRevokeAccessTokenLeavesRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := newTestServer(t)
	be := srv.backend()

	res := srv.login(t, be, service.ScopeOfflineAccess)
	require.NoError(t, be.RevokeToken(ctx, res.AccessToken, ""))

	info, err := be.Introspect(ctx, res.AccessToken)
	require.NoError(t, err)
	require.False(t, info.Active)

	info, err = be.Introspect(ctx, res.RefreshToken)
	require.NoError(t, err)
	require.True(t, info.Active)
}

func TestRevokeUnknownToken(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, err := srv.Client().Post(srv.URL+"/v1/oauth2/revoke",
		"application/x-www-form-urlencoded",
		strings.NewReader("token=does-not-exist&client_id="+testPublicID))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, body)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestRevokeRejectsBadCredentials(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	err := srv.client(testBackendID, "wrong").RevokeToken(context.Background(), "anything", "")
	var oauthErr *authsdk.OAuth2Error
	require.True(t, errors.As(err, &oauthErr))
	require.Equal(t, http.StatusUnauthorized, oauthErr.StatusCode)
	require.Equal(t, authsdk.ErrorCodeInvalidClient, oauthErr.Code)
}

func TestWellKnown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := newTestServer(t)
	c := srv.public()

	doc, err := c.GetDiscovery(ctx)
	require.NoError(t, err)
	require.Equal(t, testIssuer, doc.Issuer)
	require.Equal(t, testIssuer+"/v1/oauth2/token", doc.TokenEndpoint)
	require.Contains(t, doc.GrantTypesSupported, service.GrantTypeTokenExchange)
	require.Contains(t, doc.ScopesSupported, service.ScopeOpenID)
	require.NotContains(t, doc.ScopesSupported, "files:*")
	require.Equal(t, []string{"HS256"}, doc.IDTokenSigningAlgValuesSupported)

	jwks, err := c.GetJWKS(ctx)
	require.NoError(t, err)
	require.Empty(t, jwks.Keys)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := newTestServer(t)
	c := srv.public()

	live, err := c.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := c.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Store)
	require.Equal(t, "ok", ready.Checks.Signer)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	srv.login(t, srv.backend(), service.ScopeOpenID)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `authcore_tokens_issued_total{grant_type="authorization_code",token_type="access_token"} 1`)
}
