package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/aussiebroadwan/authcore/internal/auth/service"
	"github.com/aussiebroadwan/authcore/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

type tokenRequest struct {
	form        url.Values
	user, pass  string
	contentType string
}

func postToken(t *testing.T, srv *testServer, req tokenRequest) (*http.Response, authsdk.ErrorResponse) {
	t.Helper()

	ct := req.contentType
	if ct == "" {
		ct = "application/x-www-form-urlencoded"
	}
	r, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		srv.URL+"/v1/oauth2/token", strings.NewReader(req.form.Encode()))
	require.NoError(t, err)
	r.Header.Set("Content-Type", ct)
	if req.user != "" {
		r.SetBasicAuth(url.QueryEscape(req.user), url.QueryEscape(req.pass))
	}

	resp, err := srv.Client().Do(r)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var body authsdk.ErrorResponse
	if resp.StatusCode != http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func TestTokenEndpointErrors(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	tests := []struct {
		name      string
		req       tokenRequest
		status    int
		code      string
		challenge bool
	}{
		{
			name:   "unsupported grant type",
			req:    tokenRequest{form: url.Values{"grant_type": {"password"}, "client_id": {testPublicID}}},
			status: http.StatusBadRequest,
			code:   authsdk.ErrorCodeUnsupportedGrantType,
		},
		{
			name: "json body",
			req: tokenRequest{
				form:        url.Values{"grant_type": {service.GrantTypeClientCredentials}},
				contentType: "application/json",
			},
			status: http.StatusBadRequest,
			code:   authsdk.ErrorCodeInvalidRequest,
		},
		{
			name: "wrong secret over basic",
			req: tokenRequest{
				form: url.Values{"grant_type": {service.GrantTypeClientCredentials}},
				user: testBackendID, pass: "nope",
			},
			status:    http.StatusUnauthorized,
			code:      authsdk.ErrorCodeInvalidClient,
			challenge: true,
		},
		{
			name: "unknown client in form",
			req: tokenRequest{form: url.Values{
				"grant_type": {service.GrantTypeClientCredentials},
				"client_id":  {"nobody"},
			}},
			status: http.StatusUnauthorized,
			code:   authsdk.ErrorCodeInvalidClient,
		},
		{
			name: "public client presenting a secret",
			req: tokenRequest{form: url.Values{
				"grant_type":    {service.GrantTypeClientCredentials},
				"client_id":     {testPublicID},
				"client_secret": {"anything"},
			}},
			status: http.StatusUnauthorized,
			code:   authsdk.ErrorCodeInvalidClient,
		},
		{
			name: "client credentials for a public client",
			req: tokenRequest{form: url.Values{
				"grant_type": {service.GrantTypeClientCredentials},
				"client_id":  {testPublicID},
			}},
			status: http.StatusBadRequest,
			code:   authsdk.ErrorCodeUnauthorizedClient,
		},
		{
			name: "missing code",
			req: tokenRequest{form: url.Values{
				"grant_type": {service.GrantTypeAuthorizationCode},
				"client_id":  {testPublicID},
			}},
			status: http.StatusBadRequest,
			code:   authsdk.ErrorCodeInvalidRequest,
		},
		{
			name: "unknown code",
			req: tokenRequest{form: url.Values{
				"grant_type":    {service.GrantTypeAuthorizationCode},
				"client_id":     {testPublicID},
				"code":          {"made-up"},
				"redirect_uri":  {testPublicCB},
				"code_verifier": {testVerifier},
			}},
			status: http.StatusBadRequest,
			code:   authsdk.ErrorCodeInvalidGrant,
		},
		{
			name: "missing refresh token",
			req: tokenRequest{form: url.Values{
				"grant_type": {service.GrantTypeRefreshToken},
				"client_id":  {testPublicID},
			}},
			status: http.StatusBadRequest,
			code:   authsdk.ErrorCodeInvalidRequest,
		},
		{
			name: "token exchange with a foreign subject token type",
			req: tokenRequest{
				form: url.Values{
					"grant_type":         {service.GrantTypeTokenExchange},
					"subject_token":      {"whatever"},
					"subject_token_type": {"urn:ietf:params:oauth:token-type:id_token"},
				},
				user: testBackendID, pass: testSecret,
			},
			status: http.StatusBadRequest,
			code:   authsdk.ErrorCodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, body := postToken(t, srv, tt.req)
			require.Equal(t, tt.status, resp.StatusCode)
			require.Equal(t, tt.code, body.Error)
			require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
			if tt.challenge {
				require.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")
			}
		})
	}
}

func TestClientCredentialsGrant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := newTestServer(t)

	res, err := srv.backend().ClientCredentialsGrant(ctx, []string{"files:read"})
	require.NoError(t, err)
	require.Equal(t, "files:read", res.Scope)
	require.Empty(t, res.RefreshToken)
	require.Empty(t, res.IDToken)

	info, err := srv.backend().Introspect(ctx, res.AccessToken)
	require.NoError(t, err)
	require.True(t, info.Active)
	require.Equal(t, testBackendID, info.Sub)
}

func TestAuthorizationCodeIsSingleUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := newTestServer(t)
	spa := srv.public()

	code, redirect := srv.code(t, testPublicID, service.ScopeOfflineAccess)
	first, err := spa.AuthorizationCodeGrant(ctx, code, redirect, testVerifier)
	require.NoError(t, err)

	_, err = spa.AuthorizationCodeGrant(ctx, code, redirect, testVerifier)
	require.Error(t, err)

	info, err := srv.backend().Introspect(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.False(t, info.Active)
}

func TestAuthorizationCodeRejectsWrongVerifier(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	code, redirect := srv.code(t, testPublicID)
	_, err := srv.public().AuthorizationCodeGrant(context.Background(), code, redirect, strings.Repeat("x", 43))

	var oauthErr *authsdk.OAuth2Error
	require.ErrorAs(t, err, &oauthErr)
	require.Equal(t, authsdk.ErrorCodeInvalidGrant, oauthErr.Code)
}

func TestRefreshScopeNarrowing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := newTestServer(t)
	spa := srv.public()

	first := srv.login(t, spa, service.ScopeOpenID, service.ScopeOfflineAccess, "profile")

	narrowed, err := spa.RefreshGrant(ctx, first.RefreshToken, []string{"profile"})
	require.NoError(t, err)
	require.Equal(t, "profile", narrowed.Scope)

	_, err = spa.RefreshGrant(ctx, narrowed.RefreshToken, []string{"files:write"})
	var oauthErr *authsdk.OAuth2Error
	require.ErrorAs(t, err, &oauthErr)
	require.Equal(t, authsdk.ErrorCodeInvalidScope, oauthErr.Code)
}
