package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Grant type identifiers accepted by the token endpoint.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeTokenExchange     = "urn:ietf:params:oauth:grant-type:token-exchange"

	TokenTypeAccessToken = "urn:ietf:params:oauth:token-type:access_token"
)

// AuthorizationCodeGrant redeems an authorization code. codeVerifier is the
// PKCE verifier and may be empty for confidential clients that skipped PKCE.
func (c *SDKClient) AuthorizationCodeGrant(
	ctx context.Context,
	code, redirectURI, codeVerifier string,
) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":   {GrantTypeAuthorizationCode},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	if codeVerifier != "" {
		data.Set("code_verifier", codeVerifier)
	}

	return c.requestToken(ctx, data)
}

// RefreshGrant requests new tokens using a refresh token. A nil scopes keeps
// the scope originally granted.
func (c *SDKClient) RefreshGrant(
	ctx context.Context,
	refreshToken string,
	scopes []string,
) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {GrantTypeRefreshToken},
		"refresh_token": {refreshToken},
	}
	if len(scopes) > 0 {
		data.Set("scope", strings.Join(scopes, " "))
	}

	return c.requestToken(ctx, data)
}

// ClientCredentialsGrant requests an access token using the OAuth2 client_credentials grant.
// The client must be confidential. No refresh token is returned; the client
// re-authenticates when the access token expires.
func (c *SDKClient) ClientCredentialsGrant(ctx context.Context, scopes []string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type": {GrantTypeClientCredentials},
	}
	if len(scopes) > 0 {
		data.Set("scope", strings.Join(scopes, " "))
	}

	return c.requestToken(ctx, data)
}

// TokenExchange trades subjectToken for a new access token aimed at
// audience (RFC 8693).
func (c *SDKClient) TokenExchange(
	ctx context.Context,
	subjectToken string,
	audience, scopes []string,
) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":         {GrantTypeTokenExchange},
		"subject_token":      {subjectToken},
		"subject_token_type": {TokenTypeAccessToken},
	}
	for _, a := range audience {
		data.Add("audience", a)
	}
	if len(scopes) > 0 {
		data.Set("scope", strings.Join(scopes, " "))
	}

	return c.requestToken(ctx, data)
}

// RevokeToken revokes an access or refresh token (RFC 7009). hint may be
// empty.
func (c *SDKClient) RevokeToken(ctx context.Context, token, hint string) error {
	data := url.Values{"token": {token}}
	if hint != "" {
		data.Set("token_type_hint", hint)
	}

	resp, err := c.postForm(ctx, "/v1/oauth2/revoke", data)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusOK)
}

// Introspect asks the server whether token is active (RFC 7662).
func (c *SDKClient) Introspect(ctx context.Context, token string) (*IntrospectionResponse, error) {
	resp, err := c.postForm(ctx, "/v1/oauth2/introspect", url.Values{"token": {token}})
	if err != nil {
		return nil, err
	}

	var out IntrospectionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	resp, err := c.postForm(ctx, "/v1/oauth2/token", data)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// postForm sends a form POST authenticated as the SDK's client: HTTP Basic
// for confidential clients, a client_id field for public ones.
func (c *SDKClient) postForm(ctx context.Context, path string, data url.Values) (*http.Response, error) {
	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}

	var basic *url.Userinfo
	switch {
	case c.ClientSecret != "":
		basic = url.UserPassword(c.ClientID, c.ClientSecret)
	case c.ClientID != "":
		data.Set("client_id", c.ClientID)
	}

	return c.doRequest(ctx, http.MethodPost, path, strings.NewReader(data.Encode()), headers, basic)
}
