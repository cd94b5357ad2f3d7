package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the authcore authorization server.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// ClientID and ClientSecret authenticate the client at the token,
	// revocation and introspection endpoints. Public clients leave the
	// secret empty and the id is sent as a form field instead.
	ClientID     string
	ClientSecret string
}

// NewSDKClient creates a new auth service client for clientID.
func NewSDKClient(baseURL, clientID, clientSecret string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
}

// AuthenticateWithClientCredentials creates an authenticated session using client credentials grant.
// This is for machine-to-machine (M2M) authentication.
func (c *SDKClient) AuthenticateWithClientCredentials(ctx context.Context, scopes []string) (*Session, error) {
	tokenResp, err := c.ClientCredentialsGrant(ctx, scopes)
	if err != nil {
		return nil, err
	}

	return newSession(c, tokenResp), nil
}

// AuthenticateWithCode creates an authenticated session by redeeming an
// authorization code.
func (c *SDKClient) AuthenticateWithCode(ctx context.Context, code, redirectURI, codeVerifier string) (*Session, error) {
	tokenResp, err := c.AuthorizationCodeGrant(ctx, code, redirectURI, codeVerifier)
	if err != nil {
		return nil, err
	}

	return newSession(c, tokenResp), nil
}

// AuthenticateWithRefreshToken creates an authenticated session from an existing refresh token.
func (c *SDKClient) AuthenticateWithRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	tokenResp, err := c.RefreshGrant(ctx, refreshToken, nil)
	if err != nil {
		return nil, err
	}

	// Without rotation the server keeps the presented token valid and
	// returns none.
	if tokenResp.RefreshToken == "" {
		tokenResp.RefreshToken = refreshToken
	}
	return newSession(c, tokenResp), nil
}

// NewSessionFromTokens creates an authenticated session from existing tokens.
// The session will still perform auto-refresh when the access token expires.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken, scope string, expiresIn int) *Session {
	return newSession(c, &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Scope:        scope,
		ExpiresIn:    expiresIn,
	})
}
