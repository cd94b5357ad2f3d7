package authsdk

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/authcore/pkg/httpx"
	"github.com/aussiebroadwan/authcore/pkg/jwtx"
)

// GetJWKS retrieves the JSON Web Key Set for token verification.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/jwks.json", nil, nil, nil)
	if err != nil {
		return nil, err
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}

	return &jwks, nil
}

// GetDiscovery retrieves the OpenID Provider configuration.
func (c *SDKClient) GetDiscovery(ctx context.Context) (*DiscoveryResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/openid-configuration", nil, nil, nil)
	if err != nil {
		return nil, err
	}

	var doc DiscoveryResponse
	if err := decodeJSON(resp, &doc, http.StatusOK); err != nil {
		return nil, err
	}

	return &doc, nil
}

// JWTVerifier checks JWT access tokens locally against the key set the
// server publishes. Resource servers use it instead of introspection when
// the server issues JWT access tokens.
type JWTVerifier struct {
	*jwtx.Verifier

	client *SDKClient
	keys   *jwtx.KeySet
}

// NewJWTVerifier fetches the JWKS once and returns a verifier applying opts.
func (c *SDKClient) NewJWTVerifier(ctx context.Context, opts jwtx.VerifyOptions) (*JWTVerifier, error) {
	v := &JWTVerifier{client: c, keys: jwtx.NewKeySet()}
	v.Verifier = jwtx.NewVerifier(v.keys, opts)
	if err := v.Refresh(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

// Refresh replaces the known keys with the server's current JWKS, for
// example after a token failed with jwtx.ErrUnknownKID.
func (v *JWTVerifier) Refresh(ctx context.Context) error {
	jwks, err := v.client.GetJWKS(ctx)
	if err != nil {
		return err
	}
	return v.keys.ResetFromJWKS(jwtx.JWKS(*jwks))
}

// Authenticator plugs the verifier into httpx.AuthnMiddleware.
func (v *JWTVerifier) Authenticator() httpx.Authenticator {
	return httpx.JWTAuthenticator(v.Verifier)
}
