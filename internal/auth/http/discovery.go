package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/internal/auth/service"
	"github.com/aussiebroadwan/authcore/pkg/authsdk"
	"github.com/aussiebroadwan/authcore/pkg/httpx"
)

// DiscoveryHandler godoc
//
//	@Summary		OpenID Provider Metadata
//	@Description	Returns the OpenID Connect discovery document describing the endpoints and capabilities of this server.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.DiscoveryResponse	"Provider metadata"
//	@Router			/.well-known/openid-configuration [get].
func DiscoveryHandler(issuer, alg string, scopes []domain.Scope) http.HandlerFunc {
	base := strings.TrimSuffix(issuer, "/")

	names := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if !s.Pattern {
			names = append(names, s.Name)
		}
	}

	doc := authsdk.DiscoveryResponse{
		Issuer:                issuer,
		TokenEndpoint:         base + "/v1/oauth2/token",
		RevocationEndpoint:    base + "/v1/oauth2/revoke",
		IntrospectionEndpoint: base + "/v1/oauth2/introspect",
		UserInfoEndpoint:      base + "/v1/oauth2/userinfo",
		JWKSURI:               base + "/.well-known/jwks.json",
		GrantTypesSupported: []string{
			service.GrantTypeAuthorizationCode,
			service.GrantTypeRefreshToken,
			service.GrantTypeClientCredentials,
			service.GrantTypeTokenExchange,
		},
		ResponseTypesSupported:            []string{"code"},
		ScopesSupported:                   names,
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post", "none"},
		CodeChallengeMethodsSupported:     []string{service.PKCEMethodS256, service.PKCEMethodPlain},
		IDTokenSigningAlgValuesSupported:  []string{alg},
		SubjectTypesSupported:             []string{"public"},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, doc)
	}
}
