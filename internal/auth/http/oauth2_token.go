package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/internal/auth/service"
	"github.com/aussiebroadwan/authcore/pkg/authsdk"
	"github.com/aussiebroadwan/authcore/pkg/httpx"
)

// TokenHandler serves POST /v1/oauth2/token
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	Clients      *service.ClientAuthenticator
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Issues tokens for the authorization_code, refresh_token, client_credentials and token exchange (RFC 8693) grants.
//	@Description	Clients authenticate with HTTP Basic or client_id/client_secret form fields. Public clients send client_id only.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type				formData	string					true	"Grant type"	Enums(authorization_code, refresh_token, client_credentials, urn:ietf:params:oauth:grant-type:token-exchange)
//	@Param			code					formData	string					false	"Authorization code (required for authorization_code grant)"
//	@Param			redirect_uri			formData	string					false	"Redirect URI the code was issued for"
//	@Param			code_verifier			formData	string					false	"PKCE code_verifier (required when PKCE was used)"
//	@Param			refresh_token			formData	string					false	"Refresh token (required for refresh_token grant)"
//	@Param			client_id				formData	string					false	"Client identifier, when not using HTTP Basic"
//	@Param			client_secret			formData	string					false	"Client secret, when not using HTTP Basic"
//	@Param			scope					formData	string					false	"Space-delimited list of scopes"
//	@Param			subject_token			formData	string					false	"Token exchange: the access token to exchange"
//	@Param			subject_token_type		formData	string					false	"Token exchange: must be urn:ietf:params:oauth:token-type:access_token"
//	@Param			requested_token_type	formData	string					false	"Token exchange: only access tokens can be requested"
//	@Param			audience				formData	[]string				false	"Token exchange: audience of the new token"
//	@Param			resource				formData	[]string				false	"Token exchange: resource URIs of the new token"
//	@Success		200						{object}	authsdk.TokenResponse	"access_token, refresh_token, id_token, token_type, expires_in, scope"
//	@Failure		400						{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401						{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		429						{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		500						{object}	authsdk.ErrorResponse	"error, error_description"
//	@Header			200						{string}	Cache-Control			"no-store"
//	@Header			200						{string}	Pragma					"no-cache"
//	@Router			/v1/oauth2/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. Ensure the right content-type and parse the form body
	if !parseForm(w, r) {
		return
	}

	// 2. Every grant authenticates the client first
	grantType := r.Form.Get("grant_type")
	switch grantType {
	case service.GrantTypeAuthorizationCode,
		service.GrantTypeRefreshToken,
		service.GrantTypeClientCredentials,
		service.GrantTypeTokenExchange:
	default:
		authsdk.ErrUnsupportedGrantType.WriteError(w)
		return
	}

	client, err := h.Clients.Authenticate(r.Context(), clientCredentials(r))
	if err != nil {
		writeServiceError(w, r, "client authentication", err)
		return
	}

	// 3. Handle the grant type
	switch grantType {
	case service.GrantTypeAuthorizationCode:
		h.handleAuthorizationCodeGrant(w, r, client, r.Form)
	case service.GrantTypeRefreshToken:
		h.handleRefreshGrant(w, r, client, r.Form)
	case service.GrantTypeClientCredentials:
		h.handleClientCredentialsGrant(w, r, client, r.Form)
	case service.GrantTypeTokenExchange:
		h.handleTokenExchangeGrant(w, r, client, r.Form)
	}
}

func (h *TokenHandler) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request, client *domain.Client, form url.Values) {
	code := strings.TrimSpace(form.Get("code"))
	redirectURI := strings.TrimSpace(form.Get("redirect_uri"))
	codeVerifier := strings.TrimSpace(form.Get("code_verifier"))

	if code == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	issued, err := h.TokenService.ExchangeAuthorizationCode(r.Context(), client, code, redirectURI, codeVerifier)
	if err != nil {
		writeServiceError(w, r, "authorization_code grant", err)
		return
	}
	writeTokenResponse(w, issued, "")
}

func (h *TokenHandler) handleRefreshGrant(w http.ResponseWriter, r *http.Request, client *domain.Client, form url.Values) {
	refresh := strings.TrimSpace(form.Get("refresh_token"))
	requested := httpx.ParseSpaceDelimitedFields(form.Get("scope"))

	if refresh == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	issued, err := h.TokenService.ExchangeRefreshToken(r.Context(), client, refresh, requested)
	if err != nil {
		writeServiceError(w, r, "refresh grant", err)
		return
	}
	writeTokenResponse(w, issued, "")
}

func (h *TokenHandler) handleClientCredentialsGrant(w http.ResponseWriter, r *http.Request, client *domain.Client, form url.Values) {
	requested := httpx.ParseSpaceDelimitedFields(form.Get("scope"))
	audience := form["audience"]

	issued, err := h.TokenService.ExchangeClientCredentials(r.Context(), client, requested, audience)
	if err != nil {
		writeServiceError(w, r, "client_credentials grant", err)
		return
	}
	writeTokenResponse(w, issued, "")
}

func (h *TokenHandler) handleTokenExchangeGrant(w http.ResponseWriter, r *http.Request, client *domain.Client, form url.Values) {
	req := service.TokenExchangeRequest{
		SubjectToken:       strings.TrimSpace(form.Get("subject_token")),
		SubjectTokenType:   strings.TrimSpace(form.Get("subject_token_type")),
		RequestedTokenType: strings.TrimSpace(form.Get("requested_token_type")),
		ActorToken:         strings.TrimSpace(form.Get("actor_token")),
		Scope:              httpx.ParseSpaceDelimitedFields(form.Get("scope")),
		Audience:           form["audience"],
		Resource:           form["resource"],
	}

	issued, err := h.TokenService.ExchangeToken(r.Context(), client, req)
	if err != nil {
		writeServiceError(w, r, "token exchange", err)
		return
	}
	writeTokenResponse(w, issued, service.TokenTypeIdentifierAccessToken)
}

func writeTokenResponse(w http.ResponseWriter, issued service.Issued, issuedTokenType string) {
	pair := issued.Pair()
	response := authsdk.TokenResponse{
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		IDToken:         pair.IDToken,
		TokenType:       pair.TokenType,
		ExpiresIn:       int(pair.ExpiresIn.Seconds()),
		Scope:           strings.TrimSpace(pair.Scope),
		IssuedTokenType: issuedTokenType,
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}
