package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/authcore/internal/auth/service"
	"github.com/aussiebroadwan/authcore/pkg/authsdk"
	"github.com/aussiebroadwan/authcore/pkg/httpx"
)

// RevokeHandler serves POST /v1/oauth2/revoke following RFC 7009. Access
// tokens are revoked individually; a refresh token takes every token of its
// rotation chain with it. Unknown tokens return 200 OK to prevent token
// scanning attacks.
type RevokeHandler struct {
	RevocationService *service.RevocationService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Revocation Endpoint
//	@Description	Revokes a previously issued token (RFC 7009).
//	@Description	Revoking a refresh token revokes every token of its rotation chain. The hint only orders the lookup.
//	@Description	The endpoint is idempotent and returns 200 OK even for invalid/unknown tokens to prevent token scanning attacks.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string	true	"The token to revoke"
//	@Param			token_type_hint	formData	string	false	"Hint about token type"	Enums(access_token, refresh_token)
//	@Param			client_id		formData	string	false	"Client identifier, when not using HTTP Basic"
//	@Param			client_secret	formData	string	false	"Client secret, when not using HTTP Basic"
//	@Success		200				"Token revoked successfully (or was already invalid)"
//	@Failure		400				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Header			200				{string}	Pragma					"no-cache"
//	@Router			/v1/oauth2/revoke [post].
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. Ensure the right content-type and parse the form body
	if !parseForm(w, r) {
		return
	}

	token := strings.TrimSpace(r.Form.Get("token"))
	if token == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	// 2. Revoke. Unknown and foreign tokens succeed silently.
	err := h.RevocationService.Revoke(r.Context(), service.RevocationRequest{
		Token:         token,
		TokenTypeHint: r.Form.Get("token_type_hint"),
		Client:        clientCredentials(r),
	})
	if err != nil {
		writeServiceError(w, r, "revocation", err)
		return
	}

	// 3. Return 200 OK with empty body (RFC 7009)
	httpx.NoCache(w)
	w.WriteHeader(http.StatusOK)
}
