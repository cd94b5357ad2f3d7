package http

import (
	"net/http"

	"github.com/aussiebroadwan/authcore/internal/auth/service"
	"github.com/aussiebroadwan/authcore/pkg/authsdk"
	"github.com/aussiebroadwan/authcore/pkg/httpx"
)

// IntrospectHandler serves POST /v1/oauth2/introspect following RFC7662.
type IntrospectHandler struct {
	IntrospectionService *service.IntrospectionService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Introspection Endpoint
//	@Description	Introspects an access or refresh token and returns metadata about it (RFC 7662).
//	@Description	Unknown, expired and revoked tokens return exactly {"active":false}.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string							true	"The token to introspect"
//	@Param			token_type_hint	formData	string							false	"Ignored; both token kinds are searched"	Enums(access_token, refresh_token)
//	@Param			client_id		formData	string							false	"Client identifier, when not using HTTP Basic"
//	@Param			client_secret	formData	string							false	"Client secret, when not using HTTP Basic"
//	@Success		200				{object}	authsdk.IntrospectionResponse	"Token introspection result"
//	@Failure		400				{object}	authsdk.ErrorResponse			"error, error_description"
//	@Failure		401				{object}	authsdk.ErrorResponse			"error, error_description"
//	@Header			200				{string}	Cache-Control					"no-store"
//	@Header			200				{string}	Pragma							"no-cache"
//	@Router			/v1/oauth2/introspect [post].
func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. Ensure the right content-type and parse the form body
	if !parseForm(w, r) {
		return
	}

	token := r.Form.Get("token")
	if token == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	// 2. Describe the token. Inactive is a result, not an error.
	res, err := h.IntrospectionService.Introspect(r.Context(), token, clientCredentials(r))
	if err != nil {
		writeServiceError(w, r, "introspection", err)
		return
	}

	// 3. Return the response with no-cache headers
	if !res.Active {
		writeInactiveResponse(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

// writeInactiveResponse returns the minimal RFC7662 response for inactive tokens.
func writeInactiveResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	httpx.NoCache(w)
	w.WriteHeader(http.StatusOK)

	// Per RFC7662: "If the token is not active, does not exist on this server,
	// or the protected resource is not allowed to introspect this particular token,
	// then the authorization server MUST return an introspection response with
	// the 'active' field set to 'false'"
	_, _ = w.Write([]byte(`{"active":false}`))
}
