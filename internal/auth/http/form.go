package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/authcore/internal/auth/service"
	"github.com/aussiebroadwan/authcore/pkg/authsdk"
)

// parseForm enforces the urlencoded content type the OAuth2 endpoints
// require and parses the body. It writes the error response itself.
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		authsdk.ErrInvalidContentType.WriteError(w)
		return false
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return false
	}
	return true
}

// clientCredentials reads client authentication from HTTP Basic, whose
// parts are form-urlencoded (RFC 6749 2.3.1), or from the form body.
func clientCredentials(r *http.Request) service.ClientCredentials {
	if id, secret, ok := r.BasicAuth(); ok {
		if v, err := url.QueryUnescape(id); err == nil {
			id = v
		}
		if v, err := url.QueryUnescape(secret); err == nil {
			secret = v
		}
		return service.ClientCredentials{ID: id, Secret: secret}
	}
	return service.ClientCredentials{
		ID:     strings.TrimSpace(r.Form.Get("client_id")),
		Secret: r.Form.Get("client_secret"),
	}
}
