package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/authcore/internal/auth/service"
	"github.com/aussiebroadwan/authcore/pkg/authsdk"
	"github.com/aussiebroadwan/authcore/pkg/httpx"
)

// LifecycleAuthenticator authenticates bearer tokens against the token
// store. Every successful authentication slides the token's expiry. Store
// failures are passed through unmarked so they surface as server errors.
func LifecycleAuthenticator(s *service.LifecycleService) httpx.Authenticator {
	return httpx.AuthenticatorFunc(func(ctx context.Context, token string) (*httpx.Principal, error) {
		rec, err := s.Authenticate(ctx, token)
		if errors.Is(err, service.ErrInvalidToken) {
			return nil, fmt.Errorf("%w: %w", httpx.ErrInvalidToken, err)
		}
		if err != nil {
			return nil, err
		}
		return &httpx.Principal{
			Subject:   rec.Payload.Subject,
			ClientID:  rec.ClientID(),
			Scopes:    rec.Payload.EffectiveScopeNames(),
			Audience:  rec.Payload.Audience,
			ExpiresAt: rec.ExpiresAt,
			Claims:    service.UserInfo(rec),
		}, nil
	})
}

type UserInfoHandler struct{}

// ServeHTTP handles the OIDC UserInfo endpoint.
//
//	@Summary		Get user information
//	@Description	Returns the claims bound to the presented access token. Each call extends the token's expiry when sliding expiry is enabled.
//	@Tags			OAuth2
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserInfoResponse	"sub plus the claims of the grant"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing access token"
//	@Router			/v1/oauth2/userinfo [get].
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		httpx.WriteBearerError(w, "missing bearer token")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserInfoResponse(p.Claims))
}
