package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/authcore/pkg/jwtx"
	"github.com/aussiebroadwan/authcore/pkg/slogx"
)

// Principal is the caller behind a bearer token.
type Principal struct {
	Subject   string
	ClientID  string
	Scopes    []string
	Audience  []string
	ExpiresAt time.Time
	// Claims holds any extra token claims, keyed by claim name.
	Claims map[string]any
}

// ErrInvalidToken marks an Authenticate failure as a rejected token. Any
// other error is treated as the authenticator failing, not the caller.
var ErrInvalidToken = errors.New("httpx: invalid token")

// Authenticator resolves a raw bearer token into a Principal. Rejections
// must wrap ErrInvalidToken.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, token string) (*Principal, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, token string) (*Principal, error) {
	return f(ctx, token)
}

// JWTAuthenticator accepts self-contained JWT access tokens checked by v.
// Resource servers use it when they never call back to the auth server.
func JWTAuthenticator(v *jwtx.Verifier) Authenticator {
	return AuthenticatorFunc(func(_ context.Context, token string) (*Principal, error) {
		claims, err := v.Verify(token)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		p := &Principal{
			Subject:  claims.Subject,
			ClientID: claims.ClientID,
			Scopes:   claims.Scopes(),
			Audience: claims.Audience,
		}
		if claims.ExpiresAt != nil {
			p.ExpiresAt = claims.ExpiresAt.Time
		}
		return p, nil
	})
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, raw, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func AuthnMiddleware(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				WriteBearerError(w, "missing bearer token")
				return
			}

			p, err := a.Authenticate(ctx, raw)
			if errors.Is(err, ErrInvalidToken) {
				WriteBearerError(w, "token verification failed")
				log.Warn("bearer authentication failed", "err", err)
				return
			}
			if err != nil {
				log.Error("bearer authentication unavailable", "err", err)
				WriteJSON(w, http.StatusInternalServerError, map[string]string{
					"error":             "server_error",
					"error_description": "unable to verify token",
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithPrincipal(ctx, p)))
		})
	}
}

// WriteBearerError writes an RFC 6750 invalid_token challenge.
func WriteBearerError(w http.ResponseWriter, desc string) {
	NoCache(w)
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"invalid_token","error_description":"` + desc + `"}`))
}
