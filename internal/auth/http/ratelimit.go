package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/service"
	"github.com/aussiebroadwan/authcore/pkg/httpx"
	"github.com/aussiebroadwan/authcore/pkg/slogx"
)

// RateLimits sizes the token buckets of each endpoint group.
type RateLimits struct {
	Token       httpx.RateLimit // /token, per authenticated client
	Client      httpx.RateLimit // /revoke and /introspect, per authenticated client
	UserInfo    httpx.RateLimit // /userinfo, per client the bearer token belongs to
	Discovery   httpx.RateLimit // JWKS and discovery, per address
	HealthCheck httpx.RateLimit // /livez and /readyz, per address
}

// DefaultRateLimits keeps the token endpoint tight enough to slow secret
// guessing while leaving the public documents open to polling.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Token:       httpx.RateLimit{Requests: 5, Window: time.Minute, Burst: 5},
		Client:      httpx.RateLimit{Requests: 20, Window: time.Minute, Burst: 20},
		UserInfo:    httpx.RateLimit{Requests: 100, Window: time.Minute, Burst: 100},
		Discovery:   httpx.RateLimit{Requests: 1000, Window: time.Minute, Burst: 1000},
		HealthCheck: httpx.RateLimit{Requests: 100, Window: time.Minute, Burst: 100},
	}
}

// limitByClient charges form requests to the client their credentials
// resolve to. Anonymous callers and failed authentications share a bucket
// per address, so secret guessing is throttled too. The resolution rides on
// the request context and the handler does not repeat it.
func limitByClient(l *httpx.Limiter, clients *service.ClientAuthenticator) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !parseForm(w, r) {
				return
			}

			key := "ip:" + httpx.ClientIP(r)
			if creds := clientCredentials(r); creds.Present() {
				ctx, client, err := clients.Resolve(r.Context(), creds)
				if err == nil {
					key = "client:" + client.ID
				}
				r = r.WithContext(ctx)
			}

			if ok, wait := l.Allow(key); !ok {
				slogx.FromContext(r.Context()).Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"retry_after", wait.String(),
				)
				httpx.WriteRateLimited(w, l.Limit(), wait)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// limitByBearerClient charges requests to the client of the authenticated
// bearer token. It runs after AuthnMiddleware.
func limitByBearerClient(l *httpx.Limiter) httpx.Middleware {
	return httpx.RateLimitMiddleware(l, func(r *http.Request) string {
		if p, ok := httpx.PrincipalFromContext(r.Context()); ok && p.ClientID != "" {
			return "client:" + p.ClientID
		}
		return "ip:" + httpx.ClientIP(r)
	})
}
