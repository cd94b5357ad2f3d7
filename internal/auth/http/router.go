package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/internal/auth/service"
	"github.com/aussiebroadwan/authcore/internal/auth/store"
	"github.com/aussiebroadwan/authcore/pkg/httpx"
	"github.com/aussiebroadwan/authcore/pkg/jwtx"
	"github.com/aussiebroadwan/authcore/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/aussiebroadwan/authcore/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	signer       jwtx.Signer
	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	gatherer     prometheus.Gatherer

	store                store.Store
	Scopes               []domain.Scope
	Clients              *service.ClientAuthenticator
	TokenService         *service.TokenService
	RevocationService    *service.RevocationService
	IntrospectionService *service.IntrospectionService
	LifecycleService     *service.LifecycleService
	Limits               RateLimits
}

func NewRouter(
	keys *jwtx.KeySet,
	signer jwtx.Signer,
	issuer, buildVersion string,
	st store.Store,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		signer:       signer,
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		gatherer:     gatherer,
		logger:       logger,
		Limits:       DefaultRateLimits(),
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerWellKnown()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			AuthCore Token Service API
//	@version		0.1.0
//	@description	OAuth2 and OpenID Connect token service: issuance, refresh token rotation with replay detection, revocation and introspection.
//	@description
//	@description				Access tokens are opaque by default. JWTs and ID tokens can be verified using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/authcore
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth2() {
	// POST /token - strict per-client limit covering every grant type
	tokenHandler := &TokenHandler{Clients: r.Clients, TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/oauth2/token",
		httpx.Chain(tokenHandler,
			limitByClient(httpx.NewLimiter(r.Limits.Token), r.Clients),
		),
	)

	// POST /revoke - authentication is optional under the lenient policy,
	// anonymous callers are limited per address
	revokeHandler := &RevokeHandler{RevocationService: r.RevocationService}
	r.Mux.Handle("POST /v1/oauth2/revoke",
		httpx.Chain(revokeHandler,
			limitByClient(httpx.NewLimiter(r.Limits.Client), r.Clients),
		),
	)

	// Introspection endpoint (RFC7662). Resource servers authenticate as
	// clients and are limited as such.
	introspectHandler := &IntrospectHandler{IntrospectionService: r.IntrospectionService}
	r.Mux.Handle("POST /v1/oauth2/introspect",
		httpx.Chain(introspectHandler,
			limitByClient(httpx.NewLimiter(r.Limits.Client), r.Clients),
		),
	)

	// Userinfo authenticates against the token store so sliding expiry applies
	userInfo := httpx.Chain(&UserInfoHandler{},
		httpx.AuthnMiddleware(LifecycleAuthenticator(r.LifecycleService)),
		limitByBearerClient(httpx.NewLimiter(r.Limits.UserInfo)),
	)
	r.Mux.Handle("GET /v1/oauth2/userinfo", userInfo)
	r.Mux.Handle("POST /v1/oauth2/userinfo", userInfo)
}

func (r *Router) registerWellKnown() {
	// Public documents polled by resource servers
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.NewLimiter(r.Limits.Discovery)),
		),
	)

	alg := ""
	if r.signer != nil {
		alg = r.signer.Alg()
	}
	r.Mux.Handle("GET /.well-known/openid-configuration",
		httpx.Chain(DiscoveryHandler(r.issuer, alg, r.Scopes),
			httpx.RateLimitByIP(httpx.NewLimiter(r.Limits.Discovery)),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient limits, monitoring systems poll frequently
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.NewLimiter(r.Limits.HealthCheck)),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.signer),
			httpx.RateLimitByIP(httpx.NewLimiter(r.Limits.HealthCheck)),
		),
	)

	if r.gatherer != nil {
		r.Mux.Handle("GET /metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	}
}
