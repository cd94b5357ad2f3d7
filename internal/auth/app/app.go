package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/clients"
	"github.com/aussiebroadwan/authcore/internal/auth/events"
	httpapi "github.com/aussiebroadwan/authcore/internal/auth/http"
	"github.com/aussiebroadwan/authcore/internal/auth/metrics"
	"github.com/aussiebroadwan/authcore/internal/auth/service"
	"github.com/aussiebroadwan/authcore/internal/auth/store"
	"github.com/aussiebroadwan/authcore/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/authcore/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/authcore/pkg/jwtx"
	"github.com/aussiebroadwan/authcore/pkg/slogx"
	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	signer   jwtx.Signer
	keys     *jwtx.KeySet
	registry *clients.Registry
	events   events.Publisher
	prom     *prometheus.Registry
	metrics  *metrics.Metrics

	// Services
	clientAuth           *service.ClientAuthenticator
	tokenService         *service.TokenService
	revocationService    *service.RevocationService
	introspectionService *service.IntrospectionService
	lifecycleService     *service.LifecycleService
	housekeepingService  *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authcore",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	registry, err := clients.Load(cfg.ClientsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client registry: %w", err)
	}
	app.registry = registry
	app.logger.Info("client registry loaded", "clients", registry.Len(), "scopes", len(registry.Scopes()))

	signer, err := InitSigner(ctx, cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signer: %w", err)
	}
	app.signer = signer
	app.keys = jwtx.NewKeySet()
	if err := app.keys.AddSigner(signer); err != nil {
		return nil, fmt.Errorf("failed to publish signing key: %w", err)
	}

	if err := app.initStore(ctx); err != nil {
		return nil, err
	}

	if err := app.initEvents(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.prom = prometheus.NewRegistry()
	app.prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(app.prom)

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// Start housekeeping service
	g.Go(func() error {
		return app.housekeepingService.Run(gctx)
	})

	g.Go(func() error {
		app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	// Block until we receive a shutdown signal or a component fails
	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutdown requested", "cause", context.Cause(gctx))
		return app.Shutdown()
	})

	return g.Wait()
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.events.Close(); err != nil {
		app.logger.Error("error closing event publisher", "error", err)
	}

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing token store", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initStore opens the configured token store and applies migrations.
// Connecting is retried with backoff so the service can start alongside
// its database.
func (app *Application) initStore(ctx context.Context) error {
	connect := func() (store.Store, error) {
		switch app.cfg.StoreDriver {
		case StoreRedis:
			return redis.NewStore(ctx, redis.Config{
				Addr:      app.cfg.RedisAddr,
				Username:  app.cfg.RedisUsername,
				Password:  app.cfg.RedisPassword,
				DB:        app.cfg.RedisDB,
				KeyPrefix: app.cfg.RedisPrefix,
			})
		default:
			st, err := sqlite.NewStore("file:" + app.cfg.DatabaseFile)
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			return st, nil
		}
	}

	db, err := backoff.Retry(ctx,
		func() (store.Store, error) {
			st, err := connect()
			if err != nil {
				app.logger.Warn("token store not reachable, retrying", "driver", app.cfg.StoreDriver, "error", err)
			}
			return st, err
		},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(app.cfg.StoreConnectTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply token store migrations: %w", err)
	}

	app.logger.Info("token store ready", "driver", app.cfg.StoreDriver)
	return nil
}

func (app *Application) initEvents() error {
	if app.cfg.EventsAMQPURL == "" {
		app.events = events.Nop{}
		app.logger.Info("event publishing disabled")
		return nil
	}

	pub, err := events.DialAMQP(app.cfg.EventsAMQPURL, app.cfg.EventsExchange)
	if err != nil {
		return fmt.Errorf("failed to connect event publisher: %w", err)
	}
	app.events = pub
	app.logger.Info("publishing token events over amqp")
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	factory := &service.TokenFactory{Signer: app.signer, Config: app.cfg.Tokens}
	app.clientAuth = &service.ClientAuthenticator{Registry: app.registry}

	app.tokenService = &service.TokenService{
		Store:    app.db,
		Registry: app.registry,
		Factory:  factory,
		Refresh: &service.RefreshEngine{
			Store:   app.db,
			Factory: factory,
			Events:  app.events,
			Metrics: app.metrics,
		},
		Events:  app.events,
		Metrics: app.metrics,
	}

	app.revocationService = &service.RevocationService{
		Store:   app.db,
		Clients: app.clientAuth,
		Policy:  app.cfg.RevocationPolicy,
		Events:  app.events,
		Metrics: app.metrics,
	}

	app.introspectionService = &service.IntrospectionService{
		Store:             app.db,
		Clients:           app.clientAuth,
		RequireClientAuth: app.cfg.IntrospectionRequireClientAuth,
		Metrics:           app.metrics,
	}

	app.lifecycleService = &service.LifecycleService{Store: app.db, Metrics: app.metrics}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.metrics,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys,
		app.signer,
		app.cfg.Issuer,
		BuildVersion,
		app.db,
		app.prom,
		app.logger,
	)

	// Wire services to router
	router.Scopes = app.registry.Scopes()
	router.Clients = app.clientAuth
	router.TokenService = app.tokenService
	router.RevocationService = app.revocationService
	router.IntrospectionService = app.introspectionService
	router.LifecycleService = app.lifecycleService
	router.Limits = app.cfg.RateLimits
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
