package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	httpapi "github.com/aussiebroadwan/authcore/internal/auth/http"
	"github.com/aussiebroadwan/authcore/internal/auth/service"
	"github.com/aussiebroadwan/authcore/pkg/httpx"
	"github.com/aussiebroadwan/authcore/pkg/jwtx"
)

// Store drivers.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Signing key sources.
const (
	KeySourceEnv       = "env"
	KeySourceFile      = "file"
	KeySourceAWS       = "aws"
	KeySourceEphemeral = "ephemeral"
)

type Config struct {
	Issuer string // Required: issuer claim and base URL for discovery

	StoreDriver   string // Optional: sqlite or redis (default: sqlite)
	DatabaseFile  string // Optional: path to SQLite database file (default: ./auth.db)
	RedisAddr     string // Required for redis: host:port
	RedisUsername string // Optional
	RedisPassword string // Optional
	RedisDB       int    // Optional (default: 0)
	RedisPrefix   string // Optional: key namespace (default: authcore:)

	SigningAlgorithm   string // Optional: HS256..ES512 (default: RS256)
	SigningKeyID       string // Optional: kid header (default: derived from the source)
	SigningKeySource   string // Optional: env, file, aws or ephemeral (default: ephemeral)
	SigningSecret      string // env source, HMAC: the shared secret
	SigningKeyPEM      string // env source, RSA/EC: the PEM encoded private key
	SigningKeyFile     string // file source: path to a PEM key or HMAC secret
	SigningKeySecretID string // aws source: Secrets Manager secret id or ARN

	Tokens     service.TokenConfig
	RateLimits httpapi.RateLimits // Optional: RATELIMIT_<TIER>_{REQUESTS,WINDOW_SEC,BURST}

	RevocationPolicy               service.RevocationPolicy // Optional: lenient or strict (default: lenient)
	IntrospectionRequireClientAuth bool                     // Optional (default: false)
	ClientsFile                    string                   // Required: YAML client registry
	EventsAMQPURL                  string                   // Optional: events are discarded when empty
	EventsExchange                 string                   // Optional (default: authcore.events)
	Env                            string                   // Environment (dev, staging, prod) (default: dev)
	LogLevel                       string                   // Log level (debug, info, warn, error) (default: info)
	LogFormat                      string                   // Log format (json, text) (default: json)
	Port                           int                      // HTTP server port (default: 8080)
	ShutdownGracePeriod            time.Duration            // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval           time.Duration            // Housekeeping interval (default: 1h)
	StoreConnectTimeout            time.Duration            // Give up connecting to the store after this long (default: 30s)
}

func LoadConfig() Config {
	tokens := service.DefaultTokenConfig()
	tokens.Issuer = getEnvOrDefault("AUTH_ISSUER", "http://localhost:8080")
	tokens.AccessTokenFormat = service.AccessTokenFormat(getEnvOrDefault("AUTH_ACCESS_TOKEN_FORMAT", string(tokens.AccessTokenFormat)))
	tokens.AccessTokenValidity = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_VALIDITY", tokens.AccessTokenValidity)
	tokens.MaxExtendedAccessTokenValidity = getEnvDurationOrDefault(
		"AUTH_MAX_EXTENDED_ACCESS_TOKEN_VALIDITY",
		tokens.MaxExtendedAccessTokenValidity,
	)
	tokens.RefreshTokenValidity = getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_VALIDITY", tokens.RefreshTokenValidity)
	tokens.CodeValidity = getEnvDurationOrDefault("AUTH_CODE_VALIDITY", tokens.CodeValidity)
	tokens.IDTokenValidity = getEnvDurationOrDefault("AUTH_ID_TOKEN_VALIDITY", tokens.IDTokenValidity)
	tokens.UsedTokenRetention = getEnvDurationOrDefault("AUTH_USED_TOKEN_RETENTION", tokens.UsedTokenRetention)
	tokens.RefreshIssuePolicy = service.RefreshIssuePolicy(
		getEnvOrDefault("AUTH_REFRESH_TOKEN_ISSUE_POLICY", string(tokens.RefreshIssuePolicy)),
	)
	tokens.RotatePublic = getEnvBoolOrDefault("AUTH_ROTATE_REFRESH_PUBLIC", tokens.RotatePublic)
	tokens.RotateConfidential = getEnvBoolOrDefault("AUTH_ROTATE_REFRESH_CONFIDENTIAL", tokens.RotateConfidential)
	tokens.SubjectClaim = os.Getenv("AUTH_SUBJECT_CLAIM")

	return Config{
		Issuer:        tokens.Issuer,
		StoreDriver:   strings.ToLower(getEnvOrDefault("AUTH_STORE_DRIVER", StoreSQLite)),
		DatabaseFile:  getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		RedisAddr:     os.Getenv("AUTH_REDIS_ADDR"),
		RedisUsername: os.Getenv("AUTH_REDIS_USERNAME"),
		RedisPassword: os.Getenv("AUTH_REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("AUTH_REDIS_DB", 0),
		RedisPrefix:   os.Getenv("AUTH_REDIS_PREFIX"),

		SigningAlgorithm:   strings.ToUpper(getEnvOrDefault("AUTH_SIGNING_ALGORITHM", jwtx.AlgorithmRS256)),
		SigningKeyID:       os.Getenv("AUTH_SIGNING_KEY_ID"),
		SigningKeySource:   strings.ToLower(getEnvOrDefault("AUTH_SIGNING_KEY_SOURCE", KeySourceEphemeral)),
		SigningSecret:      os.Getenv("AUTH_SIGNING_SECRET"),
		SigningKeyPEM:      os.Getenv("AUTH_SIGNING_KEY_PEM"),
		SigningKeyFile:     os.Getenv("AUTH_SIGNING_KEY_FILE"),
		SigningKeySecretID: os.Getenv("AUTH_SIGNING_KEY_SECRET_ID"),

		Tokens:     tokens,
		RateLimits: loadRateLimits(),

		RevocationPolicy: service.RevocationPolicy(
			strings.ToLower(getEnvOrDefault("AUTH_REVOCATION_POLICY", string(service.RevocationLenient))),
		),
		IntrospectionRequireClientAuth: getEnvBoolOrDefault("AUTH_INTROSPECTION_REQUIRE_CLIENT_AUTH", false),
		ClientsFile:                    getEnvOrDefault("AUTH_CLIENTS_FILE", "clients.yaml"),
		EventsAMQPURL:                  os.Getenv("AUTH_EVENTS_AMQP_URL"),
		EventsExchange:                 os.Getenv("AUTH_EVENTS_EXCHANGE"),
		Env:                            getEnvOrDefault("ENV", "dev"),
		LogLevel:                       getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:                      getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                           getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:            getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval:           getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		StoreConnectTimeout:            getEnvDurationOrDefault("AUTH_STORE_CONNECT_TIMEOUT", 30*time.Second),
	}
}

// Validate rejects inconsistent settings before anything is started. Errors
// satisfy errors.Is(err, jwtx.ErrConfiguration).
func (c Config) Validate() error {
	var errs []error

	if err := c.Tokens.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.StoreDriver {
	case StoreSQLite:
		if c.DatabaseFile == "" {
			errs = append(errs, configError("AUTH_DATABASE_FILE is required for the sqlite store"))
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, configError("AUTH_REDIS_ADDR is required for the redis store"))
		}
	default:
		errs = append(errs, configError(fmt.Sprintf("unknown AUTH_STORE_DRIVER %q", c.StoreDriver)))
	}

	switch c.SigningKeySource {
	case KeySourceEphemeral:
	case KeySourceEnv:
		if c.SigningSecret == "" && c.SigningKeyPEM == "" {
			errs = append(errs, configError("AUTH_SIGNING_SECRET or AUTH_SIGNING_KEY_PEM is required for the env key source"))
		}
	case KeySourceFile:
		if c.SigningKeyFile == "" {
			errs = append(errs, configError("AUTH_SIGNING_KEY_FILE is required for the file key source"))
		}
	case KeySourceAWS:
		if c.SigningKeySecretID == "" {
			errs = append(errs, configError("AUTH_SIGNING_KEY_SECRET_ID is required for the aws key source"))
		}
	default:
		errs = append(errs, configError(fmt.Sprintf("unknown AUTH_SIGNING_KEY_SOURCE %q", c.SigningKeySource)))
	}

	if !c.RevocationPolicy.Valid() {
		errs = append(errs, configError(fmt.Sprintf("unknown AUTH_REVOCATION_POLICY %q", c.RevocationPolicy)))
	}
	for _, rl := range []struct {
		tier  string
		limit httpx.RateLimit
	}{
		{"STRICT", c.RateLimits.Token},
		{"MODERATE", c.RateLimits.Client},
		{"LENIENT", c.RateLimits.UserInfo},
		{"LENIENT", c.RateLimits.HealthCheck},
		{"PUBLIC", c.RateLimits.Discovery},
	} {
		if rl.limit.Requests <= 0 || rl.limit.Window <= 0 || rl.limit.Burst <= 0 {
			errs = append(errs, configError(fmt.Sprintf("RATELIMIT_%s values must be positive", rl.tier)))
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, configError(fmt.Sprintf("PORT %d out of range", c.Port)))
	}

	return errors.Join(errs...)
}

// loadRateLimits maps the RATELIMIT_<TIER> settings onto the endpoints:
// STRICT sizes /token, MODERATE revocation and introspection, LENIENT
// userinfo and the health checks, PUBLIC the discovery documents.
func loadRateLimits() httpapi.RateLimits {
	l := httpapi.DefaultRateLimits()
	l.Token = getEnvRateLimitOrDefault("STRICT", l.Token)
	l.Client = getEnvRateLimitOrDefault("MODERATE", l.Client)
	l.UserInfo = getEnvRateLimitOrDefault("LENIENT", l.UserInfo)
	l.HealthCheck = getEnvRateLimitOrDefault("LENIENT", l.HealthCheck)
	l.Discovery = getEnvRateLimitOrDefault("PUBLIC", l.Discovery)
	return l
}

func configError(msg string) error {
	return fmt.Errorf("%w: %s", jwtx.ErrConfiguration, msg)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are seconds, matching the *ValiditySeconds settings
	// the token lifetimes are usually written in.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

func getEnvRateLimitOrDefault(tier string, defaultValue httpx.RateLimit) httpx.RateLimit {
	prefix := "RATELIMIT_" + tier + "_"
	windowSec := getEnvIntOrDefault(prefix+"WINDOW_SEC", int(defaultValue.Window/time.Second))
	return httpx.RateLimit{
		Requests: getEnvIntOrDefault(prefix+"REQUESTS", defaultValue.Requests),
		Window:   time.Duration(windowSec) * time.Second,
		Burst:    getEnvIntOrDefault(prefix+"BURST", defaultValue.Burst),
	}
}
