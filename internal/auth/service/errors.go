package service

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/authcore/pkg/jwtx"
)

// Request errors carry the RFC 6749 error code as their text.
var (
	ErrInvalidRequest       = errors.New("invalid_request")
	ErrInvalidClient        = errors.New("invalid_client")
	ErrInvalidGrant         = errors.New("invalid_grant")
	ErrUnauthorizedClient   = errors.New("unauthorized_client")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrInvalidScope         = errors.New("invalid_scope")
	ErrInvalidToken         = errors.New("invalid_token")
)

// Replays are invalid grants to the client; the distinction only matters
// for logging, metrics and events.
var (
	ErrRefreshReplayed = fmt.Errorf("%w: refresh token reused", ErrInvalidGrant)
	ErrCodeReplayed    = fmt.Errorf("%w: authorization code reused", ErrInvalidGrant)
)

// ErrClaimMapping means the configured subject claim could not be resolved.
// It is a configuration problem, not a client error.
var ErrClaimMapping = fmt.Errorf("%w: subject claim mapping", jwtx.ErrConfiguration)
