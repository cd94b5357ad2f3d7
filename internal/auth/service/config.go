package service

import (
	"fmt"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/pkg/jwtx"
)

// Grant types accepted at the token endpoint.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeTokenExchange     = "urn:ietf:params:oauth:grant-type:token-exchange"
)

// RFC 8693 token type identifiers.
const (
	TokenTypeIdentifierAccessToken = "urn:ietf:params:oauth:token-type:access_token"
)

const (
	ScopeOpenID        = "openid"
	ScopeOfflineAccess = "offline_access"
	ScopeTokenExchange = "token-exchange"
)

type AccessTokenFormat string

const (
	AccessTokenOpaque AccessTokenFormat = "opaque"
	AccessTokenJWT    AccessTokenFormat = "jwt"
)

// RefreshIssuePolicy decides when a grant yields a refresh token.
type RefreshIssuePolicy string

const (
	RefreshIssueAlways        RefreshIssuePolicy = "always"
	RefreshIssueNever         RefreshIssuePolicy = "never"
	RefreshIssueOfflineAccess RefreshIssuePolicy = "offline_access"
)

type RevocationPolicy string

const (
	RevocationLenient RevocationPolicy = "lenient"
	RevocationStrict  RevocationPolicy = "strict"
)

type TokenConfig struct {
	Issuer            string
	AccessTokenFormat AccessTokenFormat

	AccessTokenValidity time.Duration
	// MaxExtendedAccessTokenValidity bounds sliding expiry from creation.
	// Zero disables sliding expiry.
	MaxExtendedAccessTokenValidity time.Duration
	// RefreshTokenValidity of zero issues refresh tokens that never expire.
	RefreshTokenValidity time.Duration
	CodeValidity         time.Duration
	IDTokenValidity      time.Duration
	// UsedTokenRetention is how long consumed tokens without an expiry are
	// remembered for replay detection.
	UsedTokenRetention time.Duration

	RefreshIssuePolicy RefreshIssuePolicy
	RotatePublic       bool
	RotateConfidential bool

	// SubjectClaim names the grant claim used as sub. Empty uses the entity id.
	SubjectClaim string
}

func DefaultTokenConfig() TokenConfig {
	return TokenConfig{
		AccessTokenFormat:   AccessTokenOpaque,
		AccessTokenValidity: time.Hour,
		// Sliding expiry is opt-in.
		MaxExtendedAccessTokenValidity: 0,
		RefreshTokenValidity:           30 * 24 * time.Hour,
		CodeValidity:                   10 * time.Minute,
		IDTokenValidity:                time.Hour,
		UsedTokenRetention:             90 * 24 * time.Hour,
		RefreshIssuePolicy:             RefreshIssueOfflineAccess,
		RotatePublic:                   true,
		RotateConfidential:             false,
	}
}

// Validate rejects inconsistent values. Errors are configuration errors.
func (c TokenConfig) Validate() error {
	switch {
	case c.Issuer == "":
		return configError("issuer is required")
	case c.AccessTokenFormat != AccessTokenOpaque && c.AccessTokenFormat != AccessTokenJWT:
		return configError(fmt.Sprintf("unknown access token format %q", c.AccessTokenFormat))
	case c.AccessTokenValidity <= 0:
		return configError("access token validity must be positive")
	case c.MaxExtendedAccessTokenValidity < 0:
		return configError("max extended access token validity must not be negative")
	case c.MaxExtendedAccessTokenValidity > 0 && c.MaxExtendedAccessTokenValidity < c.AccessTokenValidity:
		return configError("max extended access token validity is shorter than access token validity")
	case c.RefreshTokenValidity < 0:
		return configError("refresh token validity must not be negative")
	case c.CodeValidity <= 0:
		return configError("authorization code validity must be positive")
	case c.IDTokenValidity <= 0:
		return configError("id token validity must be positive")
	case c.UsedTokenRetention <= 0:
		return configError("used token retention must be positive")
	}
	switch c.RefreshIssuePolicy {
	case RefreshIssueAlways, RefreshIssueNever, RefreshIssueOfflineAccess:
	default:
		return configError(fmt.Sprintf("unknown refresh token issue policy %q", c.RefreshIssuePolicy))
	}
	return nil
}

func configError(msg string) error {
	return fmt.Errorf("%w: %s", jwtx.ErrConfiguration, msg)
}

// Rotates reports whether refreshing a token for client consumes it.
func (c TokenConfig) Rotates(client *domain.Client) bool {
	if client.RotateRefreshTokens != nil {
		return *client.RotateRefreshTokens
	}
	if client.IsPublic() {
		return c.RotatePublic
	}
	return c.RotateConfidential
}

func (p RevocationPolicy) Valid() bool {
	return p == RevocationLenient || p == RevocationStrict
}
