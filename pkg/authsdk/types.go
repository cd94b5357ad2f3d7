package authsdk

import (
	"github.com/aussiebroadwan/authcore/pkg/jwtx"
)

// ============================================================================
// Internal Response Types (used for JSON unmarshaling)
// ============================================================================

// ErrorResponse represents a standard OAuth2 error response per RFC 6749.
// This is used internally for parsing HTTP error responses.
// Client code should use the OAuth2Error type from errors.go instead.
type ErrorResponse struct {
	// Error is the OAuth2 error code (e.g., "invalid_request", "invalid_grant")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Token Types
// ============================================================================

// TokenResponse represents the OAuth2 token endpoint response per RFC 6749.
// This is returned from the POST /v1/oauth2/token endpoint for every grant type.
type TokenResponse struct {
	// AccessToken is the opaque or JWT access token used to call protected resources
	AccessToken string `json:"access_token"`

	// RefreshToken is omitted when the grant issues none or rotation is disabled
	RefreshToken string `json:"refresh_token,omitempty"`

	// IDToken is present when the granted scope contains "openid"
	IDToken string `json:"id_token,omitempty"`

	// TokenType is always "Bearer" (RFC 6750)
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`

	// Scope is the space-delimited list of scopes granted to this token
	Scope string `json:"scope,omitempty"`

	// IssuedTokenType is set on token exchange responses (RFC 8693)
	IssuedTokenType string `json:"issued_token_type,omitempty"`
}

// IntrospectionResponse represents the RFC7662 token introspection response.
// When a token is inactive, only the Active field is set.
type IntrospectionResponse struct {
	Active bool `json:"active"`

	// Optional fields (only present when active=true)
	Scope     string   `json:"scope,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	TokenType string   `json:"token_type,omitempty"`
	Exp       int64    `json:"exp,omitempty"`
	Iat       int64    `json:"iat,omitempty"`
	Nbf       int64    `json:"nbf,omitempty"`
	Sub       string   `json:"sub,omitempty"`
	Aud       []string `json:"aud,omitempty"`
	Iss       string   `json:"iss,omitempty"`
}

// UserInfoResponse is the OIDC UserInfo document. "sub" is always present;
// other members come from the claims bound to the grant.
type UserInfoResponse map[string]any

// Subject returns the "sub" member.
func (u UserInfoResponse) Subject() string {
	s, _ := u["sub"].(string)
	return s
}

// ============================================================================
// Discovery Types
// ============================================================================

// DiscoveryResponse is the subset of OpenID Provider Metadata the server publishes.
type DiscoveryResponse struct {
	Issuer                            string   `json:"issuer"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	UserInfoEndpoint                  string   `json:"userinfo_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	// Status is "ok" or "degraded"
	Status string `json:"status"`

	// Uptime is how long the process has been running
	Uptime string `json:"uptime"`

	// Version is the build version
	Version string `json:"version"`

	// Checks is only present on /readyz
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each dependency checked by /readyz.
type HealthChecks struct {
	Store  string `json:"store"`
	Signer string `json:"signer"`
}

// ============================================================================
// Key Types
// ============================================================================

// JWKSResponse is the JSON Web Key Set served at /.well-known/jwks.json.
type JWKSResponse jwtx.JWKS
