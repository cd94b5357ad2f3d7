package jwtx

import (
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/authcore/pkg/idx"
	"github.com/golang-jwt/jwt/v5"
)

// Claims covers both JWT access tokens (RFC 9068 shape) and OIDC ID tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Space separated, as in the token response.
	Scope    string `json:"scope,omitempty"`
	ClientID string `json:"client_id,omitempty"`

	// ID token only
	Nonce           string           `json:"nonce,omitempty"`
	AuthorizedParty string           `json:"azp,omitempty"`
	AuthTime        *jwt.NumericDate `json:"auth_time,omitempty"`
}

// NewAccessClaims builds access token claims valid from now for ttl. nbf is
// always equal to iat.
func NewAccessClaims(subject, clientID, issuer string, audience, scopes []string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(slices.Clone(audience)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Scope:    strings.Join(scopes, " "),
		ClientID: clientID,
	}
}

// NewIDClaims builds OIDC ID token claims for clientID. A zero authTime is
// left out.
func NewIDClaims(subject, clientID, issuer, nonce string, authTime time.Time, ttl time.Duration, now time.Time) Claims {
	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{clientID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Nonce:           nonce,
		AuthorizedParty: clientID,
	}
	if !authTime.IsZero() {
		c.AuthTime = jwt.NewNumericDate(authTime)
	}
	return c
}

// NewJTI returns a unique token id.
func NewJTI() string { return idx.New().String() }

// Scopes splits the scope claim.
func (c *Claims) Scopes() []string { return strings.Fields(c.Scope) }

// ValidateIssuer checks iss when expected is set.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected != "" && c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience passes when any expected value is present in aud.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}
