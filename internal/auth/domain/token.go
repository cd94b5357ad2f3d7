package domain

import (
	"fmt"
	"time"
)

// TokenType tags the three token kinds the server issues. The set is closed;
// switches over it are exhaustive.
type TokenType int

const (
	TokenTypeAuthorizationCode TokenType = iota + 1
	TokenTypeAccessToken
	TokenTypeRefreshToken
)

// ErrUnknownTokenType is returned when parsing an unrecognised wire name.
var ErrUnknownTokenType = fmt.Errorf("domain: unknown token type")

// String returns the OAuth2 wire name.
func (t TokenType) String() string {
	switch t {
	case TokenTypeAuthorizationCode:
		return "authorization_code"
	case TokenTypeAccessToken:
		return "access_token"
	case TokenTypeRefreshToken:
		return "refresh_token"
	default:
		return fmt.Sprintf("TokenType(%d)", int(t))
	}
}

func (t TokenType) Valid() bool {
	switch t {
	case TokenTypeAuthorizationCode, TokenTypeAccessToken, TokenTypeRefreshToken:
		return true
	default:
		return false
	}
}

// ParseTokenType is the inverse of String.
func ParseTokenType(s string) (TokenType, error) {
	switch s {
	case "authorization_code":
		return TokenTypeAuthorizationCode, nil
	case "access_token":
		return TokenTypeAccessToken, nil
	case "refresh_token":
		return TokenTypeRefreshToken, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTokenType, s)
	}
}

func (t TokenType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTokenType, int(t))
	}
	return []byte(t.String()), nil
}

func (t *TokenType) UnmarshalText(b []byte) error {
	v, err := ParseTokenType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// TokenRecord is the stored form of an authorization code, access token or
// refresh token. (Type, Hash) is unique.
type TokenRecord struct {
	Type TokenType

	// Value is the external value handed to the client. It is only set on
	// records that were just minted and is never persisted.
	Value string

	// Hash is the base64url SHA-256 fingerprint of Value and the storage key.
	Hash string

	// Owner is the entity the token represents; the client id for
	// client_credentials grants.
	Owner string

	CreatedAt time.Time
	// ExpiresAt is zero for tokens that never expire.
	ExpiresAt time.Time
	// ConsumedAt is only set on records read from the used view.
	ConsumedAt time.Time

	Payload Payload
}

// Expired reports whether the record has lapsed at now.
func (r *TokenRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// ChainAnchor is the fingerprint of the first refresh token of the record's
// rotation chain, or empty when the record belongs to none.
func (r *TokenRecord) ChainAnchor() string {
	return r.Payload.FirstRefreshRollingToken
}

// ClientID is a shortcut for Payload.ClientID.
func (r *TokenRecord) ClientID() string {
	return r.Payload.ClientID
}

// TokenPair is what the token endpoint returns.
type TokenPair struct {
	AccessToken  string
	RefreshToken string // empty when none was issued
	IDToken      string // empty unless openid was granted
	TokenType    string // always "Bearer"
	ExpiresIn    time.Duration
	Scope        string // space-delimited effective scope

	// IssuedTokenType is only set on token exchange responses.
	IssuedTokenType string
}
