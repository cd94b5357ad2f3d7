package domain

import "time"

// GrantContext is everything the token factory needs to mint tokens for one
// validated grant. The acting entity is always explicit.
type GrantContext struct {
	Client         *Client
	GrantType      string
	RequestedScope []string
	Audience       []string
	ResponseType   string
	PKCE           *PKCEInfo
	EntityID       string
	// Claims are attributes of the entity, used for claim mapping and
	// copied into ID tokens and userinfo.
	Claims      map[string]any
	Nonce       string
	RedirectURI string
	AuthTime    time.Time
}

// Introspection is an RFC 7662 response. An inactive result encodes as
// exactly {"active":false}.
type Introspection struct {
	Active    bool     `json:"active"`
	Scope     string   `json:"scope,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	TokenType string   `json:"token_type,omitempty"`
	Iat       int64    `json:"iat,omitempty"`
	Exp       int64    `json:"exp,omitempty"`
	Nbf       int64    `json:"nbf,omitempty"`
	Sub       string   `json:"sub,omitempty"`
	Aud       []string `json:"aud,omitempty"`
	Iss       string   `json:"iss,omitempty"`
}
