package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Scope is a scope definition as granted to a token.
type Scope struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Pattern marks Name as a glob ("files:*") rather than a literal.
	Pattern bool `json:"pattern,omitempty"`
}

// ScopeNames returns the names of scopes in order.
func ScopeNames(scopes []Scope) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		out = append(out, s.Name)
	}
	return out
}

// PKCEInfo binds an authorization code to its code verifier (RFC 7636).
type PKCEInfo struct {
	CodeChallenge       string `json:"codeChallenge"`
	CodeChallengeMethod string `json:"codeChallengeMethod"`
}

// Audience is an ordered list of recipients. It always encodes as a JSON
// array and also decodes the legacy single string form.
type Audience []string

func (a Audience) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(a))
}

func (a *Audience) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*a = nil
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Audience{s}
		return nil
	default:
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return fmt.Errorf("domain: audience: %w", err)
		}
		*a = list
		return nil
	}
}

// Payload is the structured contents of a TokenRecord. It is stored as JSON.
type Payload struct {
	ClientID   string     `json:"clientId"`
	ClientName string     `json:"clientName,omitempty"`
	ClientType ClientType `json:"clientType"`

	Subject string `json:"subject,omitempty"`

	RequestedScope []Scope `json:"requestedScope,omitempty"`
	EffectiveScope []Scope `json:"effectiveScope,omitempty"`

	Audience Audience `json:"audience"`

	RedirectURI  string `json:"redirectUri,omitempty"`
	IssuerURI    string `json:"issuerUri,omitempty"`
	ResponseType string `json:"responseType,omitempty"`

	PKCE *PKCEInfo `json:"pkcsInfo,omitempty"`

	// Seconds. A MaxExtendedValidity of 0 disables sliding expiration.
	TokenValidity       int64 `json:"tokenValidity"`
	MaxExtendedValidity int64 `json:"maxExtendedValidity"`

	FirstRefreshRollingToken string `json:"firstRefreshRollingToken,omitempty"`

	Nonce         string         `json:"nonce,omitempty"`
	OpenIDConnect bool           `json:"openidConnect,omitempty"`
	AuthTime      int64          `json:"authTime,omitempty"`
	Claims        map[string]any `json:"claims,omitempty"`
	GrantType     string         `json:"grantType,omitempty"`
}

// EffectiveScopeNames lists the granted scope names.
func (p *Payload) EffectiveScopeNames() []string { return ScopeNames(p.EffectiveScope) }

// ScopeString is the space-joined effective scope.
func (p *Payload) ScopeString() string { return strings.Join(p.EffectiveScopeNames(), " ") }

func (p *Payload) TokenValidityDuration() time.Duration {
	return time.Duration(p.TokenValidity) * time.Second
}

func (p *Payload) MaxExtendedValidityDuration() time.Duration {
	return time.Duration(p.MaxExtendedValidity) * time.Second
}

// HasScope reports whether name was granted.
func (p *Payload) HasScope(name string) bool {
	for _, s := range p.EffectiveScope {
		if s.Name == name {
			return true
		}
	}
	return false
}

// MarshalPayload encodes p for storage.
func MarshalPayload(p Payload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("domain: marshal payload: %w", err)
	}
	return b, nil
}

// UnmarshalPayload decodes a stored payload.
func UnmarshalPayload(b []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return Payload{}, fmt.Errorf("domain: unmarshal payload: %w", err)
	}
	return p, nil
}
