package domain

import "slices"

// ClientType is public or confidential (RFC 6749 2.1).
type ClientType string

const (
	ClientTypePublic       ClientType = "public"
	ClientTypeConfidential ClientType = "confidential"
)

func (t ClientType) Valid() bool {
	return t == ClientTypePublic || t == ClientTypeConfidential
}

type Client struct {
	ID   string
	Name string
	Type ClientType
	// SecretHash is an argon2id PHC string. Empty for public clients.
	SecretHash   string
	RedirectURIs []string
	// Scopes the client may be granted. Entries may be globs.
	Scopes []string
	// Audience is the default aud of tokens issued to the client.
	Audience []string
	// GrantTypes the client may use. Empty allows all.
	GrantTypes []string
	// RotateRefreshTokens overrides the server-wide rotation policy.
	RotateRefreshTokens *bool
}

func (c *Client) IsPublic() bool { return c.Type == ClientTypePublic }

func (c *Client) AllowsRedirect(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

func (c *Client) AllowsGrant(grantType string) bool {
	return len(c.GrantTypes) == 0 || slices.Contains(c.GrantTypes, grantType)
}
