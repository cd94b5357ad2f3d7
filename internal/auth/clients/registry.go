// Package clients loads the OAuth2 client registry and scope catalog from a
// YAML file.
package clients

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/pkg/cryptox"
	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("clients: client not found")

// File is the on-disk layout.
type File struct {
	Scopes  []ScopeEntry  `yaml:"scopes"`
	Clients []ClientEntry `yaml:"clients"`
}

type ScopeEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Pattern     bool   `yaml:"pattern"`
	// Default scopes are granted when a request names none.
	Default bool `yaml:"default"`
}

type ClientEntry struct {
	ID   string            `yaml:"id"`
	Name string            `yaml:"name"`
	Type domain.ClientType `yaml:"type"`
	// SecretHash is an argon2id PHC string. Secret is a plaintext
	// alternative for development and is hashed at load.
	SecretHash          string   `yaml:"secret_hash"`
	Secret              string   `yaml:"secret"`
	RedirectURIs        []string `yaml:"redirect_uris"`
	Scopes              []string `yaml:"scopes"`
	Audience            []string `yaml:"audience"`
	GrantTypes          []string `yaml:"grant_types"`
	RotateRefreshTokens *bool    `yaml:"rotate_refresh_tokens"`
}

// Registry is an immutable, in-memory client registry.
type Registry struct {
	clients  map[string]*domain.Client
	scopes   []domain.Scope
	defaults []string
}

// Load reads and validates a registry file.
func Load(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("clients: read %s: %w", path, err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("clients: parse: %w", err)
	}
	return FromFile(f)
}

func FromFile(f File) (*Registry, error) {
	r := &Registry{clients: make(map[string]*domain.Client, len(f.Clients))}

	for _, s := range f.Scopes {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, errors.New("clients: scope without name")
		}
		r.scopes = append(r.scopes, domain.Scope{Name: name, Description: s.Description, Pattern: s.Pattern})
		if s.Default {
			r.defaults = append(r.defaults, name)
		}
	}

	for i, e := range f.Clients {
		c, err := e.toClient()
		if err != nil {
			return nil, fmt.Errorf("clients: entry %d: %w", i, err)
		}
		if _, dup := r.clients[c.ID]; dup {
			return nil, fmt.Errorf("clients: duplicate client id %q", c.ID)
		}
		r.clients[c.ID] = c
	}
	return r, nil
}

// New builds a registry from already constructed clients.
func New(scopes []domain.Scope, defaults []string, clients ...domain.Client) *Registry {
	r := &Registry{
		clients:  make(map[string]*domain.Client, len(clients)),
		scopes:   scopes,
		defaults: defaults,
	}
	for i := range clients {
		c := clients[i]
		r.clients[c.ID] = &c
	}
	return r
}

func (e ClientEntry) toClient() (*domain.Client, error) {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		return nil, errors.New("client id is required")
	}
	typ := e.Type
	if typ == "" {
		typ = domain.ClientTypeConfidential
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("client %q: unknown type %q", id, typ)
	}

	hash := e.SecretHash
	if hash == "" && e.Secret != "" {
		var err error
		if hash, err = cryptox.HashSecret(e.Secret); err != nil {
			return nil, err
		}
	}
	switch {
	case typ == domain.ClientTypeConfidential && hash == "":
		return nil, fmt.Errorf("client %q: confidential client needs a secret", id)
	case typ == domain.ClientTypePublic && hash != "":
		return nil, fmt.Errorf("client %q: public client must not have a secret", id)
	}

	name := e.Name
	if name == "" {
		name = id
	}
	return &domain.Client{
		ID:                  id,
		Name:                name,
		Type:                typ,
		SecretHash:          hash,
		RedirectURIs:        e.RedirectURIs,
		Scopes:              e.Scopes,
		Audience:            e.Audience,
		GrantTypes:          e.GrantTypes,
		RotateRefreshTokens: e.RotateRefreshTokens,
	}, nil
}

// GetClient returns a copy of the client so callers cannot mutate the
// registry.
func (r *Registry) GetClient(_ context.Context, id string) (*domain.Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// Scopes is the catalog of scopes the server knows. Empty means any scope a
// client is allowed is accepted.
func (r *Registry) Scopes() []domain.Scope { return r.scopes }

func (r *Registry) DefaultScopes() []string { return r.defaults }

func (r *Registry) Len() int { return len(r.clients) }
