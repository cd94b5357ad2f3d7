package service

import (
	"path"
	"strings"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
)

// globMatch uses path.Match syntax, so "files:*" matches "files:read".
func globMatch(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if p == name || globMatch(p, name) {
			return true
		}
	}
	return false
}

// EffectiveScope filters requested down to what the client may be granted
// and the server knows. Unknown and disallowed scopes are dropped without
// error. An empty request falls back to defaults.
func EffectiveScope(requested []string, client *domain.Client, catalog []domain.Scope, defaults []string) []domain.Scope {
	if len(requested) == 0 {
		requested = defaults
	}

	out := make([]domain.Scope, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, name := range requested {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		if !matchesAny(client.Scopes, name) {
			continue
		}
		def, ok := lookupScope(catalog, name)
		if !ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, def)
	}
	return out
}

// lookupScope resolves name against the catalog. An empty catalog knows
// every scope.
func lookupScope(catalog []domain.Scope, name string) (domain.Scope, bool) {
	if len(catalog) == 0 {
		return domain.Scope{Name: name}, true
	}
	for _, s := range catalog {
		if s.Name == name {
			return s, true
		}
	}
	for _, s := range catalog {
		if s.Pattern && globMatch(s.Name, name) {
			return domain.Scope{Name: name, Description: s.Description}, true
		}
	}
	return domain.Scope{}, false
}

// narrowScope maps each requested scope onto a previously granted one,
// exactly or through a granted pattern. Any unmapped scope is
// ErrInvalidScope. An empty request keeps granted.
func narrowScope(requested []string, granted []domain.Scope) ([]domain.Scope, error) {
	if len(requested) == 0 {
		return granted, nil
	}

	out := make([]domain.Scope, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, name := range requested {
		if _, ok := seen[name]; ok {
			continue
		}
		s, ok := mapScope(granted, name)
		if !ok {
			return nil, ErrInvalidScope
		}
		seen[name] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

func mapScope(granted []domain.Scope, name string) (domain.Scope, bool) {
	for _, g := range granted {
		if g.Name == name {
			return g, true
		}
	}
	for _, g := range granted {
		if g.Pattern && globMatch(g.Name, name) {
			return domain.Scope{Name: name, Description: g.Description}, true
		}
	}
	return domain.Scope{}, false
}

func scopeNames(raw []string) []domain.Scope {
	out := make([]domain.Scope, 0, len(raw))
	for _, name := range raw {
		out = append(out, domain.Scope{Name: name})
	}
	return out
}

func hasScope(scopes []domain.Scope, name string) bool {
	for _, s := range scopes {
		if s.Name == name {
			return true
		}
	}
	return false
}

func withoutScope(scopes []domain.Scope, name string) []domain.Scope {
	out := make([]domain.Scope, 0, len(scopes))
	for _, s := range scopes {
		if s.Name != name {
			out = append(out, s)
		}
	}
	return out
}
