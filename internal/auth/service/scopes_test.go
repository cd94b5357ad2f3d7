package service

import (
	"testing"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestEffectiveScope(t *testing.T) {
	t.Parallel()

	client := &domain.Client{Scopes: []string{"openid", "profile", "files:*"}}
	catalog := []domain.Scope{
		{Name: "openid"},
		{Name: "profile", Description: "Your profile"},
		{Name: "files:*", Description: "File access", Pattern: true},
		{Name: "admin"},
	}

	t.Run("drops unknown and disallowed scopes", func(t *testing.T) {
		got := EffectiveScope([]string{"openid", "admin", "nope", "profile"}, client, catalog, nil)
		require.Equal(t, []string{"openid", "profile"}, domain.ScopeNames(got))
		require.Equal(t, "Your profile", got[1].Description)
	})

	t.Run("pattern scopes resolve to the concrete name", func(t *testing.T) {
		got := EffectiveScope([]string{"files:read", "files:read"}, client, catalog, nil)
		require.Equal(t, []domain.Scope{{Name: "files:read", Description: "File access"}}, got)
	})

	t.Run("empty request uses defaults", func(t *testing.T) {
		got := EffectiveScope(nil, client, catalog, []string{"openid"})
		require.Equal(t, []string{"openid"}, domain.ScopeNames(got))
	})

	t.Run("empty catalog knows every scope", func(t *testing.T) {
		got := EffectiveScope([]string{"files:write", "admin"}, client, nil, nil)
		require.Equal(t, []string{"files:write"}, domain.ScopeNames(got))
	})
}

func TestNarrowScope(t *testing.T) {
	t.Parallel()

	granted := []domain.Scope{{Name: "openid"}, {Name: "files:*", Pattern: true}}

	t.Run("empty request keeps granted", func(t *testing.T) {
		got, err := narrowScope(nil, granted)
		require.NoError(t, err)
		require.Equal(t, granted, got)
	})

	t.Run("subset and pattern matches", func(t *testing.T) {
		got, err := narrowScope([]string{"files:read"}, granted)
		require.NoError(t, err)
		require.Equal(t, []string{"files:read"}, domain.ScopeNames(got))
	})

	t.Run("superset is rejected", func(t *testing.T) {
		_, err := narrowScope([]string{"openid", "admin"}, granted)
		require.ErrorIs(t, err, ErrInvalidScope)
	})
}
