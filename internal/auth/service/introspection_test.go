package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestIntrospectUnknownTokenIsMinimal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	for _, token := range []string{"", "nope", "eyJhbGciOiJIUzI1NiJ9.e30.x"} {
		res, err := h.introspect.Introspect(ctx, token, ClientCredentials{})
		require.NoError(t, err)

		b, err := json.Marshal(res)
		require.NoError(t, err)
		require.JSONEq(t, `{"active":false}`, string(b))

		var keys map[string]any
		require.NoError(t, json.Unmarshal(b, &keys))
		require.Len(t, keys, 1)
	}
}

func TestIntrospectActiveTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, func(c *TokenConfig) { c.RefreshTokenValidity = 0 })

	issued := h.grant(t, h.public, ScopeOfflineAccess, "files:read")

	res, err := h.introspect.Introspect(ctx, issued.Access.Value, ClientCredentials{})
	require.NoError(t, err)
	require.Equal(t, domain.Introspection{
		Active:    true,
		Scope:     "offline_access files:read",
		ClientID:  testPublicID,
		TokenType: "bearer",
		Iat:       h.clock.Now().Unix(),
		Nbf:       h.clock.Now().Unix(),
		Exp:       h.clock.Now().Add(time.Hour).Unix(),
		Sub:       testEntityID,
		Aud:       []string{testPublicID, testAPIID},
		Iss:       testIssuer,
	}, res)

	res, err = h.introspect.Introspect(ctx, issued.Refresh.Value, ClientCredentials{})
	require.NoError(t, err)
	require.True(t, res.Active)
	require.Zero(t, res.Exp)

	h.clock.Advance(time.Hour)
	res, err = h.introspect.Introspect(ctx, issued.Access.Value, ClientCredentials{})
	require.NoError(t, err)
	require.False(t, res.Active)
}

func TestIntrospectClientAuthentication(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	issued := h.grant(t, h.public)

	_, err := h.introspect.Introspect(ctx, issued.Access.Value, ClientCredentials{ID: testAPIID, Secret: "wrong"})
	require.ErrorIs(t, err, ErrInvalidClient)

	res, err := h.introspect.Introspect(ctx, issued.Access.Value, ClientCredentials{ID: testAPIID, Secret: testSecret})
	require.NoError(t, err)
	require.True(t, res.Active)

	h.introspect.RequireClientAuth = true
	_, err = h.introspect.Introspect(ctx, issued.Access.Value, ClientCredentials{})
	require.ErrorIs(t, err, ErrInvalidClient)
}
