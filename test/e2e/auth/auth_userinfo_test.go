package auth_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/authcore/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestUserInfoWithMachineToken verifies userinfo accepts any live access
// token and reports its subject and client.
func TestUserInfoWithMachineToken(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	ctx := t.Context()
	client := gateway(baseURL)

	session, err := client.AuthenticateWithClientCredentials(ctx, []string{"files:read"})
	require.NoError(t, err)

	info, err := session.GetUserInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, gatewayClientID, info.Subject())
	require.Equal(t, gatewayClientID, info["client_id"])
	require.Equal(t, "files:read", info["scope"])
}

// TestUserInfoInvalidToken verifies userinfo rejects unknown tokens.
func TestUserInfoInvalidToken(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	client := gateway(baseURL)
	session := client.NewSessionFromTokens("invalid-token-12345", "", "files:read", 3600)

	_, err := session.GetUserInfo(t.Context())
	assertOAuth2Error(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)
}

// TestUserInfoAfterRevoke verifies a revoked token stops working at once.
func TestUserInfoAfterRevoke(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	ctx := t.Context()
	client := gateway(baseURL)

	session, err := client.AuthenticateWithClientCredentials(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, session.Revoke(ctx))

	_, err = session.GetUserInfo(ctx)
	assertOAuth2Error(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)
}
