/*
Package authsdk is a client SDK for the authcore authorization server.

# Overview

SDKClient wraps the unauthenticated OAuth2 endpoints (token, revocation,
introspection, JWKS, discovery, health). Session holds the tokens from a
grant and refreshes the access token automatically.

	client := authsdk.NewSDKClient("https://auth.example.com", "web", "")

	// Redeem an authorization code obtained out of band.
	session, err := client.AuthenticateWithCode(ctx, code, redirectURI, verifier)

	// Protected call; refreshes first if the access token has lapsed.
	info, err := session.GetUserInfo(ctx)

	// Revoke the refresh token and its whole rotation chain.
	err = session.Revoke(ctx)

# Rotation

When the server rotates refresh tokens every refresh returns a new one and
the previous one is consumed. Presenting a consumed refresh token again is
treated as theft: the server revokes the entire chain and answers
invalid_grant. Sessions are safe for concurrent use and serialise their
refreshes so a single Session never replays its own token.

# Errors

Server errors are returned as *OAuth2Error:

	var oerr *authsdk.OAuth2Error
	if errors.As(err, &oerr) && oerr.Code == authsdk.ErrorCodeInvalidGrant {
		// log in again
	}
*/
package authsdk
