package jwtx_test

import (
	"crypto/elliptic"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/aussiebroadwan/authcore/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestECJWKCoordinatesArePadded(t *testing.T) {
	t.Parallel()

	cases := []struct {
		alg   string
		curve elliptic.Curve
		size  int
	}{
		{jwtx.AlgorithmES256, elliptic.P256(), 32},
		{jwtx.AlgorithmES384, elliptic.P384(), 48},
		{jwtx.AlgorithmES512, elliptic.P521(), 66},
	}

	for _, tc := range cases {
		t.Run(tc.alg, func(t *testing.T) {
			t.Parallel()
			s, err := jwtx.NewSigner(jwtx.SignerConfig{Algorithm: tc.alg, KeyID: "k", PrivateKeyPEM: mustEC(t, tc.curve)})
			require.NoError(t, err)

			jwk, ok := s.PublicJWK()
			require.True(t, ok)
			require.Equal(t, "EC", jwk.Kty)
			require.Equal(t, tc.curve.Params().Name, jwk.Crv)

			x, err := base64.RawURLEncoding.DecodeString(jwk.X)
			require.NoError(t, err)
			require.Len(t, x, tc.size)
		})
	}
}

func TestKeySetPublishesAndResets(t *testing.T) {
	t.Parallel()

	rs, err := jwtx.NewSigner(jwtx.SignerConfig{Algorithm: jwtx.AlgorithmRS256, KeyID: "rsa", PrivateKeyPEM: mustRSA(t, 2048)})
	require.NoError(t, err)

	ks := jwtx.NewKeySet()
	require.NoError(t, ks.AddSigner(rs))
	require.NoError(t, ks.AddSigner(rs))
	require.Equal(t, 1, ks.Len())

	jwks := ks.PublicJWKS()
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "RS256", jwks.Keys[0].Alg)

	pemStr, err := jwks.Keys[0].PEM()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(pemStr, "-----BEGIN PUBLIC KEY-----"))

	_, err = ks.Get("missing")
	require.ErrorIs(t, err, jwtx.ErrNoKey)

	require.Error(t, ks.ResetFromJWKS(jwtx.JWKS{Keys: []jwtx.JWK{{Kty: "oct", Kid: "x"}}}))
	require.Equal(t, 1, ks.Len())

	require.NoError(t, ks.ResetFromJWKS(jwtx.JWKS{}))
	require.Zero(t, ks.Len())
}
