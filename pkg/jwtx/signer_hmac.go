package jwtx

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type hmacSigner struct {
	kid    string
	method *jwt.SigningMethodHMAC
	secret []byte
}

func newHMACSigner(alg, kid string, secret []byte) (*hmacSigner, error) {
	if len(secret) == 0 {
		return nil, configErr(alg, "shared secret is required", nil)
	}
	if want := minHMACKeyBytes[alg]; len(secret) < want {
		return nil, configErr(alg, fmt.Sprintf("shared secret is %d bytes, need at least %d", len(secret), want), nil)
	}

	method, _ := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	return &hmacSigner{
		kid:    kid,
		method: method,
		secret: append([]byte(nil), secret...),
	}, nil
}

func (s *hmacSigner) Alg() string { return s.method.Alg() }
func (s *hmacSigner) KID() string { return s.kid }

func (s *hmacSigner) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.secret)
}

func (s *hmacSigner) PublicJWK() (JWK, bool) { return JWK{}, false }
func (s *hmacSigner) verificationKey() any   { return s.secret }
