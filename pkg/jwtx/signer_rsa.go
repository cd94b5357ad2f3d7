package jwtx

import (
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type rsaSigner struct {
	kid    string
	method *jwt.SigningMethodRSA
	key    *rsa.PrivateKey
}

func newRSASigner(alg, kid string, key *rsa.PrivateKey) (*rsaSigner, error) {
	if bits := key.N.BitLen(); bits < MinRSABits {
		return nil, configErr(alg, fmt.Sprintf("RSA key is %d bits, need at least %d", bits, MinRSABits), nil)
	}
	if err := key.Validate(); err != nil {
		return nil, configErr(alg, "RSA key failed validation", err)
	}

	method, _ := jwt.GetSigningMethod(alg).(*jwt.SigningMethodRSA)
	return &rsaSigner{kid: kid, method: method, key: key}, nil
}

func (s *rsaSigner) Alg() string { return s.method.Alg() }
func (s *rsaSigner) KID() string { return s.kid }

func (s *rsaSigner) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

func (s *rsaSigner) PublicJWK() (JWK, bool) {
	return NewRSAJWK(s.kid, "sig", s.Alg(), &s.key.PublicKey), true
}

func (s *rsaSigner) verificationKey() any { return &s.key.PublicKey }
