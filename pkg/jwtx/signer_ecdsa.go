package jwtx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// curveFor maps each ES algorithm to the only curve it may use (RFC 7518 3.4).
var curveFor = map[string]elliptic.Curve{
	AlgorithmES256: elliptic.P256(),
	AlgorithmES384: elliptic.P384(),
	AlgorithmES512: elliptic.P521(),
}

type ecdsaSigner struct {
	kid    string
	method *jwt.SigningMethodECDSA
	key    *ecdsa.PrivateKey
}

func newECDSASigner(alg, kid string, key *ecdsa.PrivateKey) (*ecdsaSigner, error) {
	want := curveFor[alg]
	if key.Curve == nil || key.Curve.Params().Name != want.Params().Name {
		got := "unknown"
		if key.Curve != nil {
			got = key.Curve.Params().Name
		}
		return nil, configErr(alg, fmt.Sprintf("%s requires curve %s, got %s", alg, want.Params().Name, got), nil)
	}

	method, _ := jwt.GetSigningMethod(alg).(*jwt.SigningMethodECDSA)
	return &ecdsaSigner{kid: kid, method: method, key: key}, nil
}

func (s *ecdsaSigner) Alg() string { return s.method.Alg() }
func (s *ecdsaSigner) KID() string { return s.kid }

func (s *ecdsaSigner) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

func (s *ecdsaSigner) PublicJWK() (JWK, bool) {
	return NewECJWK(s.kid, "sig", s.Alg(), &s.key.PublicKey), true
}

func (s *ecdsaSigner) verificationKey() any { return &s.key.PublicKey }
