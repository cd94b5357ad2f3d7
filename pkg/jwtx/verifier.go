package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifyOptions are the claim expectations applied after the signature check.
type VerifyOptions struct {
	// Issuer must equal iss when set.
	Issuer string
	// Audience must intersect aud when set.
	Audience []string
	// Leeway absorbs clock skew on exp and nbf.
	Leeway time.Duration
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// Verifier checks signatures and standard claims.
type Verifier struct {
	algs    []string
	keyFunc jwt.Keyfunc
	opts    VerifyOptions
}

// NewVerifier verifies RSA and EC tokens whose kid is in keys.
func NewVerifier(keys *KeySet, opts VerifyOptions) *Verifier {
	return &Verifier{
		algs: []string{
			AlgorithmRS256, AlgorithmRS384, AlgorithmRS512,
			AlgorithmES256, AlgorithmES384, AlgorithmES512,
		},
		keyFunc: func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, fmt.Errorf("%w: missing kid", ErrUnknownKID)
			}
			pub, err := keys.Get(kid)
			if err != nil {
				return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
			}
			return pub, nil
		},
		opts: opts,
	}
}

// NewSignerVerifier verifies tokens produced by s, including HMAC ones.
func NewSignerVerifier(s Signer, opts VerifyOptions) *Verifier {
	key := s.verificationKey()
	return &Verifier{
		algs:    []string{s.Alg()},
		keyFunc: func(*jwt.Token) (any, error) { return key, nil },
		opts:    opts,
	}
}

// Verify parses token and returns its claims when the signature and every
// configured expectation hold.
func (v *Verifier) Verify(token string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(v.algs),
		jwt.WithLeeway(v.opts.Leeway),
		jwt.WithExpirationRequired(),
	}
	if v.opts.Now != nil {
		parserOpts = append(parserOpts, jwt.WithTimeFunc(v.opts.Now))
	}

	claims := &Claims{}
	if _, err := jwt.NewParser(parserOpts...).ParseWithClaims(token, claims, v.keyFunc); err != nil {
		return nil, mapParseError(err)
	}

	if err := claims.ValidateIssuer(v.opts.Issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateAudience(v.opts.Audience); err != nil {
		return nil, err
	}
	return claims, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKID):
		return fmt.Errorf("%w: %v", ErrUnknownKID, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSig, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
