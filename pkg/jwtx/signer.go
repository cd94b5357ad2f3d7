package jwtx

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Supported JWS algorithms.
const (
	AlgorithmHS256 = "HS256"
	AlgorithmHS384 = "HS384"
	AlgorithmHS512 = "HS512"
	AlgorithmRS256 = "RS256"
	AlgorithmRS384 = "RS384"
	AlgorithmRS512 = "RS512"
	AlgorithmES256 = "ES256"
	AlgorithmES384 = "ES384"
	AlgorithmES512 = "ES512"
)

// Family groups algorithms by the kind of key they need.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyHMAC
	FamilyRSA
	FamilyEC
)

func (f Family) String() string {
	switch f {
	case FamilyHMAC:
		return "HMAC"
	case FamilyRSA:
		return "RSA"
	case FamilyEC:
		return "EC"
	default:
		return "unknown"
	}
}

// AlgorithmFamily reports the key family alg belongs to.
func AlgorithmFamily(alg string) Family {
	switch alg {
	case AlgorithmHS256, AlgorithmHS384, AlgorithmHS512:
		return FamilyHMAC
	case AlgorithmRS256, AlgorithmRS384, AlgorithmRS512:
		return FamilyRSA
	case AlgorithmES256, AlgorithmES384, AlgorithmES512:
		return FamilyEC
	default:
		return FamilyUnknown
	}
}

// MinRSABits is the smallest RSA modulus accepted for signing.
const MinRSABits = 2048

// minHMACKeyBytes is the secret length each HMAC variant requires: the hash
// output size.
var minHMACKeyBytes = map[string]int{
	AlgorithmHS256: 32,
	AlgorithmHS384: 48,
	AlgorithmHS512: 64,
}

// MinHMACSecretBytes returns the minimum secret length for an HMAC
// algorithm, or 0 when alg is not HMAC.
func MinHMACSecretBytes(alg string) int { return minHMACKeyBytes[alg] }

// SignerConfig selects an algorithm and its key material. HMAC algorithms
// read Secret; RSA and EC algorithms read PrivateKeyPEM.
type SignerConfig struct {
	Algorithm     string
	KeyID         string
	Secret        []byte
	PrivateKeyPEM []byte
}

// Signer produces compact JWS tokens.
type Signer interface {
	// Alg is the JWS alg header value, also used for diagnostics.
	Alg() string
	KID() string
	Sign(claims jwt.Claims) (string, error)
	// PublicJWK returns the verification key for publication. HMAC signers
	// have nothing to publish and return false.
	PublicJWK() (JWK, bool)

	verificationKey() any
}

// NewSigner validates cfg and builds the matching Signer. Every rejection
// satisfies errors.Is(err, ErrConfiguration).
func NewSigner(cfg SignerConfig) (Signer, error) {
	alg := strings.ToUpper(strings.TrimSpace(cfg.Algorithm))

	switch AlgorithmFamily(alg) {
	case FamilyHMAC:
		return newHMACSigner(alg, cfg.KeyID, cfg.Secret)

	case FamilyRSA:
		key, err := loadPrivateKey(alg, cfg.PrivateKeyPEM)
		if err != nil {
			return nil, err
		}
		rk, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, configErr(alg, fmt.Sprintf("key family mismatch: %s requires an RSA key, got %s", alg, keyKind(key)), nil)
		}
		return newRSASigner(alg, cfg.KeyID, rk)

	case FamilyEC:
		key, err := loadPrivateKey(alg, cfg.PrivateKeyPEM)
		if err != nil {
			return nil, err
		}
		ek, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, configErr(alg, fmt.Sprintf("key family mismatch: %s requires an EC key, got %s", alg, keyKind(key)), nil)
		}
		return newECDSASigner(alg, cfg.KeyID, ek)

	default:
		return nil, configErr(cfg.Algorithm, "unsupported algorithm", nil)
	}
}

// DecodeSecret reads an HMAC secret from configuration. A "hex:" prefix
// means the rest is hex encoded; anything else is taken literally.
func DecodeSecret(s string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(s, "hex:"); ok {
		b, err := hex.DecodeString(strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("jwtx: decode hex secret: %w", err)
		}
		return b, nil
	}
	return []byte(s), nil
}
