package jwtx

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// loadPrivateKey parses PKCS1, SEC1 or PKCS8 PEM into a private key. The
// caller checks the key family against the algorithm.
func loadPrivateKey(alg string, pemKey []byte) (any, error) {
	if len(pemKey) == 0 {
		return nil, configErr(alg, "private key is required", nil)
	}

	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, configErr(alg, "private key is not valid PEM", nil)
	}

	var (
		key any
		err error
	)
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		key, err = x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	default:
		return nil, configErr(alg, fmt.Sprintf("unsupported PEM block %q", block.Type), nil)
	}
	if err != nil {
		return nil, configErr(alg, "parse private key", err)
	}
	return key, nil
}

func keyKind(key any) string {
	switch key.(type) {
	case *rsa.PrivateKey:
		return "RSA"
	case *ecdsa.PrivateKey:
		return "EC"
	case ed25519.PrivateKey:
		return "Ed25519"
	default:
		return fmt.Sprintf("%T", key)
	}
}
