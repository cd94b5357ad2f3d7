package jwtx

import (
	"errors"
	"fmt"
)

// ErrConfiguration classifies every signing misconfiguration. Signers are
// never constructed in this state, so it only surfaces at startup.
var ErrConfiguration = errors.New("jwtx: invalid signing configuration")

var (
	ErrNoKey       = errors.New("jwtx: key not found")
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// ConfigurationError describes why a SignerConfig was rejected.
type ConfigurationError struct {
	Algorithm string
	Reason    string
	Err       error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("jwtx: invalid signing configuration for %q: %s", e.Algorithm, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }
func (e *ConfigurationError) Unwrap() error        { return e.Err }

func configErr(alg, reason string, err error) error {
	return &ConfigurationError{Algorithm: alg, Reason: reason, Err: err}
}
