package service

import (
	"crypto/subtle"
	"strings"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/pkg/cryptox"
)

const (
	PKCEMethodS256  = "S256"
	PKCEMethodPlain = "plain"
)

// validatePKCE normalises the challenge sent with an authorization request.
// Public clients must send one; confidential clients may omit it.
func validatePKCE(challenge, method string, client *domain.Client) (*domain.PKCEInfo, error) {
	trimmedChallenge := strings.TrimSpace(challenge)
	trimmedMethod := strings.TrimSpace(method)

	if trimmedChallenge == "" {
		if client.IsPublic() {
			return nil, ErrInvalidRequest
		}
		return nil, nil
	}

	var normalizedMethod string
	switch {
	case strings.EqualFold(trimmedMethod, PKCEMethodS256):
		normalizedMethod = PKCEMethodS256
	case strings.EqualFold(trimmedMethod, PKCEMethodPlain):
		normalizedMethod = PKCEMethodPlain
	case trimmedMethod == "":
		// Default to S256 when challenge provided but method omitted.
		normalizedMethod = PKCEMethodS256
	default:
		return nil, ErrInvalidRequest
	}

	return &domain.PKCEInfo{
		CodeChallenge:       trimmedChallenge,
		CodeChallengeMethod: normalizedMethod,
	}, nil
}

func verifyCodeVerifier(pkce *domain.PKCEInfo, verifier string) bool {
	if pkce == nil || strings.TrimSpace(pkce.CodeChallenge) == "" {
		// No PKCE challenge stored; accept regardless of verifier.
		return true
	}
	challenge := strings.TrimSpace(pkce.CodeChallenge)

	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return false
	}

	method := strings.TrimSpace(pkce.CodeChallengeMethod)
	switch {
	case method == "" || strings.EqualFold(method, PKCEMethodPlain):
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	case strings.EqualFold(method, PKCEMethodS256):
		expected := cryptox.S256Challenge(verifier)
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(expected)) == 1
	default:
		return false
	}
}
