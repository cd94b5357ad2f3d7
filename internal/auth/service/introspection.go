package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/internal/auth/metrics"
	"github.com/aussiebroadwan/authcore/internal/auth/store"
	"github.com/aussiebroadwan/authcore/pkg/cryptox"
)

// IntrospectionService implements RFC 7662.
type IntrospectionService struct {
	Store   store.Store
	Clients *ClientAuthenticator
	// RequireClientAuth rejects anonymous callers with ErrInvalidClient.
	RequireClientAuth bool
	Metrics           *metrics.Metrics
	Now               func() time.Time
}

// Introspect describes the presented token. Anything that is not a live
// access or refresh token is reported inactive, never as an error.
func (s *IntrospectionService) Introspect(ctx context.Context, token string, creds ClientCredentials) (domain.Introspection, error) {
	if s.RequireClientAuth || creds.Present() {
		if _, err := s.Clients.Authenticate(ctx, creds); err != nil {
			return domain.Introspection{}, err
		}
	}

	res, err := s.introspect(ctx, token)
	if err != nil {
		return domain.Introspection{}, err
	}
	s.Metrics.Introspected(res.Active)
	return res, nil
}

func (s *IntrospectionService) introspect(ctx context.Context, token string) (domain.Introspection, error) {
	inactive := domain.Introspection{Active: false}
	if token == "" {
		return inactive, nil
	}

	now := clock(s.Now)
	hash := cryptox.FingerprintToken(token)

	for _, typ := range []domain.TokenType{domain.TokenTypeAccessToken, domain.TokenTypeRefreshToken} {
		rec, err := s.Store.Tokens().GetToken(ctx, typ, hash)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return domain.Introspection{}, err
		}
		if rec.Expired(now) {
			return inactive, nil
		}
		return describe(rec), nil
	}
	return inactive, nil
}

// describe reports exp as issued, iat plus validity, even when the access
// token's expiry has since slid forward.
func describe(rec domain.TokenRecord) domain.Introspection {
	iat := rec.CreatedAt.Unix()
	res := domain.Introspection{
		Active:    true,
		Scope:     rec.Payload.ScopeString(),
		ClientID:  rec.ClientID(),
		TokenType: "bearer",
		Iat:       iat,
		Nbf:       iat,
		Sub:       rec.Payload.Subject,
		Aud:       []string(rec.Payload.Audience),
		Iss:       rec.Payload.IssuerURI,
	}
	if rec.Payload.TokenValidity > 0 {
		res.Exp = iat + rec.Payload.TokenValidity
	}
	return res
}
