package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/internal/auth/metrics"
	"github.com/aussiebroadwan/authcore/internal/auth/store"
	"github.com/aussiebroadwan/authcore/pkg/cryptox"
	"github.com/aussiebroadwan/authcore/pkg/slogx"
)

// LifecycleService authenticates bearer access tokens on resource access
// and slides their expiry forward.
type LifecycleService struct {
	Store   store.Store
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Authenticate resolves a presented access token. Unknown and expired
// tokens are ErrInvalidToken. When the token allows sliding expiry its
// expiry moves to now+validity, capped at creation+max extended validity.
func (s *LifecycleService) Authenticate(ctx context.Context, value string) (domain.TokenRecord, error) {
	now := clock(s.Now)
	tokens := s.Store.Tokens()

	rec, err := tokens.GetToken(ctx, domain.TokenTypeAccessToken, cryptox.FingerprintToken(value))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenRecord{}, ErrInvalidToken
		}
		return domain.TokenRecord{}, err
	}
	if rec.Expired(now) {
		return domain.TokenRecord{}, ErrInvalidToken
	}

	next, ok := ExtendedExpiry(rec, now)
	if !ok || !next.After(rec.ExpiresAt) {
		return rec, nil
	}

	got, err := tokens.ExtendTokenExpiry(ctx, rec.Type, rec.Hash, next)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Revoked while we were looking at it.
			return domain.TokenRecord{}, ErrInvalidToken
		}
		return domain.TokenRecord{}, err
	}
	rec.ExpiresAt = got
	s.Metrics.Extended()

	slogx.FromContext(ctx).Debug("access token expiry extended",
		slogx.Hash("token", rec.Hash),
		slog.Time("expires_at", got),
	)
	return rec, nil
}

// ExtendedExpiry computes the sliding expiry of rec at now. ok is false when
// the record does not slide.
func ExtendedExpiry(rec domain.TokenRecord, now time.Time) (time.Time, bool) {
	maxExt := rec.Payload.MaxExtendedValidityDuration()
	if maxExt <= 0 || rec.ExpiresAt.IsZero() {
		return time.Time{}, false
	}

	next := now.Add(rec.Payload.TokenValidityDuration())
	if limit := rec.CreatedAt.Add(maxExt); next.After(limit) {
		next = limit
	}
	return next, true
}

// UserInfo is the OIDC userinfo document for an authenticated access token.
func UserInfo(rec domain.TokenRecord) map[string]any {
	out := make(map[string]any, len(rec.Payload.Claims)+3)
	if rec.Payload.HasScope(ScopeOpenID) {
		for k, v := range rec.Payload.Claims {
			out[k] = v
		}
	}
	out["sub"] = rec.Payload.Subject
	out["client_id"] = rec.ClientID()
	if scope := rec.Payload.ScopeString(); scope != "" {
		out["scope"] = scope
	}
	return out
}
