package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/internal/auth/events"
	"github.com/aussiebroadwan/authcore/internal/auth/metrics"
	"github.com/aussiebroadwan/authcore/internal/auth/store"
	"github.com/aussiebroadwan/authcore/pkg/cryptox"
	"github.com/aussiebroadwan/authcore/pkg/slogx"
)

// RevocationService implements RFC 7009 token revocation.
type RevocationService struct {
	Store   store.Store
	Clients *ClientAuthenticator
	Policy  RevocationPolicy
	Events  events.Publisher
	Metrics *metrics.Metrics
	Now     func() time.Time

	MaxAttempts int
}

type RevocationRequest struct {
	Token         string
	TokenTypeHint string
	Client        ClientCredentials
}

// Revoke deletes the presented token. Refresh tokens take their whole
// chain with them. Unknown tokens and tokens of other clients are a
// silent success so the endpoint is no token oracle.
func (s *RevocationService) Revoke(ctx context.Context, req RevocationRequest) error {
	l := slogx.FromContext(ctx)
	now := clock(s.Now)

	var caller *domain.Client
	if s.Policy == RevocationStrict || req.Client.Present() {
		c, err := s.Clients.Authenticate(ctx, req.Client)
		if err != nil {
			return err
		}
		caller = c
	}

	if req.Token == "" {
		return ErrInvalidRequest
	}
	hash := cryptox.FingerprintToken(req.Token)

	order := []domain.TokenType{domain.TokenTypeAccessToken, domain.TokenTypeRefreshToken}
	if req.TokenTypeHint == domain.TokenTypeRefreshToken.String() {
		order = []domain.TokenType{domain.TokenTypeRefreshToken, domain.TokenTypeAccessToken}
	}

	var (
		revoked *domain.TokenRecord
		removed int64
	)
	err := runTx(ctx, s.Store, s.MaxAttempts, func(tx store.Tx) error {
		revoked, removed = nil, 0
		tokens := tx.Tokens()

		for _, typ := range order {
			rec, err := tokens.GetToken(ctx, typ, hash)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			if !mayRevoke(caller, rec) {
				l.Info("revocation of a token owned by another client ignored",
					slog.String("owner_client_id", rec.ClientID()),
				)
				return nil
			}

			if typ == domain.TokenTypeRefreshToken && rec.ChainAnchor() != "" {
				n, err := tokens.DeleteTokenChain(ctx, rec.ClientID(), rec.ChainAnchor())
				if err != nil {
					return err
				}
				removed = n
			} else {
				if err := tokens.DeleteToken(ctx, typ, hash); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return nil
					}
					return err
				}
				removed = 1
			}
			revoked = &rec
			return nil
		}
		return nil
	})
	if err != nil {
		l.Error("revocation failed", slog.Any("error", err))
		return err
	}

	if revoked == nil {
		return nil
	}

	s.Metrics.Revoked(revoked.Type.String(), removed)
	if revoked.Type == domain.TokenTypeRefreshToken {
		publish(ctx, s.Events, chainEvent(revoked.ClientID(), revoked.ChainAnchor(), events.ReasonRevoked, removed, now))
	} else {
		publish(ctx, s.Events, tokenEvent(events.TypeTokenRevoked, *revoked, now))
	}

	l.Info("token revoked",
		slog.String("client_id", revoked.ClientID()),
		slog.String("token_type", revoked.Type.String()),
		slog.Int64("removed", removed),
	)
	return nil
}

// mayRevoke decides ownership. Without an authenticated caller only tokens
// of public clients can be revoked.
func mayRevoke(caller *domain.Client, rec domain.TokenRecord) bool {
	if caller == nil {
		return rec.Payload.ClientType == domain.ClientTypePublic
	}
	return caller.ID == rec.ClientID()
}
