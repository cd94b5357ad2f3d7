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

// RefreshEngine implements the refresh_token grant with rotation and
// replay detection.
type RefreshEngine struct {
	Store   store.Store
	Factory *TokenFactory
	Events  events.Publisher
	Metrics *metrics.Metrics
	Now     func() time.Time
	// MaxAttempts bounds retries of conflicting transactions.
	MaxAttempts int
}

type RefreshRequest struct {
	// Client is the authenticated client presenting the token.
	Client       *domain.Client
	RefreshToken string
	Scope        []string
}

// HandleRefreshToken exchanges a refresh token for a new access token and,
// when the client rotates, a successor refresh token in the same chain.
//
// Presenting a refresh token that was already consumed revokes its whole
// chain and fails with ErrRefreshReplayed. The revocation commits even
// though the request fails.
func (e *RefreshEngine) HandleRefreshToken(ctx context.Context, req RefreshRequest) (Issued, error) {
	l := slogx.FromContext(ctx)
	now := clock(e.Now)
	hash := cryptox.FingerprintToken(req.RefreshToken)
	rotate := e.Factory.Config.Rotates(req.Client)

	var (
		out     Issued
		replay  *domain.TokenRecord
		removed int64
	)

	err := runTx(ctx, e.Store, e.MaxAttempts, func(tx store.Tx) error {
		out, replay, removed = Issued{}, nil, 0
		tokens := tx.Tokens()

		rec, err := tokens.GetToken(ctx, domain.TokenTypeRefreshToken, hash)
		if errors.Is(err, store.ErrNotFound) {
			used, err := tokens.GetUsedToken(ctx, domain.TokenTypeRefreshToken, hash)
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			if err != nil {
				return err
			}

			n, err := tokens.DeleteTokenChain(ctx, used.ClientID(), used.ChainAnchor())
			if err != nil {
				return err
			}
			replay, removed = &used, n
			return nil
		}
		if err != nil {
			return err
		}

		if rec.Expired(now) {
			return ErrInvalidGrant
		}
		if rec.ClientID() != req.Client.ID {
			l.Info("refresh token presented by another client",
				slog.String("client_id", req.Client.ID),
				slog.String("owner_client_id", rec.ClientID()),
			)
			return ErrInvalidGrant
		}

		scope, err := narrowScope(req.Scope, rec.Payload.EffectiveScope)
		if err != nil {
			return err
		}

		issued, err := e.Factory.Refresh(rec, scope, rotate, now)
		if err != nil {
			return err
		}

		if rotate {
			if err := tokens.ConsumeToken(ctx, rec, now, retainUntil(rec, now, e.Factory.Config.UsedTokenRetention)); err != nil {
				// Someone consumed it between our read and write. Re-run so
				// this request takes the replay path.
				if errors.Is(err, store.ErrNotFound) {
					return store.ErrConflict
				}
				return err
			}
			if err := tokens.CreateToken(ctx, *issued.Refresh); err != nil {
				return err
			}
		}
		if err := tokens.CreateToken(ctx, issued.Access); err != nil {
			return err
		}

		out = issued
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidGrant) || errors.Is(err, ErrInvalidScope) {
			l.Info("refresh rejected", slog.Any("error", err))
		} else {
			l.Error("refresh failed", slog.Any("error", err))
		}
		return Issued{}, err
	}

	if replay != nil {
		l.Warn("refresh token replay, chain revoked",
			slog.String("client_id", replay.ClientID()),
			slogx.Hash("anchor", replay.ChainAnchor()),
			slog.Int64("removed", removed),
		)
		e.Metrics.Replayed(domain.TokenTypeRefreshToken.String())
		e.Metrics.ChainRevoked(removed)
		publish(ctx, e.Events, chainEvent(replay.ClientID(), replay.ChainAnchor(), events.ReasonRefreshReuse, removed, now))
		return Issued{}, ErrRefreshReplayed
	}

	if rotate {
		e.Metrics.Rotated()
	}
	recordIssued(ctx, e.Events, e.Metrics, out, GrantTypeRefreshToken, now)

	l.Debug("refresh token exchanged",
		slog.String("client_id", req.Client.ID),
		slog.Bool("rotated", rotate),
	)
	return out, nil
}

// retainUntil is how long a consumed token stays in the used view: its own
// expiry, or retention from now when it never expires.
func retainUntil(rec domain.TokenRecord, now time.Time, retention time.Duration) time.Time {
	if !rec.ExpiresAt.IsZero() {
		return rec.ExpiresAt
	}
	return now.Add(retention)
}

func recordIssued(ctx context.Context, pub events.Publisher, m *metrics.Metrics, out Issued, grantType string, now time.Time) {
	m.TokenIssued(out.Access.Type.String(), grantType)
	publish(ctx, pub, tokenEvent(events.TypeTokenIssued, out.Access, now))
	if out.Refresh != nil {
		m.TokenIssued(out.Refresh.Type.String(), grantType)
		publish(ctx, pub, tokenEvent(events.TypeTokenIssued, *out.Refresh, now))
	}
}
