package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/internal/auth/events"
	"github.com/aussiebroadwan/authcore/pkg/slogx"
)

// publish delivers ev after the fact. A failed publish is logged; the
// token operation it describes has already committed.
func publish(ctx context.Context, pub events.Publisher, ev events.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, ev); err != nil {
		slogx.FromContext(ctx).Warn("failed to publish event",
			slog.String("type", ev.Type),
			slog.Any("error", err),
		)
	}
}

func tokenEvent(typ string, rec domain.TokenRecord, now time.Time) events.Event {
	ev := events.New(typ, now)
	ev.ClientID = rec.ClientID()
	ev.Subject = rec.Payload.Subject
	ev.TokenType = rec.Type.String()
	ev.TokenHash = rec.Hash
	ev.Anchor = rec.ChainAnchor()
	ev.GrantType = rec.Payload.GrantType
	return ev
}

func chainEvent(clientID, anchor, reason string, removed int64, now time.Time) events.Event {
	ev := events.New(events.TypeTokenChainRevoked, now)
	ev.ClientID = clientID
	ev.Anchor = anchor
	ev.Reason = reason
	ev.Removed = removed
	return ev
}

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
