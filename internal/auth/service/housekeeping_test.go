package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingCleanup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	first := h.grant(t, h.public, ScopeOfflineAccess)
	_, err := h.refresh.HandleRefreshToken(ctx, RefreshRequest{Client: h.public, RefreshToken: first.Refresh.Value})
	require.NoError(t, err)

	hk := NewHousekeepingService(h.store, slog.New(slog.NewTextHandler(io.Discard, nil)), h.metrics, 0)
	hk.Now = h.clock.Now
	require.Equal(t, time.Hour, hk.Interval)

	hk.Cleanup(ctx)
	require.True(t, h.active(t, first.Access.Value))

	h.clock.Advance(h.factory.Config.RefreshTokenValidity + time.Second)
	hk.Cleanup(ctx)

	_, err = h.store.Tokens().GetToken(ctx, domain.TokenTypeAccessToken, first.Access.Hash)
	require.Error(t, err)
	_, err = h.store.Tokens().GetUsedToken(ctx, domain.TokenTypeRefreshToken, first.Refresh.Hash)
	require.Error(t, err)
}

func TestHousekeepingRunStopsWithContext(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	hk := NewHousekeepingService(h.store, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- hk.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("housekeeping did not stop")
	}
}
