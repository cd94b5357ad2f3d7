package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/metrics"
	"github.com/aussiebroadwan/authcore/internal/auth/store"
)

// HousekeepingService periodically removes expired tokens and used tokens
// past their retention to prevent unbounded growth of the token store.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Interval time.Duration
	Now      func() time.Time
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, m *metrics.Metrics, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Metrics:  m,
		Interval: interval,
	}
}

// Run cleans up immediately and then on every tick until ctx is done.
func (s *HousekeepingService) Run(ctx context.Context) error {
	s.Logger.Info("housekeeping service started", "interval", s.Interval)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(ctx)

	for {
		select {
		case <-ticker.C:
			s.Cleanup(ctx)
		case <-ctx.Done():
			s.Logger.Info("housekeeping service stopped")
			return nil
		}
	}
}

// chainPruner is implemented by stores that keep chain indexes apart from
// the records, which can outlive their members.
type chainPruner interface {
	PruneChains(ctx context.Context) (int64, error)
}

// Cleanup performs one pass. Each deletion is independent; a failure in one
// won't stop the other.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := clock(s.Now)
	tokens := s.Store.Tokens()

	if n, err := tokens.DeleteExpiredTokens(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired tokens", "error", err)
		s.Metrics.HousekeepingFailed()
	} else {
		s.Logger.Debug("deleted expired tokens", "count", n)
		s.Metrics.HousekeepingRemoved("active", n)
	}

	if n, err := tokens.DeleteExpiredUsedTokens(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired used tokens", "error", err)
		s.Metrics.HousekeepingFailed()
	} else {
		s.Logger.Debug("deleted expired used tokens", "count", n)
		s.Metrics.HousekeepingRemoved("used", n)
	}

	if p, ok := s.Store.(chainPruner); ok {
		if n, err := p.PruneChains(ctx); err != nil {
			s.Logger.Error("failed to prune chain indexes", "error", err)
			s.Metrics.HousekeepingFailed()
		} else {
			s.Logger.Debug("pruned chain index members", "count", n)
			s.Metrics.HousekeepingRemoved("chain", n)
		}
	}
}
