// Package storetest holds behaviour checks shared by every store driver.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/internal/auth/store"
	"github.com/aussiebroadwan/authcore/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

// Factory returns a migrated, empty store. It registers its own cleanup.
type Factory func(t *testing.T) store.Store

// Record builds an active record with a fresh value.
func Record(t *testing.T, typ domain.TokenType, clientID, anchor string, now time.Time, ttl time.Duration) domain.TokenRecord {
	t.Helper()

	value, err := cryptox.GenerateToken(32)
	require.NoError(t, err)

	rec := domain.TokenRecord{
		Type:      typ,
		Value:     value,
		Hash:      cryptox.FingerprintToken(value),
		Owner:     "user-1",
		CreatedAt: now.Truncate(time.Millisecond),
		Payload: domain.Payload{
			ClientID:                 clientID,
			ClientType:               domain.ClientTypeConfidential,
			Subject:                  "user-1",
			EffectiveScope:           []domain.Scope{{Name: "read"}},
			Audience:                 domain.Audience{"api"},
			TokenValidity:            int64(ttl / time.Second),
			FirstRefreshRollingToken: anchor,
		},
	}
	if ttl > 0 {
		rec.ExpiresAt = rec.CreatedAt.Add(ttl)
	}
	return rec
}

// Run exercises the Tokens contract against the driver built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("create and get", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)

		rec := Record(t, domain.TokenTypeAccessToken, "web", "anchor-1", now, time.Hour)
		require.NoError(t, s.Tokens().CreateToken(ctx, rec))

		got, err := s.Tokens().GetToken(ctx, domain.TokenTypeAccessToken, rec.Hash)
		require.NoError(t, err)
		require.Equal(t, rec.Hash, got.Hash)
		require.Equal(t, rec.Owner, got.Owner)
		require.Empty(t, got.Value)
		require.True(t, rec.CreatedAt.Equal(got.CreatedAt))
		require.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))
		require.Equal(t, rec.Payload.ClientID, got.Payload.ClientID)
		require.Equal(t, "anchor-1", got.ChainAnchor())
		require.Equal(t, []string{"read"}, got.Payload.EffectiveScopeNames())
	})

	t.Run("type is part of the key", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)

		rec := Record(t, domain.TokenTypeAccessToken, "web", "", now, time.Hour)
		require.NoError(t, s.Tokens().CreateToken(ctx, rec))

		_, err := s.Tokens().GetToken(ctx, domain.TokenTypeRefreshToken, rec.Hash)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate create fails", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)

		rec := Record(t, domain.TokenTypeRefreshToken, "web", "", now, time.Hour)
		require.NoError(t, s.Tokens().CreateToken(ctx, rec))
		require.ErrorIs(t, s.Tokens().CreateToken(ctx, rec), store.ErrAlreadyExists)
	})

	t.Run("no expiry round trips as zero", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)

		rec := Record(t, domain.TokenTypeAccessToken, "web", "", now, 0)
		require.NoError(t, s.Tokens().CreateToken(ctx, rec))

		got, err := s.Tokens().GetToken(ctx, rec.Type, rec.Hash)
		require.NoError(t, err)
		require.True(t, got.ExpiresAt.IsZero())
	})

	t.Run("consume moves record to used view", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)

		rec := Record(t, domain.TokenTypeRefreshToken, "web", "anchor-c", now, time.Hour)
		require.NoError(t, s.Tokens().CreateToken(ctx, rec))

		rec.Payload.Nonce = "stored-on-consume"
		consumedAt := now.Add(7 * time.Minute)
		require.NoError(t, s.Tokens().ConsumeToken(ctx, rec, consumedAt, now.Add(time.Hour)))

		_, err := s.Tokens().GetToken(ctx, rec.Type, rec.Hash)
		require.ErrorIs(t, err, store.ErrNotFound)

		used, err := s.Tokens().GetUsedToken(ctx, rec.Type, rec.Hash)
		require.NoError(t, err)
		require.Equal(t, "stored-on-consume", used.Payload.Nonce)
		require.Equal(t, "anchor-c", used.ChainAnchor())
		require.True(t, consumedAt.Equal(used.ConsumedAt), "consumed at %v, want %v", used.ConsumedAt, consumedAt)
		require.True(t, rec.CreatedAt.Equal(used.CreatedAt))

		require.ErrorIs(t, s.Tokens().ConsumeToken(ctx, rec, now, now.Add(time.Hour)), store.ErrNotFound)
	})

	t.Run("extend expiry is monotonic", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)

		rec := Record(t, domain.TokenTypeAccessToken, "web", "", now, time.Hour)
		require.NoError(t, s.Tokens().CreateToken(ctx, rec))

		later := rec.ExpiresAt.Add(30 * time.Minute)
		got, err := s.Tokens().ExtendTokenExpiry(ctx, rec.Type, rec.Hash, later)
		require.NoError(t, err)
		require.True(t, later.Equal(got))

		got, err = s.Tokens().ExtendTokenExpiry(ctx, rec.Type, rec.Hash, rec.ExpiresAt)
		require.NoError(t, err)
		require.True(t, later.Equal(got), "expiry must never move backwards")

		stored, err := s.Tokens().GetToken(ctx, rec.Type, rec.Hash)
		require.NoError(t, err)
		require.True(t, later.Equal(stored.ExpiresAt))
	})

	t.Run("extend leaves non-expiring record alone", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)

		rec := Record(t, domain.TokenTypeAccessToken, "web", "", now, 0)
		require.NoError(t, s.Tokens().CreateToken(ctx, rec))

		got, err := s.Tokens().ExtendTokenExpiry(ctx, rec.Type, rec.Hash, now.Add(time.Hour))
		require.NoError(t, err)
		require.True(t, got.IsZero())

		_, err = s.Tokens().ExtendTokenExpiry(ctx, rec.Type, "missing", now)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete token", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)

		rec := Record(t, domain.TokenTypeAccessToken, "web", "", now, time.Hour)
		require.NoError(t, s.Tokens().CreateToken(ctx, rec))
		require.NoError(t, s.Tokens().DeleteToken(ctx, rec.Type, rec.Hash))
		require.ErrorIs(t, s.Tokens().DeleteToken(ctx, rec.Type, rec.Hash), store.ErrNotFound)
	})

	t.Run("delete chain removes active and used members only", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)
		tokens := s.Tokens()

		consumed := Record(t, domain.TokenTypeRefreshToken, "web", "A", now, time.Hour)
		refresh := Record(t, domain.TokenTypeRefreshToken, "web", "A", now, time.Hour)
		access := Record(t, domain.TokenTypeAccessToken, "web", "A", now, time.Hour)
		otherChain := Record(t, domain.TokenTypeAccessToken, "web", "B", now, time.Hour)
		otherClient := Record(t, domain.TokenTypeAccessToken, "cli", "A", now, time.Hour)
		unchained := Record(t, domain.TokenTypeAccessToken, "web", "", now, time.Hour)

		for _, rec := range []domain.TokenRecord{consumed, refresh, access, otherChain, otherClient, unchained} {
			require.NoError(t, tokens.CreateToken(ctx, rec))
		}
		require.NoError(t, tokens.ConsumeToken(ctx, consumed, now, now.Add(time.Hour)))

		n, err := tokens.DeleteTokenChain(ctx, "web", "A")
		require.NoError(t, err)
		require.EqualValues(t, 3, n)

		for _, rec := range []domain.TokenRecord{refresh, access} {
			_, err := tokens.GetToken(ctx, rec.Type, rec.Hash)
			require.ErrorIs(t, err, store.ErrNotFound)
		}
		_, err = tokens.GetUsedToken(ctx, consumed.Type, consumed.Hash)
		require.ErrorIs(t, err, store.ErrNotFound)

		for _, rec := range []domain.TokenRecord{otherChain, otherClient, unchained} {
			_, err := tokens.GetToken(ctx, rec.Type, rec.Hash)
			require.NoError(t, err)
		}

		n, err = tokens.DeleteTokenChain(ctx, "web", "")
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("housekeeping deletes only lapsed records", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)
		tokens := s.Tokens()

		expired := Record(t, domain.TokenTypeAccessToken, "web", "", now.Add(-2*time.Hour), time.Hour)
		live := Record(t, domain.TokenTypeAccessToken, "web", "", now, time.Hour)
		forever := Record(t, domain.TokenTypeAccessToken, "web", "", now.Add(-48*time.Hour), 0)
		for _, rec := range []domain.TokenRecord{expired, live, forever} {
			require.NoError(t, tokens.CreateToken(ctx, rec))
		}

		n, err := tokens.DeleteExpiredTokens(ctx, now)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		_, err = tokens.GetToken(ctx, live.Type, live.Hash)
		require.NoError(t, err)
		_, err = tokens.GetToken(ctx, forever.Type, forever.Hash)
		require.NoError(t, err)

		oldUsed := Record(t, domain.TokenTypeRefreshToken, "web", "X", now, time.Hour)
		newUsed := Record(t, domain.TokenTypeRefreshToken, "web", "X", now, time.Hour)
		require.NoError(t, tokens.CreateToken(ctx, oldUsed))
		require.NoError(t, tokens.CreateToken(ctx, newUsed))
		require.NoError(t, tokens.ConsumeToken(ctx, oldUsed, now, now.Add(-time.Minute)))
		require.NoError(t, tokens.ConsumeToken(ctx, newUsed, now, now.Add(time.Hour)))

		n, err = tokens.DeleteExpiredUsedTokens(ctx, now)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		_, err = tokens.GetUsedToken(ctx, newUsed.Type, newUsed.Hash)
		require.NoError(t, err)
	})

	t.Run("transaction rolls back on error", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)

		rec := Record(t, domain.TokenTypeAccessToken, "web", "", now, time.Hour)
		boom := errors.New("boom")
		err := s.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Tokens().CreateToken(ctx, rec); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = s.Tokens().GetToken(ctx, rec.Type, rec.Hash)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("concurrent consumers see exactly one winner", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)

		rec := Record(t, domain.TokenTypeRefreshToken, "web", "R", now, time.Hour)
		require.NoError(t, s.Tokens().CreateToken(ctx, rec))

		const workers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.WithTx(ctx, func(tx store.Tx) error {
					got, err := tx.Tokens().GetToken(ctx, rec.Type, rec.Hash)
					if err != nil {
						return err
					}
					return tx.Tokens().ConsumeToken(ctx, got, now, now.Add(time.Hour))
				})
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		require.Equal(t, 1, wins)
		_, err := s.Tokens().GetUsedToken(ctx, rec.Type, rec.Hash)
		require.NoError(t, err)
	})
}
