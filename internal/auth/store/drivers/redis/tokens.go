package redis

import (
	"context"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/internal/auth/store"
	"github.com/redis/go-redis/v9"
)

// extendExpiryScript raises expires_at to ARGV[1] if that is later and
// moves the key TTL along with it. Returns the resulting expiry, 0 for a
// record that never expires, or -1 if the key does not exist.
var extendExpiryScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'expires_at')
if not cur then
	return -1
end
cur = tonumber(cur)
if cur == 0 then
	return 0
end
local want = tonumber(ARGV[1])
if want > cur then
	redis.call('HSET', KEYS[1], 'expires_at', ARGV[1])
	redis.call('PEXPIREAT', KEYS[1], want + tonumber(ARGV[2]))
	cur = want
end
return cur
`)

// autoTokens is the Tokens view outside a transaction. Each write runs in
// its own WATCH transaction.
type autoTokens struct {
	s *Store
}

func (a *autoTokens) CreateToken(ctx context.Context, rec domain.TokenRecord) error {
	return a.s.update(ctx, func(t *txTokens) error {
		return t.CreateToken(ctx, rec)
	})
}

func (a *autoTokens) GetToken(ctx context.Context, typ domain.TokenType, hash string) (domain.TokenRecord, error) {
	rec, _, err := getRecord(ctx, a.s.client, a.s.keys.active(typ, hash))
	return rec, err
}

func (a *autoTokens) GetUsedToken(ctx context.Context, typ domain.TokenType, hash string) (domain.TokenRecord, error) {
	rec, _, err := getRecord(ctx, a.s.client, a.s.keys.used(typ, hash))
	return rec, err
}

func (a *autoTokens) ConsumeToken(ctx context.Context, rec domain.TokenRecord, consumedAt, retainUntil time.Time) error {
	return a.s.update(ctx, func(t *txTokens) error {
		return t.ConsumeToken(ctx, rec, consumedAt, retainUntil)
	})
}

func (a *autoTokens) ExtendTokenExpiry(
	ctx context.Context,
	typ domain.TokenType,
	hash string,
	newExpiry time.Time,
) (time.Time, error) {
	key := a.s.keys.active(typ, hash)
	res, err := extendExpiryScript.Run(ctx, a.s.client, []string{key},
		newExpiry.UnixMilli(), a.s.grace.Milliseconds()).Int64()
	if err != nil {
		return time.Time{}, err
	}
	switch {
	case res < 0:
		return time.Time{}, store.ErrNotFound
	case res == 0:
		return time.Time{}, nil
	default:
		return time.UnixMilli(res).UTC(), nil
	}
}

func (a *autoTokens) DeleteToken(ctx context.Context, typ domain.TokenType, hash string) error {
	return a.s.update(ctx, func(t *txTokens) error {
		return t.DeleteToken(ctx, typ, hash)
	})
}

func (a *autoTokens) DeleteTokenChain(ctx context.Context, clientID, anchor string) (int64, error) {
	var n int64
	err := a.s.update(ctx, func(t *txTokens) error {
		var err error
		n, err = t.DeleteTokenChain(ctx, clientID, anchor)
		return err
	})
	return n, err
}

func (a *autoTokens) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	return a.s.sweep(ctx, kindActive, fieldExpiresAt, now)
}

func (a *autoTokens) DeleteExpiredUsedTokens(ctx context.Context, now time.Time) (int64, error) {
	return a.s.sweepUsed(ctx, now)
}
