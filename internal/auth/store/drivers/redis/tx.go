package redis

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/internal/auth/store"
	"github.com/redis/go-redis/v9"
)

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func getRecord(ctx context.Context, r hashReader, key string) (domain.TokenRecord, map[string]string, error) {
	fields, err := r.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.TokenRecord{}, nil, err
	}
	if len(fields) == 0 {
		return domain.TokenRecord{}, nil, store.ErrNotFound
	}
	rec, err := decodeRecord(fields)
	return rec, fields, err
}

// txTokens is the Tokens view inside WithTx. Reads go straight to Redis
// after WATCHing the key; writes are queued until commit.
type txTokens struct {
	s   *Store
	rtx *redis.Tx
	ops []func(pipe redis.Pipeliner)

	// watched holds keys already WATCHed. A key is watched once, at its
	// first read, so later reads never move the version EXEC compares.
	watched map[string]struct{}
}

func (t *txTokens) Tokens() store.Tokens { return t }

func (t *txTokens) queue(op func(pipe redis.Pipeliner)) {
	t.ops = append(t.ops, op)
}

func (t *txTokens) commit(ctx context.Context) error {
	if len(t.ops) == 0 {
		return nil
	}
	_, err := t.rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range t.ops {
			op(pipe)
		}
		return nil
	})
	return err
}

func (t *txTokens) watch(ctx context.Context, keys ...string) error {
	if t.watched == nil {
		t.watched = make(map[string]struct{}, len(keys))
	}
	fresh := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := t.watched[key]; ok {
			continue
		}
		t.watched[key] = struct{}{}
		fresh = append(fresh, key)
	}
	if len(fresh) == 0 {
		return nil
	}
	return t.rtx.Watch(ctx, fresh...).Err()
}

func (t *txTokens) read(ctx context.Context, key string) (domain.TokenRecord, map[string]string, error) {
	if err := t.watch(ctx, key); err != nil {
		return domain.TokenRecord{}, nil, err
	}
	return getRecord(ctx, t.rtx, key)
}

func (t *txTokens) expireAt(ctx context.Context, pipe redis.Pipeliner, key string, at time.Time) {
	if at.IsZero() {
		return
	}
	pipe.PExpireAt(ctx, key, at.Add(t.s.grace))
}

func (t *txTokens) CreateToken(ctx context.Context, rec domain.TokenRecord) error {
	key := t.s.keys.active(rec.Type, rec.Hash)
	if err := t.watch(ctx, key); err != nil {
		return err
	}
	n, err := t.rtx.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		return store.ErrAlreadyExists
	}

	fields, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	anchor := rec.ChainAnchor()
	chainKey := t.s.keys.chain(rec.ClientID(), anchor)

	t.queue(func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, key, fields)
		t.expireAt(ctx, pipe, key, rec.ExpiresAt)
		if anchor != "" {
			pipe.SAdd(ctx, chainKey, member(kindActive, rec.Type, rec.Hash))
		}
	})
	return nil
}

func (t *txTokens) GetToken(ctx context.Context, typ domain.TokenType, hash string) (domain.TokenRecord, error) {
	rec, _, err := t.read(ctx, t.s.keys.active(typ, hash))
	return rec, err
}

func (t *txTokens) GetUsedToken(ctx context.Context, typ domain.TokenType, hash string) (domain.TokenRecord, error) {
	rec, _, err := t.read(ctx, t.s.keys.used(typ, hash))
	return rec, err
}

func (t *txTokens) ConsumeToken(ctx context.Context, rec domain.TokenRecord, consumedAt, retainUntil time.Time) error {
	activeKey := t.s.keys.active(rec.Type, rec.Hash)
	stored, old, err := t.read(ctx, activeKey)
	if err != nil {
		return err
	}

	rec.CreatedAt = stored.CreatedAt
	rec.ExpiresAt = stored.ExpiresAt
	fields, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	fields[fieldConsumedAt] = consumedAt.UnixMilli()
	fields[fieldRetainUntil] = retainUntil.UnixMilli()

	usedKey := t.s.keys.used(rec.Type, rec.Hash)
	oldAnchor := old[fieldAnchor]
	oldChain := t.s.keys.chain(old[fieldClientID], oldAnchor)
	anchor := rec.ChainAnchor()
	newChain := t.s.keys.chain(rec.ClientID(), anchor)

	t.queue(func(pipe redis.Pipeliner) {
		pipe.Del(ctx, activeKey)
		pipe.Del(ctx, usedKey)
		pipe.HSet(ctx, usedKey, fields)
		pipe.PExpireAt(ctx, usedKey, retainUntil.Add(t.s.grace))
		if oldAnchor != "" {
			pipe.SRem(ctx, oldChain, member(kindActive, rec.Type, rec.Hash))
		}
		if anchor != "" {
			pipe.SAdd(ctx, newChain, member(kindUsed, rec.Type, rec.Hash))
		}
	})
	return nil
}

func (t *txTokens) ExtendTokenExpiry(
	ctx context.Context,
	typ domain.TokenType,
	hash string,
	newExpiry time.Time,
) (time.Time, error) {
	key := t.s.keys.active(typ, hash)
	rec, _, err := t.read(ctx, key)
	if err != nil {
		return time.Time{}, err
	}
	if rec.ExpiresAt.IsZero() || !newExpiry.After(rec.ExpiresAt) {
		return rec.ExpiresAt, nil
	}

	expiry := time.UnixMilli(newExpiry.UnixMilli()).UTC()
	t.queue(func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, key, fieldExpiresAt, expiry.UnixMilli())
		t.expireAt(ctx, pipe, key, expiry)
	})
	return expiry, nil
}

func (t *txTokens) DeleteToken(ctx context.Context, typ domain.TokenType, hash string) error {
	key := t.s.keys.active(typ, hash)
	_, fields, err := t.read(ctx, key)
	if err != nil {
		return err
	}

	anchor := fields[fieldAnchor]
	chainKey := t.s.keys.chain(fields[fieldClientID], anchor)
	t.queue(func(pipe redis.Pipeliner) {
		pipe.Del(ctx, key)
		if anchor != "" {
			pipe.SRem(ctx, chainKey, member(kindActive, typ, hash))
		}
	})
	return nil
}

func (t *txTokens) DeleteTokenChain(ctx context.Context, clientID, anchor string) (int64, error) {
	if anchor == "" {
		return 0, nil
	}

	chainKey := t.s.keys.chain(clientID, anchor)
	if err := t.watch(ctx, chainKey); err != nil {
		return 0, err
	}
	members, err := t.rtx.SMembers(ctx, chainKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		keys = append(keys, t.s.keys.fromMember(m))
	}
	if err := t.watch(ctx, keys...); err != nil {
		return 0, err
	}

	var live []string
	for _, key := range keys {
		n, err := t.rtx.Exists(ctx, key).Result()
		if err != nil {
			return 0, err
		}
		if n > 0 {
			live = append(live, key)
		}
	}

	t.queue(func(pipe redis.Pipeliner) {
		if len(live) > 0 {
			pipe.Del(ctx, live...)
		}
		pipe.Del(ctx, chainKey)
	})
	return int64(len(live)), nil
}

func (t *txTokens) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	return t.s.sweep(ctx, kindActive, fieldExpiresAt, now)
}

func (t *txTokens) DeleteExpiredUsedTokens(ctx context.Context, now time.Time) (int64, error) {
	return t.s.sweepUsed(ctx, now)
}
