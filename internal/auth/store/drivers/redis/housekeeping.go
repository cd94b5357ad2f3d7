package redis

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// deleteLapsedScript deletes KEYS[1] if its ARGV[1] field is a non-zero
// time at or before ARGV[2], and drops ARGV[3] from the chain set KEYS[2]
// when one is given.
var deleteLapsedScript = redis.NewScript(`
local v = redis.call('HGET', KEYS[1], ARGV[1])
if not v then
	return 0
end
v = tonumber(v)
if v == 0 or v > tonumber(ARGV[2]) then
	return 0
end
redis.call('DEL', KEYS[1])
if #KEYS > 1 then
	redis.call('SREM', KEYS[2], ARGV[3])
end
return 1
`)

// sweep removes records of kind whose field has lapsed at now. Only the
// node the client is connected to is scanned.
func (s *Store) sweep(ctx context.Context, kind, field string, now time.Time) (int64, error) {
	var removed int64
	err := s.scan(ctx, s.keys.pattern(kind), func(key string) error {
		vals, err := s.client.HMGet(ctx, key, fieldClientID, fieldAnchor).Result()
		if err != nil {
			return err
		}
		keys := []string{key}
		if anchor, _ := vals[1].(string); anchor != "" {
			clientID, _ := vals[0].(string)
			keys = append(keys, s.keys.chain(clientID, anchor))
		}

		n, err := deleteLapsedScript.Run(ctx, s.client, keys,
			field, now.UnixMilli(), strings.TrimPrefix(key, s.keys.prefix)).Int64()
		if err != nil {
			return err
		}
		removed += n
		return nil
	})
	return removed, err
}

func (s *Store) sweepUsed(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.sweep(ctx, kindUsed, fieldRetainUntil, now)
	if err != nil {
		return n, err
	}
	if _, err := s.PruneChains(ctx); err != nil {
		return n, err
	}
	return n, nil
}

// PruneChains removes chain set members whose record no longer exists,
// which happens when Redis evicts a record by TTL. Empty sets vanish.
func (s *Store) PruneChains(ctx context.Context) (int64, error) {
	var pruned int64
	err := s.scan(ctx, s.keys.pattern("chain"), func(chainKey string) error {
		members, err := s.client.SMembers(ctx, chainKey).Result()
		if err != nil {
			return err
		}
		var stale []any
		for _, m := range members {
			n, err := s.client.Exists(ctx, s.keys.fromMember(m)).Result()
			if err != nil {
				return err
			}
			if n == 0 {
				stale = append(stale, m)
			}
		}
		if len(stale) == 0 {
			return nil
		}
		n, err := s.client.SRem(ctx, chainKey, stale...).Result()
		pruned += n
		return err
	})
	return pruned, err
}

func (s *Store) scan(ctx context.Context, match string, fn func(key string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := fn(key); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
