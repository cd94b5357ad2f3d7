// Package redis is a store.Store backed by Redis. Token records are hashes
// under <prefix>tok:<type>:<hash> and <prefix>used:<type>:<hash>; every
// rotation chain has a set under <prefix>chain:<client>:<anchor> listing its
// members so a chain can be revoked without scanning.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/store"
	"github.com/redis/go-redis/v9"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second

	// DefaultExpiryGrace is how long a record outlives its logical expiry
	// before Redis evicts it. Housekeeping normally removes it first.
	DefaultExpiryGrace = 24 * time.Hour

	DefaultKeyPrefix = "authcore:"

	schemaVersion = "1"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int

	// KeyPrefix namespaces every key, e.g. "authcore:prod:".
	KeyPrefix string

	ExpiryGrace time.Duration

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Store struct {
	client redis.UniversalClient
	keys   keyspace
	grace  time.Duration
}

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: address is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newStore(client, cfg.KeyPrefix, cfg.ExpiryGrace), nil
}

// NewStoreWithClient wraps a pre-configured client. Useful with miniredis.
func NewStoreWithClient(client redis.UniversalClient, keyPrefix string) *Store {
	return newStore(client, keyPrefix, 0)
}

func newStore(client redis.UniversalClient, prefix string, grace time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if grace <= 0 {
		grace = DefaultExpiryGrace
	}
	return &Store{
		client: client,
		keys:   keyspace{prefix: prefix},
		grace:  grace,
	}
}

func (s *Store) Close() error { return s.client.Close() }

// Ping checks Redis connectivity (health check).
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// ApplyMigrations records the keyspace layout version. Redis has no schema;
// a mismatch means the data was written by an incompatible layout.
func (s *Store) ApplyMigrations(ctx context.Context) error {
	key := s.keys.schema()
	if err := s.client.SetNX(ctx, key, schemaVersion, 0).Err(); err != nil {
		return err
	}
	got, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	if got != schemaVersion {
		return fmt.Errorf("redis: keyspace version %q, want %q", got, schemaVersion)
	}
	return nil
}

// WithTx runs fn under WATCH. Reads inside fn watch the keys they touch;
// writes are queued and sent as one MULTI/EXEC when fn returns nil. Queued
// writes are not visible to reads in the same transaction. If any watched
// key changed before EXEC the transaction is dropped and ErrConflict
// returned.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		t := &txTokens{s: s, rtx: rtx}
		if err := fn(t); err != nil {
			return err
		}
		return t.commit(ctx)
	})
	if errors.Is(err, redis.TxFailedErr) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) Tokens() store.Tokens { return &autoTokens{s: s} }

// update runs fn in its own transaction, retrying a few times on conflict.
func (s *Store) update(ctx context.Context, fn func(t *txTokens) error) error {
	const maxRetries = 4

	var err error
	for i := 0; i < maxRetries; i++ {
		err = s.WithTx(ctx, func(tx store.Tx) error {
			return fn(tx.(*txTokens))
		})
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return err
}
