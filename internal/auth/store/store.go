package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	// ErrConflict is returned by optimistic drivers when a concurrent writer
	// touched a key the transaction read. The whole transaction may be retried.
	ErrConflict = errors.New("store: transaction conflict")
)

// Store is the root data access interface. Concrete drivers (sqlite, redis)
// implement this. Repositories hang off Store and Tx so a caller inside a
// transaction can only reach the transaction-scoped ones.
type Store interface {
	Tokens() Tokens

	ApplyMigrations(ctx context.Context) error

	// WithTx executes fn within a read/write transaction. If fn returns an
	// error the transaction is rolled back, otherwise it is committed. Drivers
	// guarantee that two transactions reading the same token cannot both
	// commit a change to it: sqlite serialises writers, redis fails the
	// loser with ErrConflict.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped view of the Store.
type Tx interface {
	Tokens() Tokens
}

// Tokens stores token records keyed by (type, hash). Two views exist: active
// records and used records. A used record is a consumed token kept only so
// a later presentation can be recognised as a replay.
type Tokens interface {
	// CreateToken inserts an active record. ErrAlreadyExists on a duplicate
	// (type, hash).
	CreateToken(ctx context.Context, rec domain.TokenRecord) error

	// GetToken returns an active record, expired or not. ErrNotFound if absent.
	GetToken(ctx context.Context, typ domain.TokenType, hash string) (domain.TokenRecord, error)

	// GetUsedToken returns a consumed record. ErrNotFound if absent.
	GetUsedToken(ctx context.Context, typ domain.TokenType, hash string) (domain.TokenRecord, error)

	// ConsumeToken moves the active record (rec.Type, rec.Hash) into the used
	// view at consumedAt, storing rec's payload, and keeps it there until
	// retainUntil. ErrNotFound if it was not active, which inside a
	// transaction means another caller consumed it first.
	ConsumeToken(ctx context.Context, rec domain.TokenRecord, consumedAt, retainUntil time.Time) error

	// ExtendTokenExpiry raises the expiry of an active record to newExpiry
	// if that is later than the current one and returns the resulting
	// expiry. Records without expiry are left alone. ErrNotFound if absent.
	ExtendTokenExpiry(ctx context.Context, typ domain.TokenType, hash string, newExpiry time.Time) (time.Time, error)

	// DeleteToken removes an active record. ErrNotFound if absent.
	DeleteToken(ctx context.Context, typ domain.TokenType, hash string) error

	// DeleteTokenChain removes every active and used record issued to
	// clientID under the rotation anchor and returns how many were removed.
	// An empty anchor matches nothing.
	DeleteTokenChain(ctx context.Context, clientID, anchor string) (int64, error)

	// DeleteExpiredTokens removes active records that expired before now.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)

	// DeleteExpiredUsedTokens removes used records retained past now.
	DeleteExpiredUsedTokens(ctx context.Context, now time.Time) (int64, error)
}
