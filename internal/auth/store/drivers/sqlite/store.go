package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/internal/auth/store"
	"github.com/aussiebroadwan/authcore/internal/auth/store/drivers/sqlite/gen"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// defaultPragmas are appended to every DSN. _txlock=immediate takes the
// write lock at BEGIN so two rotations of the same token serialise instead
// of failing at commit.
var defaultPragmas = []string{
	"_txlock=immediate",
	"_pragma=busy_timeout(5000)",
	"_pragma=journal_mode(WAL)",
	"_pragma=foreign_keys(1)",
}

type Store struct {
	db  *sql.DB
	q   *gen.Queries
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	full := withPragmas(dsn)
	db, err := sql.Open("sqlite", full)
	if err != nil {
		return nil, err
	}

	// Every connection to :memory: is a fresh database.
	if isMemory(dsn) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:  db,
		q:   gen.New(db),
		dsn: dsn,
	}, nil
}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	var extra []string
	for _, p := range defaultPragmas {
		key, _, _ := strings.Cut(p, "=")
		if key == "_txlock" && strings.Contains(dsn, "_txlock=") {
			continue
		}
		extra = append(extra, p)
	}
	return dsn + sep + strings.Join(extra, "&")
}

func isMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
// fn must only touch the store through tx; with a single connection any
// other query would wait on the transaction forever.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Ensure rollback is called if we panic or return early with error
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(newTx(tx)); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Tokens() store.Tokens { return &tokensRepo{q: s.q} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapConstraint(err error) error {
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return store.ErrAlreadyExists
		}
	}
	return err
}

func mapTimeNull(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func mapNullTime(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.UnixMilli(n.Int64).UTC()
}

func mapToken(row gen.Token) (domain.TokenRecord, error) {
	typ, err := domain.ParseTokenType(row.TokenType)
	if err != nil {
		return domain.TokenRecord{}, err
	}
	payload, err := domain.UnmarshalPayload(row.Payload)
	if err != nil {
		return domain.TokenRecord{}, err
	}
	return domain.TokenRecord{
		Type:      typ,
		Hash:      row.TokenHash,
		Owner:     row.Owner,
		CreatedAt: time.UnixMilli(row.CreatedAt).UTC(),
		ExpiresAt: mapNullTime(row.ExpiresAt),
		Payload:   payload,
	}, nil
}

func mapUsedToken(row gen.UsedToken) (domain.TokenRecord, error) {
	rec, err := mapToken(gen.Token{
		TokenType:   row.TokenType,
		TokenHash:   row.TokenHash,
		Owner:       row.Owner,
		ClientID:    row.ClientID,
		ChainAnchor: row.ChainAnchor,
		Payload:     row.Payload,
		CreatedAt:   row.CreatedAt,
		ExpiresAt:   row.ExpiresAt,
	})
	if err != nil {
		return domain.TokenRecord{}, err
	}
	rec.ConsumedAt = time.UnixMilli(row.ConsumedAt).UTC()
	return rec, nil
}
