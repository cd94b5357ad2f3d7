package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/internal/auth/store"
	"github.com/aussiebroadwan/authcore/internal/auth/store/drivers/sqlite/gen"
)

type tokensRepo struct {
	q *gen.Queries
}

func (r *tokensRepo) CreateToken(ctx context.Context, rec domain.TokenRecord) error {
	payload, err := domain.MarshalPayload(rec.Payload)
	if err != nil {
		return err
	}
	err = r.q.CreateToken(ctx, gen.CreateTokenParams{
		TokenType:   rec.Type.String(),
		TokenHash:   rec.Hash,
		Owner:       rec.Owner,
		ClientID:    rec.ClientID(),
		ChainAnchor: rec.ChainAnchor(),
		Payload:     payload,
		CreatedAt:   rec.CreatedAt.UnixMilli(),
		ExpiresAt:   mapTimeNull(rec.ExpiresAt),
	})
	return mapConstraint(err)
}

func (r *tokensRepo) GetToken(ctx context.Context, typ domain.TokenType, hash string) (domain.TokenRecord, error) {
	row, err := r.q.GetToken(ctx, gen.GetTokenParams{
		TokenType: typ.String(),
		TokenHash: hash,
	})
	if err != nil {
		return domain.TokenRecord{}, mapNotFound(err)
	}
	return mapToken(row)
}

func (r *tokensRepo) GetUsedToken(ctx context.Context, typ domain.TokenType, hash string) (domain.TokenRecord, error) {
	row, err := r.q.GetUsedToken(ctx, gen.GetUsedTokenParams{
		TokenType: typ.String(),
		TokenHash: hash,
	})
	if err != nil {
		return domain.TokenRecord{}, mapNotFound(err)
	}
	return mapUsedToken(row)
}

func (r *tokensRepo) ConsumeToken(ctx context.Context, rec domain.TokenRecord, consumedAt, retainUntil time.Time) error {
	row, err := r.q.DeleteActiveToken(ctx, gen.DeleteActiveTokenParams{
		TokenType: rec.Type.String(),
		TokenHash: rec.Hash,
	})
	if err != nil {
		return mapNotFound(err)
	}

	payload, err := domain.MarshalPayload(rec.Payload)
	if err != nil {
		return err
	}

	return r.q.InsertUsedToken(ctx, gen.InsertUsedTokenParams{
		TokenType:   row.TokenType,
		TokenHash:   row.TokenHash,
		Owner:       row.Owner,
		ClientID:    rec.ClientID(),
		ChainAnchor: rec.ChainAnchor(),
		Payload:     payload,
		CreatedAt:   row.CreatedAt,
		ExpiresAt:   row.ExpiresAt,
		ConsumedAt:  consumedAt.UnixMilli(),
		RetainUntil: retainUntil.UnixMilli(),
	})
}

func (r *tokensRepo) ExtendTokenExpiry(
	ctx context.Context,
	typ domain.TokenType,
	hash string,
	newExpiry time.Time,
) (time.Time, error) {
	exp, err := r.q.ExtendTokenExpiry(ctx, gen.ExtendTokenExpiryParams{
		NewExpiry: newExpiry.UnixMilli(),
		TokenType: typ.String(),
		TokenHash: hash,
	})
	if err == nil {
		return mapNullTime(exp), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, err
	}

	// No row updated: either absent or a record that never expires.
	rec, err := r.GetToken(ctx, typ, hash)
	if err != nil {
		return time.Time{}, err
	}
	return rec.ExpiresAt, nil
}

func (r *tokensRepo) DeleteToken(ctx context.Context, typ domain.TokenType, hash string) error {
	n, err := r.q.DeleteToken(ctx, gen.DeleteTokenParams{
		TokenType: typ.String(),
		TokenHash: hash,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *tokensRepo) DeleteTokenChain(ctx context.Context, clientID, anchor string) (int64, error) {
	if anchor == "" {
		return 0, nil
	}
	active, err := r.q.DeleteChainTokens(ctx, gen.DeleteChainTokensParams{
		ClientID:    clientID,
		ChainAnchor: anchor,
	})
	if err != nil {
		return 0, err
	}
	used, err := r.q.DeleteChainUsedTokens(ctx, gen.DeleteChainUsedTokensParams{
		ClientID:    clientID,
		ChainAnchor: anchor,
	})
	if err != nil {
		return active, err
	}
	return active + used, nil
}

func (r *tokensRepo) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	return r.q.DeleteExpiredTokens(ctx, sql.NullInt64{Int64: now.UnixMilli(), Valid: true})
}

func (r *tokensRepo) DeleteExpiredUsedTokens(ctx context.Context, now time.Time) (int64, error) {
	return r.q.DeleteExpiredUsedTokens(ctx, now.UnixMilli())
}
