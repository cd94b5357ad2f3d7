package redis

import (
	"strconv"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
)

// Hash fields. Times are unix milliseconds; expires_at 0 means never.
const (
	fieldType        = "type"
	fieldHash        = "hash"
	fieldOwner       = "owner"
	fieldClientID    = "client_id"
	fieldAnchor      = "anchor"
	fieldPayload     = "payload"
	fieldCreatedAt   = "created_at"
	fieldExpiresAt   = "expires_at"
	fieldConsumedAt  = "consumed_at"
	fieldRetainUntil = "retain_until"
)

func encodeRecord(rec domain.TokenRecord) (map[string]any, error) {
	payload, err := domain.MarshalPayload(rec.Payload)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		fieldType:      rec.Type.String(),
		fieldHash:      rec.Hash,
		fieldOwner:     rec.Owner,
		fieldClientID:  rec.ClientID(),
		fieldAnchor:    rec.ChainAnchor(),
		fieldPayload:   string(payload),
		fieldCreatedAt: rec.CreatedAt.UnixMilli(),
		fieldExpiresAt: millis(rec.ExpiresAt),
	}, nil
}

func decodeRecord(fields map[string]string) (domain.TokenRecord, error) {
	typ, err := domain.ParseTokenType(fields[fieldType])
	if err != nil {
		return domain.TokenRecord{}, err
	}
	payload, err := domain.UnmarshalPayload([]byte(fields[fieldPayload]))
	if err != nil {
		return domain.TokenRecord{}, err
	}
	created, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return domain.TokenRecord{}, err
	}
	expires, err := parseMillis(fields[fieldExpiresAt])
	if err != nil {
		return domain.TokenRecord{}, err
	}
	consumed, err := parseMillis(fields[fieldConsumedAt])
	if err != nil {
		return domain.TokenRecord{}, err
	}
	return domain.TokenRecord{
		Type:       typ,
		Hash:       fields[fieldHash],
		Owner:      fields[fieldOwner],
		CreatedAt:  time.UnixMilli(created).UTC(),
		ExpiresAt:  expires,
		ConsumedAt: consumed,
		Payload:    payload,
	}, nil
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func parseMillis(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	if ms == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms).UTC(), nil
}
