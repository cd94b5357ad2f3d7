package slogx

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
)

// Token logs a short fingerprint of a secret token value under key. The raw
// value never reaches the log.
func Token(key, value string) slog.Attr {
	if value == "" {
		return slog.String(key, "")
	}
	sum := sha256.Sum256([]byte(value))
	return slog.String(key, hex.EncodeToString(sum[:4]))
}

// Hash logs the leading characters of an already fingerprinted token.
func Hash(key, hash string) slog.Attr {
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return slog.String(key, hash)
}
