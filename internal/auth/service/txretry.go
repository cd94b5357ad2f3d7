package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/store"
	"github.com/cenkalti/backoff/v5"
)

// DefaultMaxAttempts bounds how often a conflicting transaction is re-run.
const DefaultMaxAttempts = 5

// runTx runs fn in a transaction and re-runs it from scratch when an
// optimistic store reports a conflict. Every other error ends the loop.
func runTx(ctx context.Context, st store.Store, maxAttempts int, fn func(tx store.Tx) error) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := st.WithTx(ctx, fn)
		if err == nil || errors.Is(err, store.ErrConflict) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(maxAttempts)))
	return err
}
