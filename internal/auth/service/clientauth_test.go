package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

// countingRegistry counts lookups and can fail them.
type countingRegistry struct {
	ClientRegistry
	lookups atomic.Int32
	err     error
}

func (r *countingRegistry) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	r.lookups.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return r.ClientRegistry.GetClient(ctx, id)
}

func TestClientAuthenticatorAuthenticate(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	auth := &ClientAuthenticator{Registry: h.registry}
	ctx := context.Background()

	tests := map[string]struct {
		creds   ClientCredentials
		wantID  string
		wantErr error
	}{
		"confidential with secret": {creds: ClientCredentials{ID: testBackendID, Secret: testSecret}, wantID: testBackendID},
		"public without secret":    {creds: ClientCredentials{ID: testPublicID}, wantID: testPublicID},
		"wrong secret":             {creds: ClientCredentials{ID: testBackendID, Secret: "nope"}, wantErr: ErrInvalidClient},
		"confidential no secret":   {creds: ClientCredentials{ID: testBackendID}, wantErr: ErrInvalidClient},
		"public with secret":       {creds: ClientCredentials{ID: testPublicID, Secret: "x"}, wantErr: ErrInvalidClient},
		"unknown client":           {creds: ClientCredentials{ID: "ghost", Secret: "x"}, wantErr: ErrInvalidClient},
		"anonymous":                {wantErr: ErrInvalidClient},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c, err := auth.Authenticate(ctx, tc.creds)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantID, c.ID)
		})
	}
}

func TestClientAuthenticatorResolve(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	good := ClientCredentials{ID: testBackendID, Secret: testSecret}

	t.Run("outcome is reused for the same credentials", func(t *testing.T) {
		t.Parallel()

		reg := &countingRegistry{ClientRegistry: h.registry}
		auth := &ClientAuthenticator{Registry: reg}

		ctx, c, err := auth.Resolve(context.Background(), good)
		require.NoError(t, err)
		require.Equal(t, testBackendID, c.ID)

		again, err := auth.Authenticate(ctx, good)
		require.NoError(t, err)
		require.Same(t, c, again)
		require.EqualValues(t, 1, reg.lookups.Load())
	})

	t.Run("rejection is reused", func(t *testing.T) {
		t.Parallel()

		reg := &countingRegistry{ClientRegistry: h.registry}
		auth := &ClientAuthenticator{Registry: reg}
		bad := ClientCredentials{ID: testBackendID, Secret: "wrong"}

		ctx, c, err := auth.Resolve(context.Background(), bad)
		require.ErrorIs(t, err, ErrInvalidClient)
		require.Nil(t, c)

		_, err = auth.Authenticate(ctx, bad)
		require.ErrorIs(t, err, ErrInvalidClient)
		require.EqualValues(t, 1, reg.lookups.Load())
	})

	t.Run("other credentials are checked again", func(t *testing.T) {
		t.Parallel()

		reg := &countingRegistry{ClientRegistry: h.registry}
		auth := &ClientAuthenticator{Registry: reg}

		ctx, _, err := auth.Resolve(context.Background(), good)
		require.NoError(t, err)

		_, err = auth.Authenticate(ctx, ClientCredentials{ID: testBackendID, Secret: "wrong"})
		require.ErrorIs(t, err, ErrInvalidClient)
		require.EqualValues(t, 2, reg.lookups.Load())
	})

	t.Run("registry failure is not recorded", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("registry unavailable")
		reg := &countingRegistry{ClientRegistry: h.registry, err: boom}
		auth := &ClientAuthenticator{Registry: reg}

		ctx, _, err := auth.Resolve(context.Background(), good)
		require.ErrorIs(t, err, boom)

		reg.err = nil
		c, err := auth.Authenticate(ctx, good)
		require.NoError(t, err)
		require.Equal(t, testBackendID, c.ID)
	})
}
