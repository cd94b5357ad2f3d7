package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/authcore/internal/auth/clients"
	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/pkg/cryptox"
	"github.com/aussiebroadwan/authcore/pkg/slogx"
)

// ClientRegistry resolves clients and the scope catalog. Unknown clients
// return clients.ErrNotFound.
type ClientRegistry interface {
	GetClient(ctx context.Context, id string) (*domain.Client, error)
	Scopes() []domain.Scope
	DefaultScopes() []string
}

// ClientCredentials is what a request presented, from HTTP Basic or the
// form body.
type ClientCredentials struct {
	ID     string
	Secret string
}

func (c ClientCredentials) Present() bool { return c.ID != "" || c.Secret != "" }

type ClientAuthenticator struct {
	Registry ClientRegistry
}

// Authenticate resolves the client and checks its secret. Confidential
// clients must present a matching secret; public clients are identified by
// id alone and must not present one.
func (a *ClientAuthenticator) Authenticate(ctx context.Context, creds ClientCredentials) (*domain.Client, error) {
	if rc, ok := ctx.Value(resolvedClientKey{}).(resolvedClient); ok && rc.creds == creds {
		return rc.client, rc.err
	}

	l := slogx.FromContext(ctx)

	if creds.ID == "" {
		return nil, ErrInvalidClient
	}

	client, err := a.Registry.GetClient(ctx, creds.ID)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			l.Info("unknown client", slog.String("client_id", creds.ID))
			return nil, ErrInvalidClient
		}
		return nil, err
	}

	if client.IsPublic() {
		if creds.Secret != "" {
			l.Info("public client presented a secret", slog.String("client_id", client.ID))
			return nil, ErrInvalidClient
		}
		return client, nil
	}

	if creds.Secret == "" || cryptox.VerifySecret(creds.Secret, client.SecretHash) != nil {
		l.Info("client authentication failed", slog.String("client_id", client.ID))
		return nil, ErrInvalidClient
	}
	return client, nil
}

type resolvedClientKey struct{}

type resolvedClient struct {
	creds  ClientCredentials
	client *domain.Client
	err    error
}

// Resolve authenticates creds and records the outcome on the returned
// context. Authenticate answers from that record for the same credentials,
// so a request checks its secret once. Store failures are not recorded.
func (a *ClientAuthenticator) Resolve(ctx context.Context, creds ClientCredentials) (context.Context, *domain.Client, error) {
	client, err := a.Authenticate(ctx, creds)
	if err != nil && !errors.Is(err, ErrInvalidClient) {
		return ctx, nil, err
	}
	return context.WithValue(ctx, resolvedClientKey{}, resolvedClient{creds: creds, client: client, err: err}), client, err
}
