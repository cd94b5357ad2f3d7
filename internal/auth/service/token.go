package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/internal/auth/events"
	"github.com/aussiebroadwan/authcore/internal/auth/metrics"
	"github.com/aussiebroadwan/authcore/internal/auth/store"
	"github.com/aussiebroadwan/authcore/pkg/cryptox"
	"github.com/aussiebroadwan/authcore/pkg/slogx"
)

// TokenService implements the grants of the token endpoint. Callers pass
// clients already authenticated by ClientAuthenticator.
type TokenService struct {
	Store    store.Store
	Registry ClientRegistry
	Factory  *TokenFactory
	Refresh  *RefreshEngine
	Events   events.Publisher
	Metrics  *metrics.Metrics
	Now      func() time.Time

	MaxAttempts int
}

// AuthorizationRequest is an authorization request the caller has already
// authenticated the end user for.
type AuthorizationRequest struct {
	Client              *domain.Client
	EntityID            string
	Claims              map[string]any
	RedirectURI         string
	Scope               []string
	Audience            []string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	AuthTime            time.Time
}

// IssueAuthorizationCode stores a code for an authenticated end user and
// returns its value for the redirect. Unknown or disallowed scopes are
// dropped; the exchange reports the effective scope.
func (s *TokenService) IssueAuthorizationCode(ctx context.Context, req AuthorizationRequest) (string, error) {
	l := slogx.FromContext(ctx)
	now := clock(s.Now)
	client := req.Client

	if strings.TrimSpace(req.EntityID) == "" {
		return "", ErrInvalidRequest
	}
	if !client.AllowsGrant(GrantTypeAuthorizationCode) {
		return "", ErrUnauthorizedClient
	}
	if !client.AllowsRedirect(req.RedirectURI) {
		l.Info("authorization request with unregistered redirect_uri", slog.String("client_id", client.ID))
		return "", ErrInvalidRequest
	}
	pkce, err := validatePKCE(req.CodeChallenge, req.CodeChallengeMethod, client)
	if err != nil {
		return "", err
	}

	gc := domain.GrantContext{
		Client:         client,
		GrantType:      GrantTypeAuthorizationCode,
		RequestedScope: req.Scope,
		Audience:       req.Audience,
		ResponseType:   "code",
		PKCE:           pkce,
		EntityID:       req.EntityID,
		Claims:         req.Claims,
		Nonce:          req.Nonce,
		RedirectURI:    req.RedirectURI,
		AuthTime:       req.AuthTime,
	}
	effective := EffectiveScope(req.Scope, client, s.Registry.Scopes(), s.Registry.DefaultScopes())
	p, err := s.Factory.Payload(gc, effective)
	if err != nil {
		return "", err
	}

	code, err := s.Factory.NewAuthorizationCode(req.EntityID, p, now)
	if err != nil {
		return "", err
	}
	if err := s.Store.Tokens().CreateToken(ctx, code); err != nil {
		return "", err
	}

	s.Metrics.TokenIssued(code.Type.String(), GrantTypeAuthorizationCode)
	return code.Value, nil
}

// ExchangeAuthorizationCode implements the authorization_code grant.
//
// A code can be exchanged once. Presenting it again revokes every token
// the first exchange produced and fails with ErrCodeReplayed.
func (s *TokenService) ExchangeAuthorizationCode(
	ctx context.Context,
	client *domain.Client,
	code, redirectURI, codeVerifier string,
) (Issued, error) {
	l := slogx.FromContext(ctx)
	now := clock(s.Now)

	code = strings.TrimSpace(code)
	redirectURI = strings.TrimSpace(redirectURI)
	if code == "" {
		return Issued{}, ErrInvalidRequest
	}
	if !client.AllowsGrant(GrantTypeAuthorizationCode) {
		return Issued{}, ErrUnauthorizedClient
	}

	hash := cryptox.FingerprintToken(code)
	var (
		out     Issued
		replay  *domain.TokenRecord
		removed int64
	)

	err := runTx(ctx, s.Store, s.MaxAttempts, func(tx store.Tx) error {
		out, replay, removed = Issued{}, nil, 0
		tokens := tx.Tokens()

		rec, err := tokens.GetToken(ctx, domain.TokenTypeAuthorizationCode, hash)
		if errors.Is(err, store.ErrNotFound) {
			used, err := tokens.GetUsedToken(ctx, domain.TokenTypeAuthorizationCode, hash)
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			if err != nil {
				return err
			}
			n, err := tokens.DeleteTokenChain(ctx, used.ClientID(), used.ChainAnchor())
			if err != nil {
				return err
			}
			replay, removed = &used, n
			return nil
		}
		if err != nil {
			return err
		}

		if rec.Expired(now) || rec.ClientID() != client.ID {
			return ErrInvalidGrant
		}
		if rec.Payload.RedirectURI != "" && rec.Payload.RedirectURI != redirectURI {
			return ErrInvalidGrant
		}
		if !verifyCodeVerifier(rec.Payload.PKCE, codeVerifier) {
			return ErrInvalidGrant
		}

		p := rec.Payload
		p.PKCE = nil
		issued, err := s.Factory.Mint(rec.Owner, p, now)
		if err != nil {
			return err
		}

		// Without a refresh token the access token anchors on the code, so a
		// replayed code can still find it.
		if issued.Refresh == nil {
			issued.Access.Payload.FirstRefreshRollingToken = rec.Hash
		}

		consumed := rec
		consumed.Payload.FirstRefreshRollingToken = issued.Access.ChainAnchor()
		if err := tokens.ConsumeToken(ctx, consumed, now, retainUntil(rec, now, s.Factory.Config.UsedTokenRetention)); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return store.ErrConflict
			}
			return err
		}
		if issued.Refresh != nil {
			if err := tokens.CreateToken(ctx, *issued.Refresh); err != nil {
				return err
			}
		}
		if err := tokens.CreateToken(ctx, issued.Access); err != nil {
			return err
		}

		out = issued
		return nil
	})
	if err != nil {
		l.Info("authorization code exchange rejected", slog.String("client_id", client.ID), slog.Any("error", err))
		return Issued{}, err
	}

	if replay != nil {
		l.Warn("authorization code replay, issued tokens revoked",
			slog.String("client_id", replay.ClientID()),
			slogx.Hash("anchor", replay.ChainAnchor()),
			slog.Int64("removed", removed),
		)
		s.Metrics.Replayed(domain.TokenTypeAuthorizationCode.String())
		s.Metrics.ChainRevoked(removed)
		publish(ctx, s.Events, chainEvent(replay.ClientID(), replay.ChainAnchor(), events.ReasonCodeReuse, removed, now))
		return Issued{}, ErrCodeReplayed
	}

	recordIssued(ctx, s.Events, s.Metrics, out, GrantTypeAuthorizationCode, now)
	return out, nil
}

// ExchangeRefreshToken implements the refresh_token grant.
func (s *TokenService) ExchangeRefreshToken(ctx context.Context, client *domain.Client, refreshToken string, scope []string) (Issued, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Issued{}, ErrInvalidRequest
	}
	if !client.AllowsGrant(GrantTypeRefreshToken) {
		return Issued{}, ErrUnauthorizedClient
	}
	return s.Refresh.HandleRefreshToken(ctx, RefreshRequest{
		Client:       client,
		RefreshToken: strings.TrimSpace(refreshToken),
		Scope:        scope,
	})
}

// ExchangeClientCredentials implements the client_credentials grant. Only
// confidential clients may use it and no refresh token is issued.
func (s *TokenService) ExchangeClientCredentials(ctx context.Context, client *domain.Client, scope []string, audience []string) (Issued, error) {
	now := clock(s.Now)

	if client.IsPublic() || !client.AllowsGrant(GrantTypeClientCredentials) {
		return Issued{}, ErrUnauthorizedClient
	}

	requested := scope
	if len(requested) == 0 {
		// A machine client asking for nothing gets everything it is
		// registered for, minus patterns it cannot name.
		for _, sc := range client.Scopes {
			if !strings.ContainsAny(sc, "*?[") {
				requested = append(requested, sc)
			}
		}
	}
	effective := EffectiveScope(requested, client, s.Registry.Scopes(), nil)

	p, err := s.Factory.Payload(domain.GrantContext{
		Client:         client,
		GrantType:      GrantTypeClientCredentials,
		RequestedScope: scope,
		Audience:       audience,
		EntityID:       client.ID,
	}, effective)
	if err != nil {
		return Issued{}, err
	}

	issued, err := s.Factory.Mint(client.ID, p, now)
	if err != nil {
		return Issued{}, err
	}
	if err := s.Store.Tokens().CreateToken(ctx, issued.Access); err != nil {
		return Issued{}, err
	}

	recordIssued(ctx, s.Events, s.Metrics, issued, GrantTypeClientCredentials, now)
	return issued, nil
}

// TokenExchangeRequest is an RFC 8693 request. Only access tokens can be
// exchanged, and only for access tokens.
type TokenExchangeRequest struct {
	SubjectToken       string
	SubjectTokenType   string
	RequestedTokenType string
	ActorToken         string
	Scope              []string
	Audience           []string
	Resource           []string
}

// ExchangeToken implements token exchange. The subject token must carry
// the token-exchange scope and name the calling client in its audience.
// The new token is narrowed to the requested scope and addressed to the
// requested audience and resources.
func (s *TokenService) ExchangeToken(ctx context.Context, client *domain.Client, req TokenExchangeRequest) (Issued, error) {
	l := slogx.FromContext(ctx)
	now := clock(s.Now)

	if !client.AllowsGrant(GrantTypeTokenExchange) {
		return Issued{}, ErrUnauthorizedClient
	}
	if strings.TrimSpace(req.SubjectToken) == "" || req.SubjectTokenType != TokenTypeIdentifierAccessToken {
		return Issued{}, ErrInvalidRequest
	}
	if req.RequestedTokenType != "" && req.RequestedTokenType != TokenTypeIdentifierAccessToken {
		return Issued{}, ErrInvalidRequest
	}
	if req.ActorToken != "" {
		return Issued{}, ErrInvalidRequest
	}

	subject, err := s.Store.Tokens().GetToken(ctx, domain.TokenTypeAccessToken, cryptox.FingerprintToken(strings.TrimSpace(req.SubjectToken)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Issued{}, ErrInvalidRequest
		}
		return Issued{}, err
	}
	if subject.Expired(now) {
		return Issued{}, ErrInvalidRequest
	}
	if !subject.Payload.HasScope(ScopeTokenExchange) {
		l.Info("subject token lacks token-exchange scope", slog.String("client_id", client.ID))
		return Issued{}, ErrUnauthorizedClient
	}
	if !slices.Contains(subject.Payload.Audience, client.ID) {
		l.Info("token exchange by client outside subject audience", slog.String("client_id", client.ID))
		return Issued{}, ErrUnauthorizedClient
	}

	requested := slices.DeleteFunc(slices.Clone(req.Scope), func(sc string) bool { return sc == ScopeTokenExchange })
	granted := withoutScope(subject.Payload.EffectiveScope, ScopeTokenExchange)
	scope := granted
	if len(requested) > 0 {
		scope, err = narrowScope(requested, granted)
		if err != nil {
			return Issued{}, err
		}
	}

	audience := append(slices.Clone(req.Audience), req.Resource...)
	if len(audience) == 0 {
		audience = []string{client.ID}
	}

	p := subject.Payload
	p.ClientID = client.ID
	p.ClientName = client.Name
	p.ClientType = client.Type
	p.RequestedScope = scopeNames(req.Scope)
	p.EffectiveScope = scope
	p.Audience = domain.Audience(audience)
	p.GrantType = GrantTypeTokenExchange
	p.IssuerURI = s.Factory.Config.Issuer
	p.FirstRefreshRollingToken = ""
	p.OpenIDConnect = false
	p.Nonce = ""
	p.PKCE = nil
	p.RedirectURI = ""
	p.ResponseType = ""

	issued, err := s.Factory.Mint(subject.Owner, p, now)
	if err != nil {
		return Issued{}, err
	}
	if err := s.Store.Tokens().CreateToken(ctx, issued.Access); err != nil {
		return Issued{}, err
	}

	recordIssued(ctx, s.Events, s.Metrics, issued, GrantTypeTokenExchange, now)
	return issued, nil
}
