package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
	"github.com/aussiebroadwan/authcore/pkg/cryptox"
	"github.com/aussiebroadwan/authcore/pkg/jwtx"
)

// TokenFactory turns a validated grant into token records. It performs no
// I/O other than signing; persisting what it returns is up to the caller.
type TokenFactory struct {
	Signer jwtx.Signer
	Config TokenConfig
}

// Issued is the result of one grant. Refresh is nil when no refresh token
// was issued.
type Issued struct {
	Access  domain.TokenRecord
	Refresh *domain.TokenRecord
	IDToken string
}

// Pair shapes the issued tokens for the token endpoint.
func (i Issued) Pair() domain.TokenPair {
	pair := domain.TokenPair{
		AccessToken: i.Access.Value,
		IDToken:     i.IDToken,
		TokenType:   "Bearer",
		ExpiresIn:   i.Access.Payload.TokenValidityDuration(),
		Scope:       i.Access.Payload.ScopeString(),
	}
	if i.Refresh != nil {
		pair.RefreshToken = i.Refresh.Value
	}
	return pair
}

// Payload builds the payload shared by every token of a grant.
func (f *TokenFactory) Payload(gc domain.GrantContext, effective []domain.Scope) (domain.Payload, error) {
	subject, err := f.subject(gc)
	if err != nil {
		return domain.Payload{}, err
	}

	audience := gc.Audience
	if len(audience) == 0 {
		audience = gc.Client.Audience
	}
	if len(audience) == 0 {
		audience = []string{gc.Client.ID}
	}

	var authTime int64
	if !gc.AuthTime.IsZero() {
		authTime = gc.AuthTime.Unix()
	}

	return domain.Payload{
		ClientID:            gc.Client.ID,
		ClientName:          gc.Client.Name,
		ClientType:          gc.Client.Type,
		Subject:             subject,
		RequestedScope:      scopeNames(gc.RequestedScope),
		EffectiveScope:      effective,
		Audience:            domain.Audience(append([]string(nil), audience...)),
		RedirectURI:         gc.RedirectURI,
		IssuerURI:           f.Config.Issuer,
		ResponseType:        gc.ResponseType,
		PKCE:                gc.PKCE,
		TokenValidity:       seconds(f.Config.AccessTokenValidity),
		MaxExtendedValidity: seconds(f.Config.MaxExtendedAccessTokenValidity),
		Nonce:               gc.Nonce,
		OpenIDConnect:       hasScope(effective, ScopeOpenID) && gc.GrantType != GrantTypeClientCredentials,
		AuthTime:            authTime,
		Claims:              gc.Claims,
		GrantType:           gc.GrantType,
	}, nil
}

// subject resolves the sub claim. Without a configured claim the entity id
// is the subject.
func (f *TokenFactory) subject(gc domain.GrantContext) (string, error) {
	claim := strings.TrimSpace(f.Config.SubjectClaim)
	if claim == "" {
		return gc.EntityID, nil
	}
	v, ok := gc.Claims[claim]
	if !ok {
		return "", fmt.Errorf("%w: claim %q not present", ErrClaimMapping, claim)
	}
	switch s := v.(type) {
	case string:
		if s == "" {
			return "", fmt.Errorf("%w: claim %q is empty", ErrClaimMapping, claim)
		}
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return "", fmt.Errorf("%w: claim %q is %T, not a string", ErrClaimMapping, claim, v)
	}
}

// issuesRefresh applies the refresh issue policy to a new grant.
func (f *TokenFactory) issuesRefresh(p domain.Payload) bool {
	switch p.GrantType {
	case GrantTypeClientCredentials, GrantTypeTokenExchange:
		return false
	}
	switch f.Config.RefreshIssuePolicy {
	case RefreshIssueAlways:
		return true
	case RefreshIssueOfflineAccess:
		return p.HasScope(ScopeOfflineAccess)
	default:
		return false
	}
}

// Mint issues the tokens for a fresh grant. A new refresh token anchors on
// itself and the access token carries that anchor.
func (f *TokenFactory) Mint(owner string, p domain.Payload, now time.Time) (Issued, error) {
	var out Issued

	if f.issuesRefresh(p) {
		rt, err := f.NewRefreshToken(owner, p, "", now)
		if err != nil {
			return Issued{}, err
		}
		out.Refresh = &rt
		p.FirstRefreshRollingToken = rt.Hash
	}

	at, err := f.NewAccessToken(owner, p, now)
	if err != nil {
		return Issued{}, err
	}
	out.Access = at

	if p.OpenIDConnect {
		id, err := f.NewIDToken(p, now)
		if err != nil {
			return Issued{}, err
		}
		out.IDToken = id
	}
	return out, nil
}

// Refresh issues the tokens for a refresh of prev. The access token gets
// scope; a successor refresh token, only when rotating, keeps prev's scope
// and anchor. A refreshed ID token repeats the original nonce.
func (f *TokenFactory) Refresh(prev domain.TokenRecord, scope []domain.Scope, rotate bool, now time.Time) (Issued, error) {
	var out Issued
	anchor := prev.ChainAnchor()

	if rotate {
		rt, err := f.NewRefreshToken(prev.Owner, prev.Payload, anchor, now)
		if err != nil {
			return Issued{}, err
		}
		out.Refresh = &rt
	}

	p := prev.Payload
	p.EffectiveScope = scope
	p.GrantType = GrantTypeRefreshToken
	p.IssuerURI = f.Config.Issuer
	p.FirstRefreshRollingToken = anchor
	p.OpenIDConnect = hasScope(scope, ScopeOpenID)
	p.PKCE = nil

	at, err := f.NewAccessToken(prev.Owner, p, now)
	if err != nil {
		return Issued{}, err
	}
	out.Access = at

	if p.OpenIDConnect {
		id, err := f.NewIDToken(p, now)
		if err != nil {
			return Issued{}, err
		}
		out.IDToken = id
	}
	return out, nil
}

func (f *TokenFactory) NewAuthorizationCode(owner string, p domain.Payload, now time.Time) (domain.TokenRecord, error) {
	p.TokenValidity = seconds(f.Config.CodeValidity)
	p.MaxExtendedValidity = 0
	p.FirstRefreshRollingToken = ""
	return f.opaque(domain.TokenTypeAuthorizationCode, owner, p, now, f.Config.CodeValidity)
}

// NewAccessToken issues an opaque or JWT access token depending on the
// configured format. Either way only its fingerprint is stored.
func (f *TokenFactory) NewAccessToken(owner string, p domain.Payload, now time.Time) (domain.TokenRecord, error) {
	validity := f.Config.AccessTokenValidity
	p.TokenValidity = seconds(validity)
	p.MaxExtendedValidity = seconds(f.Config.MaxExtendedAccessTokenValidity)

	if f.Config.AccessTokenFormat != AccessTokenJWT {
		return f.opaque(domain.TokenTypeAccessToken, owner, p, now, validity)
	}

	claims := jwtx.NewAccessClaims(p.Subject, p.ClientID, f.Config.Issuer, p.Audience, p.EffectiveScopeNames(), validity, now)
	value, err := f.Signer.Sign(claims)
	if err != nil {
		return domain.TokenRecord{}, fmt.Errorf("sign access token: %w", err)
	}
	return record(domain.TokenTypeAccessToken, value, owner, p, now, validity), nil
}

// NewRefreshToken issues a refresh token in the chain anchor. An empty
// anchor starts a new chain anchored on the token itself.
func (f *TokenFactory) NewRefreshToken(owner string, p domain.Payload, anchor string, now time.Time) (domain.TokenRecord, error) {
	validity := f.Config.RefreshTokenValidity
	p.TokenValidity = seconds(validity)
	p.MaxExtendedValidity = 0

	value, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TokenRecord{}, err
	}
	rec := record(domain.TokenTypeRefreshToken, value, owner, p, now, validity)
	if anchor == "" {
		anchor = rec.Hash
	}
	rec.Payload.FirstRefreshRollingToken = anchor
	return rec, nil
}

// NewIDToken signs an OIDC ID token for p's client.
func (f *TokenFactory) NewIDToken(p domain.Payload, now time.Time) (string, error) {
	var authTime time.Time
	if p.AuthTime != 0 {
		authTime = time.Unix(p.AuthTime, 0)
	}
	claims := jwtx.NewIDClaims(p.Subject, p.ClientID, f.Config.Issuer, p.Nonce, authTime, f.Config.IDTokenValidity, now)
	tok, err := f.Signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("sign id token: %w", err)
	}
	return tok, nil
}

func (f *TokenFactory) opaque(typ domain.TokenType, owner string, p domain.Payload, now time.Time, validity time.Duration) (domain.TokenRecord, error) {
	value, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TokenRecord{}, err
	}
	return record(typ, value, owner, p, now, validity), nil
}

// record builds a TokenRecord. A zero validity means no expiry.
func record(typ domain.TokenType, value, owner string, p domain.Payload, now time.Time, validity time.Duration) domain.TokenRecord {
	rec := domain.TokenRecord{
		Type:      typ,
		Value:     value,
		Hash:      cryptox.FingerprintToken(value),
		Owner:     owner,
		CreatedAt: now,
		Payload:   p,
	}
	if validity > 0 {
		rec.ExpiresAt = now.Add(validity)
	}
	return rec
}

func seconds(d time.Duration) int64 { return int64(d / time.Second) }
