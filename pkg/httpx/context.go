package httpx

import "context"

type ctxKey string

const (
	CtxKeySubject   ctxKey = "subject"
	CtxKeyClientID  ctxKey = "client_id"
	CtxKeyScopes    ctxKey = "scopes"
	CtxKeyPrincipal ctxKey = "principal"
)

func scopesFromCtx(ctx context.Context) []string {
	if v, ok := ctx.Value(CtxKeyScopes).([]string); ok {
		return v
	}
	return nil
}

// PrincipalFromContext returns the caller set by AuthnMiddleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(CtxKeyPrincipal).(*Principal)
	return p, ok && p != nil
}

func contextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	ctx = context.WithValue(ctx, CtxKeySubject, p.Subject)
	ctx = context.WithValue(ctx, CtxKeyClientID, p.ClientID)
	ctx = context.WithValue(ctx, CtxKeyScopes, p.Scopes)
	ctx = context.WithValue(ctx, CtxKeyPrincipal, p)
	return ctx
}
