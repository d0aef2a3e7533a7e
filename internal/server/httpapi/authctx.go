package httpapi

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/shadanga/kriya/internal/model"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID uuid.UUID
	Role   model.Role
}

type ctxKey string

const principalKey ctxKey = "kriya.principal"

// WithPrincipal stores the authenticated caller in context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromCtx fetches the authenticated caller from context.
func PrincipalFromCtx(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok || p.UserID == uuid.Nil {
		return Principal{}, false
	}
	return p, true
}
