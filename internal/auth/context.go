package auth

import (
	"context"

	"github.com/rturner/choreboard/internal/model"
)

type contextKey struct{}

type AuthContext struct {
	User         *model.User
	SessionToken string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

// CurrentUser returns the authenticated user, or nil outside an
// authenticated request.
func CurrentUser(ctx context.Context) *model.User {
	ac, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	return ac.User
}

func SessionToken(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.SessionToken
}
