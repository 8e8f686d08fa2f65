// Package auth carries the signed-in user through request contexts and
// hashes passwords.
package auth

import "context"

type contextKey struct{}

type AuthContext struct {
	UserID    int64
	Email     string
	IsAdmin   bool
	SessionID int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	return ok && ac.IsAdmin
}

func SessionID(ctx context.Context) int64 {
	ac, _ := FromContext(ctx)
	return ac.SessionID
}
