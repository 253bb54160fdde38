package auth

import (
	"context"
	"time"
)

// User is a signed-in family member.
type User struct {
	ID        string
	Email     string
	SessionID string
	ExpiresAt time.Time
}

type contextKey struct{}

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// FromContext returns the signed-in user or nil.
func FromContext(ctx context.Context) *User {
	u, _ := ctx.Value(contextKey{}).(*User)
	return u
}

func UserID(ctx context.Context) string {
	if u := FromContext(ctx); u != nil {
		return u.ID
	}
	return ""
}
