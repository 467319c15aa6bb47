// Package context provides request-scoped values extraction.
package context

import (
	"context"

	"lpgstock/internal/core/id"
)

// UserContext identifies the caller of a stock operation.
// The upstream gateway has already authenticated the user and resolved the agency.
type UserContext struct {
	UserID   id.ID
	AgencyID id.ID
	Role     string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or the nil ID.
func GetUserID(ctx context.Context) id.ID {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return id.Nil()
}

// GetAgencyID returns agency ID from context or the nil ID.
func GetAgencyID(ctx context.Context) id.ID {
	if u := GetUser(ctx); u != nil {
		return u.AgencyID
	}
	return id.Nil()
}
