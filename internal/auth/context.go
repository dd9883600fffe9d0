package auth

import (
	"context"

	"github.com/debemdeboas/the-feed/internal/model"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUserID is the key for user ID in request context
	ContextKeyUserID ContextKey = "userID"

	// ContextKeyIdentity holds the identity resolved for the current request
	ContextKeyIdentity ContextKey = "identity"
)

// ContextWithUserID returns a new context with the user ID set
func ContextWithUserID(ctx context.Context, userID model.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// UserIDFromContext extracts the user ID from context
func UserIDFromContext(ctx context.Context) (model.UserID, bool) {
	userID, ok := ctx.Value(ContextKeyUserID).(model.UserID)
	return userID, ok && userID != ""
}

// ContextWithIdentity stores the identity and, when signed in, its user ID.
func ContextWithIdentity(ctx context.Context, identity model.Identity) context.Context {
	ctx = context.WithValue(ctx, ContextKeyIdentity, identity)
	if identity.SignedIn {
		ctx = ContextWithUserID(ctx, identity.ID)
	}
	return ctx
}

// IdentityFromContext returns the request identity, or Anonymous when none was resolved.
func IdentityFromContext(ctx context.Context) model.Identity {
	identity, ok := ctx.Value(ContextKeyIdentity).(model.Identity)
	if !ok {
		return model.Anonymous
	}
	return identity
}
