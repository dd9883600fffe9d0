// Package auth resolves the display identity of the current visitor.
package auth

import (
	"context"
	"net/http"

	"github.com/debemdeboas/the-feed/internal/model"
	"github.com/rs/zerolog"
)

type IdentityProvider interface {
	// WithHeaderAuthorization returns middleware that validates the session, if any.
	WithHeaderAuthorization() func(http.Handler) http.Handler

	// CurrentIdentity reports the identity of the session in ctx. Signed-out
	// sessions, and sessions that fail to resolve, report model.Anonymous.
	CurrentIdentity(ctx context.Context) model.Identity
}

var authLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	authLogger = l
}

// WithIdentity resolves the identity once per request and stores it in the request context.
func WithIdentity(provider IdentityProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := provider.CurrentIdentity(r.Context())
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// StaticIdentityProvider reports the same identity for every request.
type StaticIdentityProvider struct {
	Identity model.Identity
}

func NewStaticIdentityProvider(identity model.Identity) *StaticIdentityProvider {
	identity.SignedIn = identity.ID != ""
	return &StaticIdentityProvider{Identity: identity}
}

func (s *StaticIdentityProvider) WithHeaderAuthorization() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return next }
}

func (s *StaticIdentityProvider) CurrentIdentity(context.Context) model.Identity {
	return s.Identity
}
