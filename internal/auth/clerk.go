package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"
	clerkuser "github.com/clerk/clerk-sdk-go/v2/user"
	"github.com/debemdeboas/the-feed/internal/config"
	"github.com/debemdeboas/the-feed/internal/db"
	"github.com/debemdeboas/the-feed/internal/model"
	svix "github.com/svix/svix-webhooks/go"
)

const maxWebhookBytes = 1 << 20

type ClerkIdentityProvider struct {
	db db.DB

	cookieExtractor clerkhttp.AuthorizationOption

	// Webhook deliveries are refused until a signing secret is set.
	webhook *svix.Webhook

	// Swappable for tests; default to the Clerk session claims and user API.
	subject   func(ctx context.Context) (string, bool)
	fetchUser func(ctx context.Context, id string) (*clerk.User, error)
}

func NewClerkIdentityProvider(clerkKey string, database db.DB) *ClerkIdentityProvider {
	clerk.SetKey(clerkKey)

	return &ClerkIdentityProvider{
		db: database,
		cookieExtractor: clerkhttp.AuthorizationJWTExtractor(func(r *http.Request) string {
			cookie, err := r.Cookie(config.CookieSession)
			if err != nil || cookie == nil {
				return ""
			}
			return cookie.Value
		}),
		subject:   sessionSubject,
		fetchUser: clerkuser.Get,
	}
}

// SetWebhookSecret sets the Svix signing secret (whsec_...) that user
// webhook deliveries must be signed with.
func (c *ClerkIdentityProvider) SetWebhookSecret(secret string) error {
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return err
	}
	c.webhook = wh
	return nil
}

func sessionSubject(ctx context.Context) (string, bool) {
	claims, ok := clerk.SessionClaimsFromContext(ctx)
	if !ok || claims == nil {
		return "", false
	}
	return claims.Subject, claims.Subject != ""
}

func (c *ClerkIdentityProvider) WithHeaderAuthorization() func(http.Handler) http.Handler {
	return clerkhttp.WithHeaderAuthorization(c.cookieExtractor)
}

func (c *ClerkIdentityProvider) CurrentIdentity(ctx context.Context) model.Identity {
	subject, ok := c.subject(ctx)
	if !ok {
		return model.Anonymous
	}

	usr, err := c.fetchUser(ctx, subject)
	if err != nil {
		authLogger.Debug().Err(err).Str("user_id", subject).Msg("Failed to fetch Clerk user")
		return model.Anonymous
	}

	return identityFromClerkUser(usr)
}

func identityFromClerkUser(usr *clerk.User) model.Identity {
	if usr == nil || usr.ID == "" {
		return model.Anonymous
	}
	return model.Identity{
		ID:        model.UserID(usr.ID),
		FirstName: deref(usr.FirstName),
		LastName:  deref(usr.LastName),
		AvatarURL: deref(usr.ImageURL),
		SignedIn:  true,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// HandleWebhookUser mirrors Clerk user lifecycle events into the users table.
func (c *ClerkIdentityProvider) HandleWebhookUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	type EventPayload struct {
		Data struct {
			clerk.User
		} `json:"data"`

		Type string `json:"type"`
	}

	if c.webhook == nil {
		authLogger.Warn().Msg("Refusing webhook delivery, no signing secret configured")
		http.Error(w, config.ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if err := c.webhook.Verify(body, r.Header); err != nil {
		authLogger.Warn().Err(err).Str("svix_id", r.Header.Get("svix-id")).Msg("Rejected webhook delivery")
		http.Error(w, config.ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	var payload EventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		authLogger.Warn().Err(err).Msg("Error decoding event payload")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	usr := payload.Data.User
	if usr.ID == "" {
		http.Error(w, "Missing user id", http.StatusBadRequest)
		return
	}

	log := authLogger.With().Str("event", payload.Type).Str("user_id", usr.ID).Logger()

	switch payload.Type {
	case "user.created", "user.updated":
		var email string
		if len(usr.EmailAddresses) > 0 && usr.EmailAddresses[0] != nil {
			email = usr.EmailAddresses[0].EmailAddress
		}

		_, err := c.db.ExecContext(r.Context(),
			`INSERT INTO users (id, username, email) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET username = excluded.username, email = excluded.email`,
			usr.ID, nullableString(usr.Username), email,
		)
		if err != nil {
			log.Error().Err(err).Msg("Error saving user")
			http.Error(w, "Error saving user", http.StatusInternalServerError)
			return
		}

		log.Info().Msg("User saved")
		if payload.Type == "user.created" {
			w.WriteHeader(http.StatusCreated)
		} else {
			w.WriteHeader(http.StatusNoContent)
		}
	case "user.deleted":
		if _, err := c.db.ExecContext(r.Context(), "DELETE FROM users WHERE id = ?", usr.ID); err != nil {
			log.Error().Err(err).Msg("Error deleting user")
			http.Error(w, "Error deleting user", http.StatusInternalServerError)
			return
		}

		log.Info().Msg("User deleted")
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Invalid event type", http.StatusBadRequest)
	}
}

func nullableString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
