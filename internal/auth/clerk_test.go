package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/debemdeboas/the-feed/internal/db"
	"github.com/debemdeboas/the-feed/internal/model"
	"github.com/rs/zerolog"
	svix "github.com/svix/svix-webhooks/go"
)

const testWebhookSecret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"

// signedWebhook builds a delivery signed the way Svix signs Clerk events.
func signedWebhook(t *testing.T, secret, msgID, body string) *http.Request {
	t.Helper()
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		t.Fatalf("svix.NewWebhook: %v", err)
	}
	now := time.Now()
	signature, err := wh.Sign(msgID, now, []byte(body))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook/user", strings.NewReader(body))
	req.Header.Set("svix-id", msgID)
	req.Header.Set("svix-timestamp", strconv.FormatInt(now.Unix(), 10))
	req.Header.Set("svix-signature", signature)
	return req
}

func strPtr(s string) *string { return &s }

func newTestClerkProvider(t *testing.T) (*ClerkIdentityProvider, *db.SQLite) {
	t.Helper()
	logger := zerolog.New(os.Stdout).Level(zerolog.ErrorLevel)
	SetLogger(logger)
	db.SetLogger(logger)

	database := db.NewSQLite(":memory:")
	if err := database.InitDB(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return NewClerkIdentityProvider("sk_test_dummy", database), database
}

func TestClerkCurrentIdentity(t *testing.T) {
	provider, _ := newTestClerkProvider(t)

	users := map[string]*clerk.User{
		"user_2abcd": {
			ID:        "user_2abcd",
			FirstName: strPtr("Ada"),
			LastName:  strPtr("Lovelace"),
			ImageURL:  strPtr("https://img.clerk.com/ada.png"),
		},
	}
	provider.fetchUser = func(_ context.Context, id string) (*clerk.User, error) {
		if u, ok := users[id]; ok {
			return u, nil
		}
		return nil, errors.New("user not found")
	}

	t.Run("No session", func(t *testing.T) {
		provider.subject = func(context.Context) (string, bool) { return "", false }
		if got := provider.CurrentIdentity(context.Background()); got != model.Anonymous {
			t.Errorf("Expected anonymous identity, got %+v", got)
		}
	})

	t.Run("Signed in", func(t *testing.T) {
		provider.subject = func(context.Context) (string, bool) { return "user_2abcd", true }
		got := provider.CurrentIdentity(context.Background())
		if !got.SignedIn {
			t.Fatal("Expected signed in identity")
		}
		if got.ID != "user_2abcd" || got.FirstName != "Ada" || got.LastName != "Lovelace" {
			t.Errorf("Unexpected identity %+v", got)
		}
		if got.AvatarURL != "https://img.clerk.com/ada.png" {
			t.Errorf("Unexpected avatar %q", got.AvatarURL)
		}
	})

	t.Run("Lookup failure is signed out", func(t *testing.T) {
		provider.subject = func(context.Context) (string, bool) { return "user_gone", true }
		if got := provider.CurrentIdentity(context.Background()); got.SignedIn {
			t.Errorf("Expected signed out identity, got %+v", got)
		}
	})

	t.Run("Missing optional fields", func(t *testing.T) {
		got := identityFromClerkUser(&clerk.User{ID: "user_x"})
		if !got.SignedIn || got.FirstName != "" || got.AvatarURL != "" {
			t.Errorf("Unexpected identity %+v", got)
		}
		if identityFromClerkUser(nil).SignedIn {
			t.Error("Expected nil user to be signed out")
		}
	})
}

func TestHandleWebhookUser(t *testing.T) {
	provider, database := newTestClerkProvider(t)
	if err := provider.SetWebhookSecret(testWebhookSecret); err != nil {
		t.Fatalf("SetWebhookSecret: %v", err)
	}

	delivery := 0
	send := func(body string) *httptest.ResponseRecorder {
		delivery++
		req := signedWebhook(t, testWebhookSecret, "msg_"+strconv.Itoa(delivery), body)
		rec := httptest.NewRecorder()
		provider.HandleWebhookUser(rec, req)
		return rec
	}

	countUsers := func() int {
		var n int
		if err := database.QueryRow("SELECT COUNT(*) FROM users").Scan(&n); err != nil {
			t.Fatalf("count users: %v", err)
		}
		return n
	}

	t.Run("Created", func(t *testing.T) {
		rec := send(`{"type":"user.created","data":{"id":"user_1","username":"ada","email_addresses":[{"email_address":"ada@example.com"}]}}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var username, email string
		if err := database.QueryRow("SELECT username, email FROM users WHERE id = ?", "user_1").Scan(&username, &email); err != nil {
			t.Fatalf("Expected user row: %v", err)
		}
		if username != "ada" || email != "ada@example.com" {
			t.Errorf("Unexpected user row (%s, %s)", username, email)
		}
	})

	t.Run("Updated", func(t *testing.T) {
		rec := send(`{"type":"user.updated","data":{"id":"user_1","username":"countess"}}`)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("Expected 204, got %d", rec.Code)
		}
		var username string
		database.QueryRow("SELECT username FROM users WHERE id = ?", "user_1").Scan(&username)
		if username != "countess" {
			t.Errorf("Expected updated username, got %q", username)
		}
		if countUsers() != 1 {
			t.Errorf("Expected a single user row")
		}
	})

	t.Run("Deleted", func(t *testing.T) {
		rec := send(`{"type":"user.deleted","data":{"id":"user_1"}}`)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("Expected 204, got %d", rec.Code)
		}
		if countUsers() != 0 {
			t.Error("Expected user to be deleted")
		}
	})

	t.Run("Bad payloads", func(t *testing.T) {
		for _, body := range []string{
			`not json`,
			`{"type":"user.created","data":{}}`,
			`{"type":"session.created","data":{"id":"user_1"}}`,
		} {
			if rec := send(body); rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400 for %s, got %d", body, rec.Code)
			}
		}
	})

	t.Run("Method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/webhook/user", nil)
		rec := httptest.NewRecorder()
		provider.HandleWebhookUser(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected 405, got %d", rec.Code)
		}
	})
}

func TestHandleWebhookUserSignatures(t *testing.T) {
	provider, database := newTestClerkProvider(t)
	const body = `{"type":"user.created","data":{"id":"user_9","username":"mallory"}}`

	serve := func(req *http.Request) int {
		rec := httptest.NewRecorder()
		provider.HandleWebhookUser(rec, req)
		return rec.Code
	}

	t.Run("No secret configured", func(t *testing.T) {
		if code := serve(signedWebhook(t, testWebhookSecret, "msg_1", body)); code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", code)
		}
	})

	if err := provider.SetWebhookSecret(testWebhookSecret); err != nil {
		t.Fatalf("SetWebhookSecret: %v", err)
	}

	t.Run("Unsigned", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook/user", strings.NewReader(body))
		if code := serve(req); code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", code)
		}
	})

	t.Run("Signed with another secret", func(t *testing.T) {
		req := signedWebhook(t, "whsec_dGhpcyBpcyBub3QgdGhlIHJpZ2h0IGtleQ==", "msg_2", body)
		if code := serve(req); code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", code)
		}
	})

	t.Run("Tampered body", func(t *testing.T) {
		req := signedWebhook(t, testWebhookSecret, "msg_3", body)
		req.Body = io.NopCloser(strings.NewReader(strings.Replace(body, "user_9", "user_8", 1)))
		if code := serve(req); code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", code)
		}
	})

	var n int
	if err := database.QueryRow("SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected no users from rejected deliveries, got %d", n)
	}

	if err := provider.SetWebhookSecret("not a secret"); err == nil {
		t.Error("Expected malformed secret to be rejected")
	}
}
