package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debemdeboas/the-feed/internal/config"
	"github.com/debemdeboas/the-feed/internal/db"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Auth.Type = "static"
	cfg.Auth.StaticUserID = "user_2abcXYZ9"
	cfg.Auth.StaticFirstName = "Grace"
	cfg.Auth.StaticLastName = "Hopper"
	cfg.Storage.DatabasePath = ":memory:"
	cfg.Storage.MediaBackend = "memory"
	config.AppConfig = cfg
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	a, err := newApp(context.Background(), cfg, config.Secrets{}, content)
	require.NoError(t, err)
	t.Cleanup(func() { a.database.Close() })
	return a
}

func TestServeIndex(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "The Feed")
	assert.Contains(t, body, "Grace Hopper")
	assert.Contains(t, body, "@GraceHopper-XYZ9")
	assert.Contains(t, body, "What&#39;s on your mind?")
	assert.Equal(t, "deny", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "Cookie", rec.Header().Get("Vary"))
}

func TestRobots(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/robots.txt", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Frame-Options"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "User-agent: *"))
}

func TestStaticAssetsAreCached(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(config.HETag))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get(config.HCacheControl))
}

func TestEventsRequireSession(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sse", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitPersistsPost(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	form := url.Values{config.FormPostInput: {"first post"}}
	req := httptest.NewRequest(http.MethodPost, "/compose/submit", strings.NewReader(form.Encode()))
	req.Header.Set(config.HCType, "application/x-www-form-urlencoded")
	req.Header.Set(config.HHxRequest, "true")
	req.AddCookie(cookies[0])

	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		var n int
		err := a.database.QueryRow(`SELECT COUNT(*) FROM posts WHERE user_id = ?`, "user_2abcXYZ9").Scan(&n)
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSignedOutStaticProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.StaticUserID = ""
	a := newTestApp(t, cfg)

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "You are not signed in")

	req := httptest.NewRequest(http.MethodPost, "/compose/submit", strings.NewReader("postInput=hi"))
	req.Header.Set(config.HCType, "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClerkRequiresKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Type = "clerk"

	_, err := newApp(context.Background(), cfg, config.Secrets{}, content)
	assert.Error(t, err)
}

func TestDrainFinishesSubmissionsBeforeClosing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "feed.db")
	a, err := newApp(context.Background(), cfg, config.Secrets{}, content)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodPost, "/compose/submit", strings.NewReader("postInput=last+words"))
	req.Header.Set(config.HCType, "application/x-www-form-urlencoded")
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.drain(ctx))

	reopened := db.NewSQLite(cfg.Storage.DatabasePath)
	require.NoError(t, reopened.InitDB())
	defer reopened.Close()
	var n int
	require.NoError(t, reopened.QueryRow(`SELECT COUNT(*) FROM posts`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestClerkWebhookSecretIsValidated(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Type = "clerk"

	_, err := newApp(context.Background(), cfg, config.Secrets{ClerkKey: "sk_test_dummy", ClerkWebhook: "not a secret"}, content)
	assert.ErrorContains(t, err, "CLERK_WEBHOOK_SECRET")
}
