package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/the-feed/internal/auth"
	"github.com/debemdeboas/the-feed/internal/cache"
	"github.com/debemdeboas/the-feed/internal/composer"
	"github.com/debemdeboas/the-feed/internal/config"
	"github.com/debemdeboas/the-feed/internal/db"
	"github.com/debemdeboas/the-feed/internal/logger"
	"github.com/debemdeboas/the-feed/internal/model"
	"github.com/debemdeboas/the-feed/internal/repository"
	"github.com/debemdeboas/the-feed/internal/repository/media"
	"github.com/debemdeboas/the-feed/internal/routes"
	"github.com/debemdeboas/the-feed/internal/service/post"
	"github.com/debemdeboas/the-feed/internal/sse"
	"github.com/debemdeboas/the-feed/internal/util"
	"github.com/debemdeboas/the-feed/internal/util/compression"
)

//go:embed static/* templates/*
var content embed.FS

// app holds everything the HTTP server needs once it is wired.
type app struct {
	handler  http.Handler
	database db.DB
	sessions *composer.Sessions
	limiter  *composer.SubmitLimiter
	clients  *sse.SSEClients
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	secrets, err := config.LoadSecrets(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(secrets.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	setLoggers(log)

	a, err := newApp(ctx, cfg, secrets, content)
	if err != nil {
		log.Fatal().Err(err).Msg("Error starting application")
	}

	idle := cfg.Composer.SessionIdleTimeout
	if idle <= 0 {
		idle = time.Hour
	}
	go a.sessions.RunSweeper(ctx, idle/4, idle)
	go func() {
		ticker := time.NewTicker(idle)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.limiter.Forget(idle)
			}
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Event streams never end on their own.
	srv.RegisterOnShutdown(a.clients.Close)

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Composer.SubmitTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down server")
	}
	if err := a.drain(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error draining submissions")
	}
}

// drain waits for submissions still running, then closes the database under them.
func (a *app) drain(ctx context.Context) error {
	waitErr := a.sessions.Wait(ctx)
	if err := a.database.Close(); err != nil {
		return err
	}
	return waitErr
}

func setLoggers(l zerolog.Logger) {
	config.SetLogger(logger.Component(l, "config"))
	db.SetLogger(logger.Component(l, "db"))
	repository.SetLogger(logger.Component(l, "repository"))
	media.SetLogger(logger.Component(l, "media"))
	auth.SetLogger(logger.Component(l, "auth"))
	post.SetLogger(logger.Component(l, "post"))
	composer.SetLogger(logger.Component(l, "composer"))
	sse.SetLogger(logger.Component(l, "sse"))
}

func newApp(ctx context.Context, cfg *config.Config, secrets config.Secrets, files fs.FS) (*app, error) {
	database := db.NewSQLite(cfg.Storage.DatabasePath)
	if err := database.InitDB(); err != nil {
		return nil, fmt.Errorf(config.ErrInitializeDatabaseFmt, err)
	}

	compressor, err := compression.New(cfg.Storage.Compression)
	if err != nil {
		return nil, err
	}
	posts := repository.NewDBPostRepository(database, compressor)

	store, err := newMediaStore(ctx, cfg.Storage, secrets)
	if err != nil {
		return nil, err
	}

	provider, err := newIdentityProvider(cfg.Auth, secrets, database)
	if err != nil {
		return nil, err
	}

	service := post.NewService(posts, store, uint(max(cfg.Storage.MaxImageWidth, 0)))

	clients := sse.NewSSEClients()
	previews := composer.NewPreviewStore(config.PreviewsUrlPath)
	sessions := composer.NewSessions(previews, service, composer.Options{
		GuardDoubleSubmit: cfg.Composer.GuardDoubleSubmit,
		SubmitTimeout:     cfg.Composer.SubmitTimeout,
		MaxImageBytes:     cfg.Composer.MaxImageBytes,
	})
	sessions.SetResultNotifier(func(id composer.SessionID, e composer.Event) {
		clients.Broadcast(string(id), string(e))
	})
	limiter := composer.NewSubmitLimiter(cfg.Composer.SubmitRatePerMinute, cfg.Composer.SubmitBurst)

	composerHandler, err := composer.NewHandler(sessions, previews, posts, limiter, files, cfg.Composer.MaxImageBytes)
	if err != nil {
		return nil, err
	}

	// Calculate the hash of static content
	static, err := fs.Sub(files, config.StaticLocalDir)
	if err != nil {
		return nil, err
	}
	fs.WalkDir(static, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(static, path)
		if err != nil {
			return err
		}
		cache.SetStaticHash(config.StaticUrlPath+path, util.ContentHash(data))
		return nil
	})

	mux := http.NewServeMux()

	mux.HandleFunc(routes.RobotsPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, config.CTypeText)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User-agent: *\nDisallow:"))
	})

	mux.Handle(config.StaticUrlPath, http.StripPrefix(config.StaticUrlPath, http.FileServer(http.FS(static))))
	mux.Handle(routes.SSEPath, clients)
	composerHandler.Register(mux)

	if clerkProvider, ok := provider.(*auth.ClerkIdentityProvider); ok {
		mux.HandleFunc(routes.WebhookUser, clerkProvider.HandleWebhookUser)
	}

	securedMux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == routes.RobotsPath { // Ignore robots.txt
			mux.ServeHTTP(w, r)
		} else {
			secureHeaders(mux.ServeHTTP)(w, r)
		}
	})

	identified := auth.WithIdentity(provider)(securedMux)
	authMux := provider.WithHeaderAuthorization()(identified)

	return &app{
		handler:  cacheIt(authMux.ServeHTTP),
		database: database,
		sessions: sessions,
		limiter:  limiter,
		clients:  clients,
	}, nil
}

func newMediaStore(ctx context.Context, cfg config.StorageConfig, secrets config.Secrets) (media.Store, error) {
	switch cfg.MediaBackend {
	case "s3":
		return media.NewS3Store(ctx, secrets.S3AccessKeyID, secrets.S3AccessSecret, secrets.S3Endpoint, cfg.MediaBucket)
	case "memory":
		return media.NewMemoryStore(), nil
	default:
		return media.NewFSStore(cfg.MediaDir)
	}
}

func newIdentityProvider(cfg config.AuthConfig, secrets config.Secrets, database db.DB) (auth.IdentityProvider, error) {
	switch cfg.Type {
	case "static":
		return auth.NewStaticIdentityProvider(model.Identity{
			ID:        model.UserID(cfg.StaticUserID),
			FirstName: cfg.StaticFirstName,
			LastName:  cfg.StaticLastName,
		}), nil
	default:
		if secrets.ClerkKey == "" {
			return nil, fmt.Errorf("CLERK_API must be set when auth.type is %q", cfg.Type)
		}
		provider := auth.NewClerkIdentityProvider(secrets.ClerkKey, database)
		if secrets.ClerkWebhook == "" {
			return provider, nil
		}
		if err := provider.SetWebhookSecret(secrets.ClerkWebhook); err != nil {
			return nil, fmt.Errorf("invalid CLERK_WEBHOOK_SECRET: %w", err)
		}
		return provider, nil
	}
}

func cacheIt(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCacheControl, "no-cache")
		w.Header().Set("Vary", "Cookie")

		// Add etag header to response if it's a static file
		if hash, ok := cache.GetStaticHash(r.URL.Path); ok {
			w.Header().Set(config.HCacheControl, "public, max-age=3600")
			w.Header().Set(config.HETag, hash)
		}

		h(w, r)
	}
}

func secureHeaders(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")

		h(w, r)
	}
}
