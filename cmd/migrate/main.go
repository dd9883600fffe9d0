package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/the-feed/internal/auth"
	"github.com/debemdeboas/the-feed/internal/config"
	"github.com/debemdeboas/the-feed/internal/db"
	"github.com/debemdeboas/the-feed/internal/logger"
	"github.com/debemdeboas/the-feed/internal/model"
	"github.com/debemdeboas/the-feed/internal/repository"
	"github.com/debemdeboas/the-feed/internal/repository/media"
	"github.com/debemdeboas/the-feed/internal/service/post"
	"github.com/debemdeboas/the-feed/internal/util/compression"
)

var imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// main imports a directory of .txt posts, each optionally paired with an image of the same base name.
func main() {
	path := flag.String("path", "", "Path to the directory containing .txt files")
	ownerID := flag.String("owner-id", "", "Owner user ID for the posts")
	configPath := flag.String("config", "config.yaml", "Path to the config file")
	flag.Parse()

	log := logger.New("info")
	config.SetLogger(logger.Component(log, "config"))
	db.SetLogger(logger.Component(log, "db"))
	repository.SetLogger(logger.Component(log, "repository"))
	media.SetLogger(logger.Component(log, "media"))
	post.SetLogger(logger.Component(log, "post"))

	if *path == "" || *ownerID == "" {
		log.Fatal().Msg("Both --path and --owner-id flags are required")
	}

	ctx := context.Background()
	secrets, err := config.LoadSecrets(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading secrets")
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	database := db.NewSQLite(cfg.Storage.DatabasePath)
	if err := database.InitDB(); err != nil {
		log.Fatal().Err(err).Msgf(config.ErrInitializeDatabaseFmt, err)
	}
	defer database.Close()

	compressor, err := compression.New(cfg.Storage.Compression)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating compressor")
	}

	var store media.Store
	if cfg.Storage.MediaBackend == "s3" {
		store, err = media.NewS3Store(ctx, secrets.S3AccessKeyID, secrets.S3AccessSecret, secrets.S3Endpoint, cfg.Storage.MediaBucket)
	} else {
		store, err = media.NewFSStore(cfg.Storage.MediaDir)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening media store")
	}

	service := post.NewService(repository.NewDBPostRepository(database, compressor), store, uint(max(cfg.Storage.MaxImageWidth, 0)))
	ctx = auth.ContextWithUserID(ctx, model.UserID(*ownerID))

	imported, failed := importDir(ctx, service, *path, log)
	log.Info().Int("imported", imported).Int("failed", failed).Msg("Migration finished")
}

func importDir(ctx context.Context, service *post.Service, dir string, log zerolog.Logger) (imported, failed int) {
	files, err := os.ReadDir(dir)
	if err != nil {
		log.Fatal().Err(err).Str("path", dir).Msg("Error reading directory")
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".txt") {
			continue
		}
		p, err := importFile(ctx, service, dir, file.Name())
		if err != nil {
			log.Error().Err(err).Str("file", file.Name()).Msg("Error processing file")
			failed++
			continue
		}
		log.Info().Str("file", file.Name()).Str("post_id", string(p.ID)).Msg("Saved post")
		imported++
	}
	return imported, failed
}

func importFile(ctx context.Context, service *post.Service, dir, name string) (*model.Post, error) {
	text, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}

	payload := model.PostPayload{Text: string(text)}

	base := strings.TrimSuffix(name, ".txt")
	for _, ext := range imageExts {
		data, err := os.ReadFile(filepath.Join(dir, base+ext))
		if err != nil {
			continue
		}
		payload.Image = &model.Image{
			Name:        base + ext,
			ContentType: mime.TypeByExtension(ext),
			Data:        data,
		}
		break
	}

	p, err := service.CreatePost(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}
	return p, nil
}
