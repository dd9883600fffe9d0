package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/debemdeboas/the-feed/internal/db"
	"github.com/debemdeboas/the-feed/internal/model"
	"github.com/debemdeboas/the-feed/internal/util"
	"github.com/debemdeboas/the-feed/internal/util/compression"
	"github.com/google/uuid"
)

type DBPostRepository struct { // implements PostRepository
	db         db.DB
	compressor compression.Compressor
}

func NewDBPostRepository(db db.DB, compressor compression.Compressor) *DBPostRepository {
	if compressor == nil {
		compressor = compression.ZstdCompressor{}
	}
	return &DBPostRepository{
		db:         db,
		compressor: compressor,
	}
}

func (r *DBPostRepository) NewPost() *model.Post {
	return &model.Post{
		ID:          model.PostID(uuid.New().String()),
		CreatedDate: time.Now().UTC(),
	}
}

func (r *DBPostRepository) SavePost(ctx context.Context, post *model.Post) error {
	compressed, err := r.compressor.Compress([]byte(post.Text))
	if err != nil {
		return fmt.Errorf("error compressing content: %w", err)
	}

	post.ContentHash = util.ContentHash(compressed)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, content, content_hash, image_key, image_content_type, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		post.ID, compressed, post.ContentHash, nullable(post.ImageKey), nullable(post.ImageContentType), post.Owner, post.CreatedDate,
	)
	if err != nil {
		return fmt.Errorf("error saving post: %w", err)
	}

	repoLogger.Debug().Interface("result", res).Str("post_id", string(post.ID)).Msg("Post saved")
	return nil
}

func (r *DBPostRepository) ReadPost(id model.PostID) (*model.Post, error) {
	var post model.Post
	var compressed []byte
	var imageKey, imageType sql.NullString

	err := r.db.QueryRow(
		`SELECT id, content, content_hash, image_key, image_content_type, user_id, created_at FROM posts WHERE id = ?`, id,
	).Scan(&post.ID, &compressed, &post.ContentHash, &imageKey, &imageType, &post.Owner, &post.CreatedDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPostNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading post: %w", err)
	}

	content, err := r.compressor.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("error decompressing content: %w", err)
	}
	post.Text = string(content)
	post.ImageKey = imageKey.String
	post.ImageContentType = imageType.String

	return &post, nil
}

func (r *DBPostRepository) CountByOwner(owner model.UserID) (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM posts WHERE user_id = ?`, owner).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting posts: %w", err)
	}
	return n, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
