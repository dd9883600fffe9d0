// Package repository persists posts.
package repository

import (
	"context"
	"errors"

	"github.com/debemdeboas/the-feed/internal/model"
	"github.com/rs/zerolog"
)

var ErrPostNotFound = errors.New("post not found")

type PostRepository interface {
	NewPost() *model.Post
	SavePost(ctx context.Context, post *model.Post) error
	ReadPost(id model.PostID) (*model.Post, error)
	CountByOwner(owner model.UserID) (int, error)
}

var repoLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}
