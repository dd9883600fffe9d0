// Package media stores the binary images attached to posts.
package media

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("media not found")

type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

var mediaLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	mediaLogger = l
}

// PostImageKey builds the storage key for a post image, keeping only the base file name.
func PostImageKey(postID, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "image"
	}
	return "posts/" + postID + "/" + name
}
