// Package post implements the creation operation behind the composer.
package post

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/the-feed/internal/auth"
	"github.com/debemdeboas/the-feed/internal/model"
	"github.com/debemdeboas/the-feed/internal/repository"
	"github.com/debemdeboas/the-feed/internal/repository/media"
	"github.com/debemdeboas/the-feed/internal/util"
)

var (
	ErrUnauthenticated = errors.New("no signed-in author")
	ErrEmptyPost       = errors.New("post text is empty")
	ErrNotAnImage      = errors.New("attachment is not an image")
)

var serviceLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	serviceLogger = l
}

type Service struct {
	posts    repository.PostRepository
	media    media.Store
	policy   *bluemonday.Policy
	maxWidth uint
}

// NewService returns a Service. A maxWidth of zero keeps images at their original size.
func NewService(posts repository.PostRepository, store media.Store, maxWidth uint) *Service {
	return &Service{
		posts:    posts,
		media:    store,
		policy:   bluemonday.StrictPolicy(),
		maxWidth: maxWidth,
	}
}

// CreatePost stores the image, if any, then the post. The author is taken from ctx.
func (s *Service) CreatePost(ctx context.Context, payload model.PostPayload) (*model.Post, error) {
	owner, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}

	text := s.sanitize(payload.Text)
	if util.IsBlank(text) {
		return nil, ErrEmptyPost
	}
	if payload.HasImage() && !payload.Image.IsImage() {
		return nil, ErrNotAnImage
	}

	post := s.posts.NewPost()
	post.Text = text
	post.Owner = owner

	if payload.HasImage() {
		data, err := s.optimize(payload.Image)
		if err != nil {
			serviceLogger.Warn().Err(err).Str("image", payload.Image.Name).Msg("Error optimizing image, storing original")
			data = payload.Image.Data
		}

		key := media.PostImageKey(string(post.ID), payload.Image.Name)
		if err := s.media.Put(ctx, key, payload.Image.ContentType, data); err != nil {
			return nil, fmt.Errorf("error storing image: %w", err)
		}
		post.ImageKey = key
		post.ImageContentType = payload.Image.ContentType
	}

	if err := s.posts.SavePost(ctx, post); err != nil {
		if post.HasImage() {
			if derr := s.media.Delete(context.WithoutCancel(ctx), post.ImageKey); derr != nil {
				serviceLogger.Error().Err(derr).Str("key", post.ImageKey).Msg("Error removing orphaned image")
			}
		}
		return nil, err
	}

	serviceLogger.Info().
		Str("post_id", string(post.ID)).
		Str("user_id", string(owner)).
		Bool("has_image", post.HasImage()).
		Msg("Post saved")
	return post, nil
}

// sanitize strips markup. Entities are decoded again since the text is stored raw
// and escaped when rendered.
func (s *Service) sanitize(text string) string {
	clean := s.policy.Sanitize(util.NormalizeNewlines(text))
	return strings.TrimSpace(html.UnescapeString(clean))
}

// optimize downscales jpeg and png images wider than maxWidth. Other formats are kept as is.
func (s *Service) optimize(img *model.Image) ([]byte, error) {
	if s.maxWidth == 0 {
		return img.Data, nil
	}

	decoded, format, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, err
	}
	if uint(decoded.Bounds().Dx()) <= s.maxWidth {
		return img.Data, nil
	}

	m := resize.Resize(s.maxWidth, 0, decoded, resize.Lanczos3)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, m, &jpeg.Options{Quality: 85})
	case "png":
		err = png.Encode(&buf, m)
	default:
		return img.Data, nil
	}
	if err != nil {
		return nil, err
	}

	serviceLogger.Debug().
		Str("image", img.Name).
		Int("before", len(img.Data)).
		Int("after", buf.Len()).
		Msg("Image downscaled")
	return buf.Bytes(), nil
}
