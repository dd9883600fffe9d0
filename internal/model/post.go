// Package model defines core data structures and types for the feed application.
package model

import (
	"strings"
	"time"
)

type PostID string

type Post struct {
	ID PostID

	Text string

	// Used for change detection on the stored, compressed text.
	ContentHash string

	// Optional image attached to the post.
	ImageKey         string
	ImageContentType string

	CreatedDate time.Time

	Owner UserID
}

func (p *Post) HasImage() bool {
	return p.ImageKey != ""
}

// Image is a single binary file picked by the user.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

func (i *Image) Size() int {
	if i == nil {
		return 0
	}
	return len(i.Data)
}

func (i *Image) IsImage() bool {
	return i != nil && strings.HasPrefix(strings.ToLower(i.ContentType), "image/")
}

// PostPayload is the value snapshot handed to the post creation operation.
type PostPayload struct {
	Text  string
	Image *Image
}

func (p PostPayload) HasImage() bool {
	return p.Image != nil
}
