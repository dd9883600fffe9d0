package composer

import (
	"strings"

	"github.com/debemdeboas/the-feed/internal/cache"
	"github.com/debemdeboas/the-feed/internal/model"
	"github.com/google/uuid"
)

// PreviewURL is a locally resolvable address for a selected image. It is
// only for display and stops resolving once revoked.
type PreviewURL string

// PreviewStore issues and revokes preview URLs. One store is shared by all
// composers, so Live reports every preview still held across sessions.
type PreviewStore struct {
	prefix string
	items  *cache.Cache[string, *model.Image]
}

func NewPreviewStore(prefix string) *PreviewStore {
	return &PreviewStore{
		prefix: prefix,
		items:  cache.NewCache[string, *model.Image](),
	}
}

func (s *PreviewStore) Create(img *model.Image) PreviewURL {
	id := uuid.NewString()
	s.items.Set(id, img)
	return PreviewURL(s.prefix + id)
}

// Revoke releases u and reports whether it was live.
func (s *PreviewStore) Revoke(u PreviewURL) bool {
	if u == "" {
		return false
	}
	_, ok := s.items.Pop(s.ID(u))
	return ok
}

func (s *PreviewStore) Resolve(id string) (*model.Image, bool) {
	return s.items.Get(id)
}

func (s *PreviewStore) IsLive(u PreviewURL) bool {
	if u == "" {
		return false
	}
	_, ok := s.items.Get(s.ID(u))
	return ok
}

func (s *PreviewStore) Live() int {
	return s.items.Len()
}

func (s *PreviewStore) ID(u PreviewURL) string {
	return strings.TrimPrefix(string(u), s.prefix)
}
