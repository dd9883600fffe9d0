package media

import (
	"context"
	"fmt"

	"github.com/debemdeboas/the-feed/internal/cache"
)

type object struct {
	contentType string
	data        []byte
}

type MemoryStore struct {
	objects *cache.Cache[string, object]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: cache.NewCache[string, object]()}
}

func (m *MemoryStore) Put(_ context.Context, key, contentType string, data []byte) error {
	m.objects.Set(key, object{contentType: contentType, data: append([]byte(nil), data...)})
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, string, error) {
	obj, ok := m.objects.Get(key)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return obj.data, obj.contentType, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.objects.Delete(key)
	return nil
}

func (m *MemoryStore) Len() int {
	return m.objects.Len()
}
