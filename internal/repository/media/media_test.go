package media

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestPostImageKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"cat.png", "posts/p1/cat.png"},
		{"../../etc/passwd", "posts/p1/passwd"},
		{`C:\Users\ada\cat.png`, "posts/p1/cat.png"},
		{"", "posts/p1/image"},
		{"/", "posts/p1/image"},
	}
	for _, tt := range tests {
		if got := PostImageKey("p1", tt.name); got != tt.want {
			t.Errorf("PostImageKey(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	key := PostImageKey("p1", "cat.png")
	data := []byte{0x89, 'P', 'N', 'G'}

	if _, _, err := store.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound before put, got %v", err)
	}

	if err := store.Put(ctx, key, "image/png", data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, contentType, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Expected %v, got %v", data, got)
	}
	if contentType != "image/png" {
		t.Errorf("Expected image/png, got %q", contentType)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := store.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	// Deleting twice is not an error
	if err := store.Delete(ctx, key); err != nil {
		t.Errorf("Expected repeated delete to succeed, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	exerciseStore(t, store)
	if store.Len() != 0 {
		t.Errorf("Expected empty store, got %d", store.Len())
	}
}

func TestFSStore(t *testing.T) {
	SetLogger(zerolog.New(os.Stdout).Level(zerolog.ErrorLevel))

	root := filepath.Join(t.TempDir(), "media")
	store, err := NewFSStore(root)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	exerciseStore(t, store)

	t.Run("Rejects keys escaping the root", func(t *testing.T) {
		if err := store.Put(context.Background(), "../outside.png", "image/png", []byte{1}); err == nil {
			t.Error("Expected error for key escaping media root")
		}
	})
}
