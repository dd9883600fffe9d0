package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debemdeboas/the-feed/internal/auth"
	"github.com/debemdeboas/the-feed/internal/db"
	"github.com/debemdeboas/the-feed/internal/repository"
	"github.com/debemdeboas/the-feed/internal/repository/media"
	"github.com/debemdeboas/the-feed/internal/service/post"
)

func TestImportDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("Hello there"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank.txt"), []byte("   "), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pic.txt"), []byte("Look"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pic.gif"), []byte("GIF89a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("skipped"), 0644))

	database := db.NewSQLite(":memory:")
	require.NoError(t, database.InitDB())
	defer database.Close()

	repo := repository.NewDBPostRepository(database, nil)
	store := media.NewMemoryStore()
	service := post.NewService(repo, store, 0)

	ctx := auth.ContextWithUserID(context.Background(), "importer")
	imported, failed := importDir(ctx, service, dir, zerolog.Nop())

	assert.Equal(t, 2, imported)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, store.Len())

	n, err := repo.CountByOwner("importer")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
