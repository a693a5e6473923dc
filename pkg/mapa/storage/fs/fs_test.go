package fs_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapa-edu/mapa-server/pkg/mapa"
	fsstorage "github.com/mapa-edu/mapa-server/pkg/mapa/storage/fs"
)

func TestFSBackend(t *testing.T) {
	baseDir := t.TempDir()
	backend, err := fsstorage.New(fsstorage.Config{BaseDir: baseDir})
	require.NoError(t, err)

	ctx := context.Background()
	testKey := "posts/nested/author-slug"
	testData := "filesystem payload"

	t.Run("Upload creates nested directories", func(t *testing.T) {
		err := backend.Upload(ctx, testKey, strings.NewReader(testData))
		require.NoError(t, err)

		_, err = os.Stat(filepath.Join(baseDir, "posts", "nested", "author-slug"))
		assert.NoError(t, err)
	})

	t.Run("Download", func(t *testing.T) {
		reader, err := backend.Download(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, testData, string(data))
	})

	t.Run("GetObjectMeta", func(t *testing.T) {
		meta, err := backend.GetObjectMeta(ctx, testKey)
		require.NoError(t, err)
		assert.Equal(t, testKey, meta.Key)
		assert.Equal(t, int64(len(testData)), meta.Size)
		assert.NotEmpty(t, meta.ContentType)
	})

	t.Run("Delete cleans empty directories", func(t *testing.T) {
		err := backend.Delete(ctx, testKey)
		require.NoError(t, err)

		_, err = os.Stat(filepath.Join(baseDir, "posts"))
		assert.True(t, os.IsNotExist(err))

		// The base directory itself survives.
		_, err = os.Stat(baseDir)
		assert.NoError(t, err)
	})

	t.Run("MissingObject", func(t *testing.T) {
		_, err := backend.Download(ctx, "missing")
		assert.ErrorIs(t, err, mapa.ErrObjectNotFound)

		_, err = backend.GetObjectMeta(ctx, "missing")
		assert.ErrorIs(t, err, mapa.ErrObjectNotFound)

		err = backend.Delete(ctx, "missing")
		assert.ErrorIs(t, err, mapa.ErrObjectNotFound)
	})

	t.Run("EmptyBaseDirRejected", func(t *testing.T) {
		_, err := fsstorage.New(fsstorage.Config{})
		assert.Error(t, err)
	})
}
