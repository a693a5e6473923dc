package mapa_test

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapa-edu/mapa-server/pkg/mapa"
	memorystorage "github.com/mapa-edu/mapa-server/pkg/mapa/storage/memory"
)

func newTestPipeline(t *testing.T) (*mapa.MediaPipeline, mapa.BlobStore, string) {
	t.Helper()
	stagingDir := t.TempDir()
	store := memorystorage.New()
	pipeline, err := mapa.NewMediaPipeline(store, mapa.MediaConfig{
		StagingDir:    stagingDir,
		PublicBaseURL: "http://localhost:8080/media",
	})
	require.NoError(t, err)
	return pipeline, store, stagingDir
}

func stagingEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestMediaPipeline(t *testing.T) {
	ctx := context.Background()

	t.Run("stage then store", func(t *testing.T) {
		pipeline, store, stagingDir := newTestPipeline(t)

		upload, err := pipeline.Stage(strings.NewReader("lesson video"), "lesson.mp4")
		require.NoError(t, err)
		assert.Equal(t, 1, stagingEntries(t, stagingDir))

		url, err := pipeline.Store(ctx, upload, "posts/abc")
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080/media/posts/abc", url)

		// Staged file is consumed.
		assert.Equal(t, 0, stagingEntries(t, stagingDir))

		body, err := store.Download(ctx, "posts/abc")
		require.NoError(t, err)
		defer body.Close()
		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, "lesson video", string(data))
	})

	t.Run("store to same key overwrites", func(t *testing.T) {
		pipeline, store, _ := newTestPipeline(t)

		first, err := pipeline.Stage(strings.NewReader("v1"), "a.txt")
		require.NoError(t, err)
		_, err = pipeline.Store(ctx, first, "posts/x")
		require.NoError(t, err)

		second, err := pipeline.Stage(strings.NewReader("v2"), "a.txt")
		require.NoError(t, err)
		_, err = pipeline.Store(ctx, second, "posts/x")
		require.NoError(t, err)

		body, err := store.Download(ctx, "posts/x")
		require.NoError(t, err)
		defer body.Close()
		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, "v2", string(data))
	})

	t.Run("discard removes staged file", func(t *testing.T) {
		pipeline, _, stagingDir := newTestPipeline(t)

		upload, err := pipeline.Stage(strings.NewReader("abandoned"), "a.txt")
		require.NoError(t, err)
		assert.Equal(t, 1, stagingEntries(t, stagingDir))

		pipeline.Discard(upload)
		assert.Equal(t, 0, stagingEntries(t, stagingDir))

		// Discarding nil is a no-op.
		pipeline.Discard(nil)
	})

	t.Run("store failure consumes staged file", func(t *testing.T) {
		pipeline, _, stagingDir := newTestPipeline(t)

		upload, err := pipeline.Stage(strings.NewReader("data"), "a.txt")
		require.NoError(t, err)

		// Remove the staged file behind the pipeline's back to force a
		// store failure.
		require.NoError(t, os.Remove(upload.TempPath))

		_, err = pipeline.Store(ctx, upload, "posts/fail")
		require.Error(t, err)
		var mediaErr *mapa.MediaError
		assert.ErrorAs(t, err, &mediaErr)
		assert.Equal(t, 0, stagingEntries(t, stagingDir))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		pipeline, _, _ := newTestPipeline(t)

		upload, err := pipeline.Stage(strings.NewReader("data"), "a.txt")
		require.NoError(t, err)
		_, err = pipeline.Store(ctx, upload, "posts/gone")
		require.NoError(t, err)

		assert.NoError(t, pipeline.Delete(ctx, "posts/gone"))
		assert.NoError(t, pipeline.Delete(ctx, "posts/gone"))
		assert.NoError(t, pipeline.Delete(ctx, "posts/never-existed"))
	})
}

func TestAssetKeys(t *testing.T) {
	authorID := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	t.Run("post asset key embeds author and slug", func(t *testing.T) {
		key := mapa.PostAssetKey(authorID, "my-lesson-abc12")
		assert.Equal(t, "posts/11111111-2222-3333-4444-555555555555-my-lesson-abc12", key)
	})

	t.Run("avatar asset key keeps extension", func(t *testing.T) {
		key := mapa.AvatarAssetKey(authorID, "selfie.png")
		assert.Equal(t, "avatars/11111111-2222-3333-4444-555555555555.png", key)
	})

	t.Run("avatar asset key without extension", func(t *testing.T) {
		key := mapa.AvatarAssetKey(authorID, "selfie")
		assert.Equal(t, "avatars/11111111-2222-3333-4444-555555555555", key)
	})
}
