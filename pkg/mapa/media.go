package mapa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Upload is a media payload staged on local disk, the Received state
// of the asset pipeline.
type Upload struct {
	TempPath string
	Filename string
}

// MediaConfig options for the media asset pipeline
type MediaConfig struct {
	StagingDir    string // local directory for staged uploads
	PublicBaseURL string // URL prefix stored objects are reachable under
}

// MediaPipeline moves uploaded payloads into durable object storage
// and produces the URL written into the owning record.
//
// Per upload the pipeline runs Received -> Relocated -> Stored ->
// Linked with compensating cleanup on every failure edge: a staged
// file never survives a failed store, and callers that fail to link
// the returned URL delete the stored object before surfacing the
// error.
type MediaPipeline struct {
	store      BlobStore
	stagingDir string
	baseURL    string
}

// NewMediaPipeline creates a pipeline staging uploads under
// cfg.StagingDir and storing them in the given blob store.
func NewMediaPipeline(store BlobStore, cfg MediaConfig) (*MediaPipeline, error) {
	if store == nil {
		return nil, errors.New("blob store is required")
	}
	if cfg.StagingDir == "" {
		return nil, errors.New("staging directory is required")
	}
	if err := os.MkdirAll(cfg.StagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	return &MediaPipeline{
		store:      store,
		stagingDir: cfg.StagingDir,
		baseURL:    strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// Stage writes an incoming payload to a stable path in the staging
// directory (Received -> Relocated). A failure here aborts the whole
// operation with no side effects.
func (p *MediaPipeline) Stage(r io.Reader, filename string) (*Upload, error) {
	f, err := os.CreateTemp(p.stagingDir, "upload-*")
	if err != nil {
		return nil, &MediaError{Op: "stage", Err: err}
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, &MediaError{Op: "stage", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, &MediaError{Op: "stage", Err: err}
	}
	return &Upload{TempPath: f.Name(), Filename: filename}, nil
}

// Store uploads the staged file to durable storage under objectKey
// (Relocated -> Stored) and returns the public URL for linking. The
// staged file is consumed whether the store succeeds or not, so no
// orphaned local files remain. Storing to an existing key overwrites
// the previous object, which is how replace operations work.
func (p *MediaPipeline) Store(ctx context.Context, upload *Upload, objectKey string) (string, error) {
	f, err := os.Open(upload.TempPath)
	if err != nil {
		return "", &MediaError{Key: objectKey, Op: "store", Err: err}
	}
	uploadErr := p.store.Upload(ctx, objectKey, f)
	f.Close()
	os.Remove(upload.TempPath)

	if uploadErr != nil {
		return "", &MediaError{Key: objectKey, Op: "store", Err: uploadErr}
	}
	return p.URL(objectKey), nil
}

// Discard drops a staged upload that will not be stored, e.g. when
// the operation fails validation before reaching the pipeline.
func (p *MediaPipeline) Discard(upload *Upload) {
	if upload != nil && upload.TempPath != "" {
		os.Remove(upload.TempPath)
	}
}

// Delete removes the object stored under objectKey. A missing object
// is not an error; deletes are idempotent.
func (p *MediaPipeline) Delete(ctx context.Context, objectKey string) error {
	if err := p.store.Delete(ctx, objectKey); err != nil && !errors.Is(err, ErrObjectNotFound) {
		return &MediaError{Key: objectKey, Op: "delete", Err: err}
	}
	return nil
}

// URL returns the public URL an object is reachable under.
func (p *MediaPipeline) URL(objectKey string) string {
	if p.baseURL == "" {
		return objectKey
	}
	return p.baseURL + "/" + objectKey
}

// PostAssetKey is the deterministic object key for a post's asset.
// Replacing the asset reuses the key, overwriting the old object
// instead of accumulating a second one.
func PostAssetKey(authorID uuid.UUID, slug string) string {
	return fmt.Sprintf("posts/%s-%s", authorID, slug)
}

// AvatarAssetKey is the deterministic object key for a user's avatar.
func AvatarAssetKey(userID uuid.UUID, filename string) string {
	ext := path.Ext(filename)
	return fmt.Sprintf("avatars/%s%s", userID, ext)
}
