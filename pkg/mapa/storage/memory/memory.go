package memory

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/mapa-edu/mapa-server/pkg/mapa"
)

// Backend is an in-memory implementation of the mapa.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

type object struct {
	data      []byte
	updatedAt time.Time
}

// New creates a new in-memory storage backend
func New() mapa.BlobStore {
	return &Backend{objects: make(map[string]object)}
}

// Upload uploads content directly
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[objectKey] = object{data: data, updatedAt: time.Now()}
	return nil
}

// Download downloads content directly
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, mapa.ErrObjectNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return mapa.ErrObjectNotFound
	}

	delete(b.objects, objectKey)
	return nil
}

// GetObjectMeta retrieves metadata for an object in memory
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*mapa.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, mapa.ErrObjectNotFound
	}

	contentType := http.DetectContentType(obj.data)

	meta := &mapa.ObjectMeta{
		Key:         objectKey,
		Size:        int64(len(obj.data)),
		ContentType: contentType,
		UpdatedAt:   obj.updatedAt,
		Metadata:    map[string]string{"content_type": contentType},
	}

	return meta, nil
}
