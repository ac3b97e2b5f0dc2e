package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCS stores objects in a Google Cloud Storage bucket. The client is
// constructed once at process start and closed at shutdown; authentication
// rides Application Default Credentials.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS creates a GCS-backed store for the given bucket.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("blob: create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}

// Put uploads data under key, finalizing the object on writer close.
func (g *GCS) Put(ctx context.Context, key string, data []byte, contentType string) error {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("blob: write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("blob: finalize object %s: %w", key, err)
	}
	return nil
}

// Get downloads the object stored under key.
func (g *GCS) Get(ctx context.Context, key string) ([]byte, error) {
	rc, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blob: open object %s: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("blob: read object %s: %w", key, err)
	}
	return data, nil
}

var _ Store = (*GCS)(nil)
