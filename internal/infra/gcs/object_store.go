// internal/infra/gcs/object_store.go
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"form-orchestrator/internal/domain"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// ObjectStore implements domain.ObjectStore on Google Cloud Storage. Each Put
// is a single object write, which GCS applies atomically per key.
type ObjectStore struct {
	client *storage.Client
}

var _ domain.ObjectStore = (*ObjectStore)(nil)

// NewObjectStore wraps an existing storage client.
func NewObjectStore(client *storage.Client) *ObjectStore {
	return &ObjectStore{client: client}
}

func (s *ObjectStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write object %s/%s: %w", bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *ObjectStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, domain.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open object %s/%s: %w", bucket, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func (s *ObjectStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %s/%s: %w", bucket, prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}
