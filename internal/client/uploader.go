package client

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"form-orchestrator/internal/domain"

	"golang.org/x/sync/errgroup"
)

// Document is one local document to stage into the blob store before
// submission.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// Uploader stages a submission's documents into the document bucket. All
// uploads run concurrently and the submission must not be issued unless every
// upload succeeded.
type Uploader struct {
	store  domain.ObjectStore
	bucket string
	logger *slog.Logger
}

func NewUploader(store domain.ObjectStore, bucket string, logger *slog.Logger) *Uploader {
	return &Uploader{
		store:  store,
		bucket: bucket,
		logger: logger.With("component", "uploader"),
	}
}

// UploadAll writes every document under the given prefix. Any single failure
// aborts the whole batch; the caller must not submit afterwards.
func (u *Uploader) UploadAll(ctx context.Context, prefix string, docs []Document) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, doc := range docs {
		g.Go(func() error {
			key := path.Join(prefix, doc.Name)
			if err := u.store.Put(gctx, u.bucket, key, doc.Data, doc.ContentType); err != nil {
				return fmt.Errorf("failed to upload %s: %w", doc.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	u.logger.Info("documents uploaded", "count", len(docs), "prefix", prefix)
	return nil
}
