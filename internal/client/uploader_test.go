package client_test

import (
	"context"
	"errors"
	"testing"

	"form-orchestrator/internal/client"
	"form-orchestrator/internal/infra/memory"
)

// failingStore rejects puts for one document name.
type failingStore struct {
	*memory.ObjectStore
	failKey string
}

func (s *failingStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if key == s.failKey {
		return errors.New("quota exceeded")
	}
	return s.ObjectStore.Put(ctx, bucket, key, data, contentType)
}

func TestUploader_UploadAll(t *testing.T) {
	store := memory.NewObjectStore()
	u := client.NewUploader(store, "user-documents", testLogger())

	docs := []client.Document{
		{Name: "resume.pdf", ContentType: "application/pdf", Data: []byte("resume")},
		{Name: "budget.xlsx", ContentType: "application/vnd.ms-excel", Data: []byte("budget")},
	}
	if err := u.UploadAll(context.Background(), "documents/alice", docs); err != nil {
		t.Fatalf("UploadAll() = %v", err)
	}

	for _, key := range []string{"documents/alice/resume.pdf", "documents/alice/budget.xlsx"} {
		if _, err := store.Get(context.Background(), "user-documents", key); err != nil {
			t.Errorf("document not uploaded at %s: %v", key, err)
		}
	}
}

func TestUploader_SingleFailureFailsTheBatch(t *testing.T) {
	store := &failingStore{ObjectStore: memory.NewObjectStore(), failKey: "documents/alice/budget.xlsx"}
	u := client.NewUploader(store, "user-documents", testLogger())

	docs := []client.Document{
		{Name: "resume.pdf", Data: []byte("resume")},
		{Name: "budget.xlsx", Data: []byte("budget")},
	}
	if err := u.UploadAll(context.Background(), "documents/alice", docs); err == nil {
		t.Fatal("UploadAll() succeeded despite a failed upload")
	}
}
