package pipeline_test

import (
	"context"
	"encoding/json"
	"testing"

	"form-orchestrator/internal/infra/memory"
	"form-orchestrator/internal/pipeline"
)

const documentBucket = "user-documents"

func metadataInput(t *testing.T) json.RawMessage {
	t.Helper()
	input, err := json.Marshal(pipeline.BasePayload{
		Username:      "alice",
		StoragePrefix: "documents/alice",
		Year:          2026,
	})
	if err != nil {
		t.Fatal(err)
	}
	return input
}

func TestMetadataStage_WritesSidecarsForDocuments(t *testing.T) {
	ctx := context.Background()
	store := memory.NewObjectStore()
	for _, key := range []string{
		"documents/alice/resume.pdf",
		"documents/alice/budget.xlsx",
		"documents/alice/notes.txt", // not a recognized document type
	} {
		if err := store.Put(ctx, documentBucket, key, []byte("content"), "application/octet-stream"); err != nil {
			t.Fatal(err)
		}
	}

	stage := pipeline.NewMetadataStage(store, documentBucket, testLogger())
	output, err := stage.Run(ctx, metadataInput(t))
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}

	var result pipeline.MetadataOutput
	if err := json.Unmarshal(output, &result); err != nil {
		t.Fatal(err)
	}
	if result.MetadataCreated != 2 {
		t.Errorf("MetadataCreated = %d, want 2", result.MetadataCreated)
	}
	if result.Username != "alice" || result.Year != 2026 {
		t.Errorf("submission fields not echoed forward: %+v", result)
	}

	sidecar, err := store.Get(ctx, documentBucket, "documents/alice/resume.pdf.metadata.json")
	if err != nil {
		t.Fatalf("sidecar not written: %v", err)
	}
	var parsed struct {
		MetadataAttributes struct {
			Username string `json:"username"`
			Year     int    `json:"year"`
		} `json:"metadataAttributes"`
	}
	if err := json.Unmarshal(sidecar, &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed.MetadataAttributes.Username != "alice" || parsed.MetadataAttributes.Year != 2026 {
		t.Errorf("sidecar attributes = %+v", parsed.MetadataAttributes)
	}

	if _, err := store.Get(ctx, documentBucket, "documents/alice/notes.txt.metadata.json"); err == nil {
		t.Error("sidecar written for unrecognized document type")
	}
}

func TestMetadataStage_FailsWhenNoDocuments(t *testing.T) {
	stage := pipeline.NewMetadataStage(memory.NewObjectStore(), documentBucket, testLogger())
	if _, err := stage.Run(context.Background(), metadataInput(t)); err == nil {
		t.Error("Run() succeeded with an empty prefix, want error")
	}
}

func TestMetadataStage_RejectsMalformedInput(t *testing.T) {
	stage := pipeline.NewMetadataStage(memory.NewObjectStore(), documentBucket, testLogger())
	if _, err := stage.Run(context.Background(), json.RawMessage(`not json`)); err == nil {
		t.Error("Run() accepted malformed input")
	}
}
