// internal/pipeline/metadata_stage.go
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"form-orchestrator/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StageNameMetadata is the wire name of the metadata extraction stage.
const StageNameMetadata = "Metadata"

// documentExtensions lists the uploaded document types that get metadata sidecars.
var documentExtensions = []string{".pdf", ".docx", ".xlsx"}

// metadataAttributes is the sidecar content written next to each document.
// The knowledge base uses it to scope retrieval to one user and year.
type metadataAttributes struct {
	Username string `json:"username"`
	Year     int    `json:"year"`
}

type metadataSidecar struct {
	MetadataAttributes metadataAttributes `json:"metadataAttributes"`
}

// MetadataStage writes a <document>.metadata.json sidecar for every uploaded
// document under the submission's storage prefix.
type MetadataStage struct {
	store  domain.ObjectStore
	bucket string
	logger *slog.Logger
	tracer trace.Tracer
}

func NewMetadataStage(store domain.ObjectStore, bucket string, logger *slog.Logger) *MetadataStage {
	return &MetadataStage{
		store:  store,
		bucket: bucket,
		logger: logger.With("component", "metadata-stage"),
		tracer: otel.Tracer("form-orchestrator-pipeline"),
	}
}

func (s *MetadataStage) Name() string { return StageNameMetadata }

func (s *MetadataStage) Run(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	ctx, span := s.tracer.Start(ctx, "stage.Metadata")
	defer span.End()

	var req BasePayload
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, fmt.Errorf("failed to decode metadata stage input: %w", err)
	}
	span.SetAttributes(
		attribute.String("submission.username", req.Username),
		attribute.String("submission.prefix", req.StoragePrefix),
	)

	keys, err := s.store.List(ctx, s.bucket, req.StoragePrefix)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list uploaded documents")
		return nil, fmt.Errorf("failed to list documents under %s: %w", req.StoragePrefix, err)
	}

	sidecar, err := json.Marshal(metadataSidecar{
		MetadataAttributes: metadataAttributes{Username: req.Username, Year: req.Year},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata sidecar: %w", err)
	}

	created, failed := 0, 0
	for _, key := range keys {
		if !isDocumentKey(key) {
			continue
		}
		metadataKey := key + ".metadata.json"
		if err := s.store.Put(ctx, s.bucket, metadataKey, sidecar, "application/json"); err != nil {
			s.logger.Warn("failed to write metadata sidecar", "key", metadataKey, "error", err)
			failed++
			continue
		}
		created++
	}
	span.SetAttributes(attribute.Int("metadata.created", created), attribute.Int("metadata.failed", failed))

	if created == 0 {
		return nil, fmt.Errorf("no documents found under %s", req.StoragePrefix)
	}

	s.logger.Info("metadata sidecars written", "created", created, "failed", failed, "username", req.Username)
	return json.Marshal(MetadataOutput{
		BasePayload:     req,
		MetadataCreated: created,
		MetadataFailed:  failed,
		NextStep:        "knowledge base sync",
	})
}

func isDocumentKey(key string) bool {
	for _, ext := range documentExtensions {
		if strings.HasSuffix(key, ext) {
			return true
		}
	}
	return false
}
