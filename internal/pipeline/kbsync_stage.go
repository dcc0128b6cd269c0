// internal/pipeline/kbsync_stage.go
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StageNameKnowledgeBaseSync is the wire name of the knowledge-base sync stage.
const StageNameKnowledgeBaseSync = "KnowledgeBaseSync"

// Ingestion job states reported by the knowledge base.
const (
	IngestionStatusComplete = "COMPLETE"
	IngestionStatusFailed   = "FAILED"
	IngestionStatusStopped  = "STOPPED"
)

// IngestionClient starts and observes knowledge-base ingestion jobs. The
// knowledge base itself is an external collaborator, opaque to the pipeline.
type IngestionClient interface {
	StartIngestionJob(ctx context.Context, knowledgeBaseID, dataSourceID string) (jobID string, err error)
	GetIngestionJob(ctx context.Context, knowledgeBaseID, dataSourceID, jobID string) (status string, err error)
}

// KnowledgeBaseSyncStage triggers an ingestion job over the freshly written
// documents and metadata, then waits for it to finish. Form completion must
// not run before the index is complete.
type KnowledgeBaseSyncStage struct {
	client          IngestionClient
	knowledgeBaseID string
	dataSourceID    string
	pollInterval    time.Duration
	logger          *slog.Logger
	tracer          trace.Tracer
}

func NewKnowledgeBaseSyncStage(client IngestionClient, knowledgeBaseID, dataSourceID string, pollInterval time.Duration, logger *slog.Logger) *KnowledgeBaseSyncStage {
	return &KnowledgeBaseSyncStage{
		client:          client,
		knowledgeBaseID: knowledgeBaseID,
		dataSourceID:    dataSourceID,
		pollInterval:    pollInterval,
		logger:          logger.With("component", "kb-sync-stage"),
		tracer:          otel.Tracer("form-orchestrator-pipeline"),
	}
}

func (s *KnowledgeBaseSyncStage) Name() string { return StageNameKnowledgeBaseSync }

func (s *KnowledgeBaseSyncStage) Run(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	ctx, span := s.tracer.Start(ctx, "stage.KnowledgeBaseSync",
		trace.WithAttributes(attribute.String("kb.id", s.knowledgeBaseID)))
	defer span.End()

	var req MetadataOutput
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, fmt.Errorf("failed to decode sync stage input: %w", err)
	}

	jobID, err := s.client.StartIngestionJob(ctx, s.knowledgeBaseID, s.dataSourceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start ingestion job")
		return nil, fmt.Errorf("failed to start ingestion job: %w", err)
	}
	span.SetAttributes(attribute.String("kb.ingestion_job_id", jobID))
	s.logger.Info("ingestion job started", "job_id", jobID, "username", req.Username)

	status, err := s.waitForIngestion(ctx, jobID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingestion job did not complete")
		return nil, err
	}

	s.logger.Info("ingestion job finished", "job_id", jobID, "status", status)
	return json.Marshal(SyncOutput{
		BasePayload:     req.BasePayload,
		Indexed:         true,
		IngestionJobID:  jobID,
		IngestionStatus: status,
	})
}

// waitForIngestion polls the ingestion job until it reaches a terminal state.
func (s *KnowledgeBaseSyncStage) waitForIngestion(ctx context.Context, jobID string) (string, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		status, err := s.client.GetIngestionJob(ctx, s.knowledgeBaseID, s.dataSourceID, jobID)
		if err != nil {
			return "", fmt.Errorf("failed to check ingestion job %s: %w", jobID, err)
		}

		switch status {
		case IngestionStatusComplete:
			return status, nil
		case IngestionStatusFailed, IngestionStatusStopped:
			return "", fmt.Errorf("ingestion job %s ended with status %s", jobID, status)
		}

		s.logger.Debug("ingestion job in progress", "job_id", jobID, "status", status)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("ingestion wait interrupted: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
