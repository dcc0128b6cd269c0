package usecase

import (
	"context"
	"log/slog"

	"form-orchestrator/internal/domain"
	"form-orchestrator/internal/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PipelineRunner drives one execution through the stage chain. Satisfied by
// pipeline.Orchestrator.
type PipelineRunner interface {
	Run(ctx context.Context, executionID string)
}

// SubmissionService is the job submission gateway: it validates a submission,
// creates the execution record and starts the pipeline asynchronously. The
// execution identifier is returned without waiting for any stage to run.
type SubmissionService struct {
	store           domain.ExecutionStore
	runner          PipelineRunner
	recognizedForms []string
	logger          *slog.Logger
	tracer          trace.Tracer
}

// NewSubmissionService creates a new SubmissionService instance.
func NewSubmissionService(store domain.ExecutionStore, runner PipelineRunner, recognizedForms []string, logger *slog.Logger) *SubmissionService {
	return &SubmissionService{
		store:           store,
		runner:          runner,
		recognizedForms: recognizedForms,
		logger:          logger.With("component", "submission-service"),
		tracer:          otel.Tracer("form-orchestrator-usecase"),
	}
}

// Submit validates the request and starts a new execution. A validation
// failure creates no execution.
func (s *SubmissionService) Submit(ctx context.Context, req *domain.SubmissionRequest) (string, error) {
	ctx, span := s.tracer.Start(ctx, "service.Submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("submission.username", req.Username),
		attribute.String("submission.form", req.ApplicationForm),
		attribute.Int("submission.document_count", req.DocumentCount),
	)

	if err := req.Validate(s.recognizedForms); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission validation failed")
		return "", err
	}

	exec := domain.NewExecution(uuid.New().String(), req.Input())
	span.SetAttributes(attribute.String("execution.id", exec.ID))

	if err := s.store.Create(ctx, exec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist execution")
		return "", err
	}
	metrics.SubmissionsTotal.WithLabelValues(exec.Input.ApplicationForm).Inc()
	s.logger.Info("execution created", "execution_id", exec.ID, "username", exec.Input.Username)

	// The pipeline run outlives the submission request.
	go s.runner.Run(context.WithoutCancel(ctx), exec.ID)

	return exec.ID, nil
}
