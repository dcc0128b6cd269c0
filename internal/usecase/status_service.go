package usecase

import (
	"context"
	"encoding/json"
	"log/slog"

	"form-orchestrator/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StatusView is the read-only projection of an execution's progress served to
// polling clients.
type StatusView struct {
	Status            domain.ExecutionStatus `json:"status"`
	CurrentStageIndex int                    `json:"stageIndex"`
	Output            json.RawMessage        `json:"output,omitempty"`
	Cause             string                 `json:"cause,omitempty"`
}

// StatusService is the read-only lookup of an execution's current status. It
// never mutates the store.
type StatusService struct {
	store  domain.ExecutionStore
	logger *slog.Logger
	tracer trace.Tracer
}

// NewStatusService creates a new StatusService instance.
func NewStatusService(store domain.ExecutionStore, logger *slog.Logger) *StatusService {
	return &StatusService{
		store:  store,
		logger: logger.With("component", "status-service"),
		tracer: otel.Tracer("form-orchestrator-usecase"),
	}
}

// Get returns the execution's status view, or domain.ErrExecutionNotFound for
// identifiers that were never created or have been purged by retention.
func (s *StatusService) Get(ctx context.Context, executionID string) (*StatusView, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetStatus")
	defer span.End()
	span.SetAttributes(attribute.String("execution.id", executionID))

	exec, err := s.store.Get(ctx, executionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get execution from store")
		return nil, err
	}

	return &StatusView{
		Status:            exec.Status,
		CurrentStageIndex: exec.CurrentStageIndex,
		Output:            exec.Output,
		Cause:             exec.FailureCause.String(),
	}, nil
}
