// internal/pipeline/orchestrator.go
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"form-orchestrator/internal/domain"
	"form-orchestrator/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Orchestrator drives an execution through the fixed stage sequence. The stage
// chain is strictly sequential: each stage's correctness depends on durable
// artifacts produced by the previous one (a completed index is required before
// form completion can query it), so there is no fan-out and no reordering.
//
// The stage list is an explicit ordered slice consumed by a single executor
// loop; the state machine lives entirely here. Stage failures are terminal for
// the execution and are never retried.
type Orchestrator struct {
	store  domain.ExecutionStore
	stages []domain.Stage
	logger *slog.Logger
	tracer trace.Tracer
}

// NewOrchestrator creates an orchestrator over the given ordered stage sequence.
func NewOrchestrator(store domain.ExecutionStore, stages []domain.Stage, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:  store,
		stages: stages,
		logger: logger.With("component", "orchestrator"),
		tracer: otel.Tracer("form-orchestrator-pipeline"),
	}
}

// Run executes the stage chain for the execution with the given ID, persisting
// every state transition through the execution store. It blocks until the
// execution reaches a terminal state.
func (o *Orchestrator) Run(ctx context.Context, executionID string) {
	ctx, span := o.tracer.Start(ctx, "pipeline.Run",
		trace.WithAttributes(attribute.String("execution.id", executionID)))
	defer span.End()

	logger := o.logger.With("execution_id", executionID)

	exec, err := o.store.Get(ctx, executionID)
	if err != nil {
		logger.Error("failed to load execution", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load execution")
		return
	}
	if exec.Status != domain.ExecutionStatusPending {
		// Duplicate trigger; the first run owns the execution.
		logger.Warn("execution not pending, skipping run", "status", exec.Status)
		return
	}

	exec, err = o.transition(ctx, executionID, func(e *domain.Execution) error {
		e.Status = domain.ExecutionStatusRunning
		e.CurrentStageIndex = 0
		return nil
	})
	if err != nil {
		logger.Error("failed to mark execution running", "error", err)
		span.RecordError(err)
		return
	}
	metrics.ExecutionsInFlight.Inc()
	defer metrics.ExecutionsInFlight.Dec()

	payload, err := json.Marshal(exec.Input)
	if err != nil {
		o.fail(ctx, executionID, logger, &domain.FailureCause{Message: "failed to encode submission payload: " + err.Error()})
		return
	}

	for i, stage := range o.stages {
		output, stageErr := o.runStage(ctx, stage, payload, logger)
		if stageErr != nil {
			// Fail fast: remaining stages never run and the index stays
			// at the failing stage.
			o.fail(ctx, executionID, logger, &domain.FailureCause{Stage: stage.Name(), Message: stageErr.Error()})
			span.SetStatus(codes.Error, "stage failed")
			return
		}

		payload = output
		if _, err := o.transition(ctx, executionID, func(e *domain.Execution) error {
			e.CurrentStageIndex = i + 1
			return nil
		}); err != nil {
			logger.Error("failed to record stage progress", "stage", stage.Name(), "error", err)
			span.RecordError(err)
			return
		}
	}

	if _, err := o.transition(ctx, executionID, func(e *domain.Execution) error {
		e.Status = domain.ExecutionStatusSucceeded
		e.Output = payload
		return nil
	}); err != nil {
		logger.Error("failed to mark execution succeeded", "error", err)
		span.RecordError(err)
		return
	}
	metrics.ExecutionsTotal.WithLabelValues(string(domain.ExecutionStatusSucceeded)).Inc()
	logger.Info("execution succeeded", "stages", len(o.stages))
}

// runStage invokes a single stage with its own span and metrics.
func (o *Orchestrator) runStage(ctx context.Context, stage domain.Stage, input json.RawMessage, logger *slog.Logger) (json.RawMessage, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.RunStage",
		trace.WithAttributes(attribute.String("stage.name", stage.Name())))
	defer span.End()

	logger.Info("running stage", "stage", stage.Name())
	start := time.Now()

	output, err := stage.Run(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stage execution failed")
		metrics.StageExecutionsTotal.WithLabelValues(stage.Name(), "failed").Inc()
		logger.Error("stage failed", "stage", stage.Name(), "error", err, "duration", time.Since(start))
		return nil, err
	}

	metrics.StageExecutionsTotal.WithLabelValues(stage.Name(), "success").Inc()
	logger.Info("stage completed", "stage", stage.Name(), "duration", time.Since(start))
	return output, nil
}

// fail records a terminal FAILED state with the given cause.
func (o *Orchestrator) fail(ctx context.Context, executionID string, logger *slog.Logger, cause *domain.FailureCause) {
	if _, err := o.transition(ctx, executionID, func(e *domain.Execution) error {
		e.Status = domain.ExecutionStatusFailed
		e.FailureCause = cause
		return nil
	}); err != nil {
		logger.Error("failed to record execution failure", "cause", cause.String(), "error", err)
		return
	}
	metrics.ExecutionsTotal.WithLabelValues(string(domain.ExecutionStatusFailed)).Inc()
	logger.Error("execution failed", "cause", cause.String())
}

// transition applies a state mutation and refreshes the update timestamp.
func (o *Orchestrator) transition(ctx context.Context, executionID string, mutate func(*domain.Execution) error) (*domain.Execution, error) {
	return o.store.Update(ctx, executionID, func(e *domain.Execution) error {
		if err := mutate(e); err != nil {
			return err
		}
		e.UpdatedAt = time.Now()
		return nil
	})
}
