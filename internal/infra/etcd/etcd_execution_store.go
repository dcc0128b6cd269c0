// internal/infra/etcd/etcd_execution_store.go
package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"form-orchestrator/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ExecutionDir is the key prefix for execution records.
	ExecutionDir = "/formflow/executions/"

	// maxUpdateAttempts bounds the compare-and-set retry loop.
	maxUpdateAttempts = 8
)

type etcdExecutionStore struct {
	client *clientv3.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEtcdExecutionStore creates an execution store backed by etcd. Records are
// stored as JSON under /formflow/executions/{id}; updates are applied via a
// transaction comparing the record's mod revision, so concurrent writers to
// the same execution cannot lose updates.
func NewEtcdExecutionStore(client *clientv3.Client, logger *slog.Logger) domain.ExecutionStore {
	return &etcdExecutionStore{
		client: client,
		logger: logger.With("component", "etcd-execution-store"),
		tracer: otel.Tracer("form-orchestrator-etcd-execution-store"),
	}
}

func (s *etcdExecutionStore) Create(ctx context.Context, exec *domain.Execution) error {
	ctx, span := s.tracer.Start(ctx, "store.etcd.CreateExecution")
	defer span.End()
	span.SetAttributes(attribute.String("execution.id", exec.ID))

	if err := exec.Validate(); err != nil {
		return err
	}

	value, err := json.Marshal(exec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal execution")
		return fmt.Errorf("failed to marshal execution %s: %w", exec.ID, err)
	}

	key := path.Join(ExecutionDir, exec.ID)
	// Identifiers are never reused; refuse to overwrite an existing record.
	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(value))).
		Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put execution to etcd")
		return fmt.Errorf("failed to create execution %s in etcd: %w", exec.ID, err)
	}
	if !resp.Succeeded {
		return fmt.Errorf("execution %s already exists", exec.ID)
	}
	return nil
}

func (s *etcdExecutionStore) Get(ctx context.Context, id string) (*domain.Execution, error) {
	ctx, span := s.tracer.Start(ctx, "store.etcd.GetExecution")
	defer span.End()
	span.SetAttributes(attribute.String("execution.id", id))

	exec, _, err := s.getWithRevision(ctx, id)
	return exec, err
}

func (s *etcdExecutionStore) getWithRevision(ctx context.Context, id string) (*domain.Execution, int64, error) {
	key := path.Join(ExecutionDir, id)
	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get execution %s from etcd: %w", id, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, 0, domain.ErrExecutionNotFound
	}

	var exec domain.Execution
	if err := json.Unmarshal(resp.Kvs[0].Value, &exec); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal execution %s: %w", id, err)
	}
	return &exec, resp.Kvs[0].ModRevision, nil
}

// Update applies mutate under a mod-revision compare-and-set. If another
// writer races in between the read and the transaction, the read is repeated
// against the newer revision.
func (s *etcdExecutionStore) Update(ctx context.Context, id string, mutate func(*domain.Execution) error) (*domain.Execution, error) {
	ctx, span := s.tracer.Start(ctx, "store.etcd.UpdateExecution")
	defer span.End()
	span.SetAttributes(attribute.String("execution.id", id))

	key := path.Join(ExecutionDir, id)
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		exec, revision, err := s.getWithRevision(ctx, id)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if exec.Status.Terminal() {
			return nil, domain.ErrExecutionFinished
		}

		if err := mutate(exec); err != nil {
			return nil, err
		}
		exec.Version++

		value, err := json.Marshal(exec)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to marshal execution %s: %w", id, err)
		}

		resp, err := s.client.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", revision)).
			Then(clientv3.OpPut(key, string(value))).
			Commit()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to update execution in etcd")
			return nil, fmt.Errorf("failed to update execution %s in etcd: %w", id, err)
		}
		if resp.Succeeded {
			return exec, nil
		}
		s.logger.Debug("execution update raced, retrying", "execution_id", id, "attempt", attempt+1)
	}
	return nil, fmt.Errorf("failed to update execution %s after %d attempts", id, maxUpdateAttempts)
}

func (s *etcdExecutionStore) List(ctx context.Context) ([]*domain.Execution, error) {
	ctx, span := s.tracer.Start(ctx, "store.etcd.ListExecutions")
	defer span.End()

	resp, err := s.client.Get(ctx, ExecutionDir, clientv3.WithPrefix())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list executions from etcd")
		return nil, fmt.Errorf("failed to list executions from etcd: %w", err)
	}

	executions := make([]*domain.Execution, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var exec domain.Execution
		if err := json.Unmarshal(kv.Value, &exec); err != nil {
			s.logger.Warn("failed to unmarshal execution from etcd", "key", string(kv.Key), "error", err)
			continue
		}
		executions = append(executions, &exec)
	}
	span.SetAttributes(attribute.Int("executions_returned", len(executions)))
	return executions, nil
}

func (s *etcdExecutionStore) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "store.etcd.DeleteExecution")
	defer span.End()
	span.SetAttributes(attribute.String("execution.id", id))

	if _, err := s.client.Delete(ctx, path.Join(ExecutionDir, id)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete execution from etcd")
		return fmt.Errorf("failed to delete execution %s from etcd: %w", id, err)
	}
	return nil
}
