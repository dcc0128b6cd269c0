// internal/infra/memory/execution_store.go
package memory

import (
	"context"
	"fmt"
	"sync"

	"form-orchestrator/internal/domain"
)

// ExecutionStore is an in-memory domain.ExecutionStore for tests and
// single-node local runs. All operations are serialized under one mutex, which
// gives the same atomic read-modify-write guarantee the etcd store provides
// via compare-and-set.
type ExecutionStore struct {
	mu         sync.Mutex
	executions map[string]*domain.Execution
}

var _ domain.ExecutionStore = (*ExecutionStore)(nil)

func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{
		executions: make(map[string]*domain.Execution),
	}
}

func (s *ExecutionStore) Create(_ context.Context, exec *domain.Execution) error {
	if err := exec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.executions[exec.ID]; ok {
		return fmt.Errorf("execution %s already exists", exec.ID)
	}
	s.executions[exec.ID] = clone(exec)
	return nil
}

func (s *ExecutionStore) Get(_ context.Context, id string) (*domain.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, ok := s.executions[id]
	if !ok {
		return nil, domain.ErrExecutionNotFound
	}
	return clone(exec), nil
}

func (s *ExecutionStore) Update(_ context.Context, id string, mutate func(*domain.Execution) error) (*domain.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.executions[id]
	if !ok {
		return nil, domain.ErrExecutionNotFound
	}
	if stored.Status.Terminal() {
		return nil, domain.ErrExecutionFinished
	}

	// Mutate a copy so a failing mutator leaves the stored record untouched.
	next := clone(stored)
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.Version++
	s.executions[id] = next
	return clone(next), nil
}

func (s *ExecutionStore) List(_ context.Context) ([]*domain.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	executions := make([]*domain.Execution, 0, len(s.executions))
	for _, exec := range s.executions {
		executions = append(executions, clone(exec))
	}
	return executions, nil
}

func (s *ExecutionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.executions, id)
	return nil
}

// Count returns the number of stored executions. Test helper.
func (s *ExecutionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.executions)
}

func clone(exec *domain.Execution) *domain.Execution {
	c := *exec
	if exec.Output != nil {
		c.Output = append([]byte(nil), exec.Output...)
	}
	if exec.FailureCause != nil {
		cause := *exec.FailureCause
		c.FailureCause = &cause
	}
	return &c
}
