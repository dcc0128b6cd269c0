package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"form-orchestrator/internal/domain"
	"form-orchestrator/internal/infra/memory"
)

func newExecution(id string) *domain.Execution {
	return domain.NewExecution(id, domain.SubmissionInput{
		Username:        "alice",
		ApplicationForm: "canexport_application_fomr",
		DocumentCount:   1,
	})
}

func TestExecutionStore_CreateAndGet(t *testing.T) {
	store := memory.NewExecutionStore()
	ctx := context.Background()

	exec := newExecution("exec-1")
	if err := store.Create(ctx, exec); err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if err := store.Create(ctx, exec); err == nil {
		t.Error("duplicate Create() succeeded, want error")
	}

	got, err := store.Get(ctx, "exec-1")
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if got.Status != domain.ExecutionStatusPending {
		t.Errorf("Status = %s, want PENDING", got.Status)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrExecutionNotFound) {
		t.Errorf("Get(missing) = %v, want ErrExecutionNotFound", err)
	}
}

func TestExecutionStore_GetReturnsCopy(t *testing.T) {
	store := memory.NewExecutionStore()
	ctx := context.Background()
	if err := store.Create(ctx, newExecution("exec-1")); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Get(ctx, "exec-1")
	got.Status = domain.ExecutionStatusAborted

	again, _ := store.Get(ctx, "exec-1")
	if again.Status != domain.ExecutionStatusPending {
		t.Error("mutating a returned execution leaked into the store")
	}
}

func TestExecutionStore_Update(t *testing.T) {
	store := memory.NewExecutionStore()
	ctx := context.Background()
	if err := store.Create(ctx, newExecution("exec-1")); err != nil {
		t.Fatal(err)
	}

	updated, err := store.Update(ctx, "exec-1", func(e *domain.Execution) error {
		e.Status = domain.ExecutionStatusRunning
		return nil
	})
	if err != nil {
		t.Fatalf("Update() = %v", err)
	}
	if updated.Status != domain.ExecutionStatusRunning {
		t.Errorf("Status = %s, want RUNNING", updated.Status)
	}
	if updated.Version != 1 {
		t.Errorf("Version = %d, want 1", updated.Version)
	}

	if _, err := store.Update(ctx, "missing", func(e *domain.Execution) error { return nil }); !errors.Is(err, domain.ErrExecutionNotFound) {
		t.Errorf("Update(missing) = %v, want ErrExecutionNotFound", err)
	}
}

func TestExecutionStore_FailedMutatorLeavesRecordUntouched(t *testing.T) {
	store := memory.NewExecutionStore()
	ctx := context.Background()
	if err := store.Create(ctx, newExecution("exec-1")); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	_, err := store.Update(ctx, "exec-1", func(e *domain.Execution) error {
		e.Status = domain.ExecutionStatusAborted
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() = %v, want mutator error", err)
	}

	got, _ := store.Get(ctx, "exec-1")
	if got.Status != domain.ExecutionStatusPending {
		t.Errorf("Status = %s after failed mutator, want PENDING", got.Status)
	}
}

func TestExecutionStore_TerminalExecutionsAreImmutable(t *testing.T) {
	store := memory.NewExecutionStore()
	ctx := context.Background()
	if err := store.Create(ctx, newExecution("exec-1")); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Update(ctx, "exec-1", func(e *domain.Execution) error {
		e.Status = domain.ExecutionStatusFailed
		e.FailureCause = &domain.FailureCause{Stage: "Metadata", Message: "boom"}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	_, err := store.Update(ctx, "exec-1", func(e *domain.Execution) error {
		e.Status = domain.ExecutionStatusSucceeded
		return nil
	})
	if !errors.Is(err, domain.ErrExecutionFinished) {
		t.Errorf("Update() on terminal execution = %v, want ErrExecutionFinished", err)
	}

	got, _ := store.Get(ctx, "exec-1")
	if got.Status != domain.ExecutionStatusFailed {
		t.Errorf("terminal status mutated to %s", got.Status)
	}
}

func TestExecutionStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	store := memory.NewExecutionStore()
	ctx := context.Background()
	if err := store.Create(ctx, newExecution("exec-1")); err != nil {
		t.Fatal(err)
	}

	const updates = 50
	var wg sync.WaitGroup
	for i := 0; i < updates; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Update(ctx, "exec-1", func(e *domain.Execution) error {
				e.CurrentStageIndex++
				return nil
			})
		}()
	}
	wg.Wait()

	got, _ := store.Get(ctx, "exec-1")
	if got.CurrentStageIndex != updates {
		t.Errorf("CurrentStageIndex = %d after %d concurrent updates, want %d", got.CurrentStageIndex, updates, updates)
	}
	if got.Version != updates {
		t.Errorf("Version = %d, want %d", got.Version, updates)
	}
}

func TestExecutionStore_ListAndDelete(t *testing.T) {
	store := memory.NewExecutionStore()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := store.Create(ctx, newExecution(id)); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List() returned %d executions, want 3", len(all))
	}

	if err := store.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete() = %v", err)
	}
	if err := store.Delete(ctx, "b"); err != nil {
		t.Errorf("repeated Delete() = %v, want nil", err)
	}
	if store.Count() != 2 {
		t.Errorf("Count() = %d after delete, want 2", store.Count())
	}
}
