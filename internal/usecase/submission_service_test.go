package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"form-orchestrator/internal/domain"
	"form-orchestrator/internal/infra/memory"
	"form-orchestrator/internal/usecase"
)

var recognizedForms = []string{"canexport_application_fomr"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner records the execution it was asked to run.
type fakeRunner struct {
	ran chan string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{ran: make(chan string, 1)}
}

func (r *fakeRunner) Run(_ context.Context, executionID string) {
	r.ran <- executionID
}

func validRequest() *domain.SubmissionRequest {
	return &domain.SubmissionRequest{
		Username:        "alice",
		ApplicationForm: "canexport_application_fomr",
		DocumentCount:   3,
		StoragePrefix:   "documents/alice",
	}
}

func TestSubmissionService_SubmitStartsExecution(t *testing.T) {
	store := memory.NewExecutionStore()
	runner := newFakeRunner()
	svc := usecase.NewSubmissionService(store, runner, recognizedForms, testLogger())

	id, err := svc.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit() = %v", err)
	}
	if id == "" {
		t.Fatal("Submit() returned an empty execution id")
	}

	exec, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("execution not persisted: %v", err)
	}
	if exec.Status != domain.ExecutionStatusPending {
		t.Errorf("Status = %s, want PENDING", exec.Status)
	}
	if exec.Input.Username != "alice" {
		t.Errorf("Input.Username = %q", exec.Input.Username)
	}

	select {
	case ranID := <-runner.ran:
		if ranID != id {
			t.Errorf("runner started %q, want %q", ranID, id)
		}
	case <-time.After(time.Second):
		t.Error("pipeline runner was never started")
	}
}

func TestSubmissionService_InvalidSubmissionCreatesNothing(t *testing.T) {
	store := memory.NewExecutionStore()
	runner := newFakeRunner()
	svc := usecase.NewSubmissionService(store, runner, recognizedForms, testLogger())

	req := validRequest()
	req.DocumentCount = 0

	_, err := svc.Submit(context.Background(), req)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Submit() = %v, want ValidationError", err)
	}

	if store.Count() != 0 {
		t.Errorf("store holds %d executions after a rejected submission, want 0", store.Count())
	}
	select {
	case <-runner.ran:
		t.Error("pipeline started for a rejected submission")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubmissionService_UnrecognizedForm(t *testing.T) {
	store := memory.NewExecutionStore()
	svc := usecase.NewSubmissionService(store, newFakeRunner(), recognizedForms, testLogger())

	req := validRequest()
	req.ApplicationForm = "unknown_form"

	_, err := svc.Submit(context.Background(), req)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Submit() = %v, want ValidationError", err)
	}
	if verr.Field != "applicationForm" {
		t.Errorf("Field = %q, want applicationForm", verr.Field)
	}
}
