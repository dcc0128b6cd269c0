package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"form-orchestrator/internal/domain"
)

func TestExecutionStatus_Terminal(t *testing.T) {
	tests := []struct {
		status   domain.ExecutionStatus
		terminal bool
	}{
		{domain.ExecutionStatusPending, false},
		{domain.ExecutionStatusRunning, false},
		{domain.ExecutionStatusSucceeded, true},
		{domain.ExecutionStatusFailed, true},
		{domain.ExecutionStatusTimedOut, true},
		{domain.ExecutionStatusAborted, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("Terminal(%s) = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestNewExecution(t *testing.T) {
	input := domain.SubmissionInput{Username: "alice", ApplicationForm: "canexport_application_fomr", DocumentCount: 3}
	exec := domain.NewExecution("exec-1", input)

	if exec.Status != domain.ExecutionStatusPending {
		t.Errorf("new execution status = %s, want PENDING", exec.Status)
	}
	if exec.CurrentStageIndex != 0 {
		t.Errorf("new execution stage index = %d, want 0", exec.CurrentStageIndex)
	}
	if exec.CreatedAt.IsZero() || exec.UpdatedAt.IsZero() {
		t.Error("timestamps not set on new execution")
	}
	if err := exec.Validate(); err != nil {
		t.Errorf("new execution failed validation: %v", err)
	}
}

func TestExecution_Validate(t *testing.T) {
	valid := func() *domain.Execution {
		return &domain.Execution{
			ID:        "exec-1",
			Status:    domain.ExecutionStatusPending,
			CreatedAt: time.Now(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*domain.Execution)
		wantErr bool
	}{
		{"valid", func(e *domain.Execution) {}, false},
		{"empty id", func(e *domain.Execution) { e.ID = "" }, true},
		{"empty status", func(e *domain.Execution) { e.Status = "" }, true},
		{"zero creation time", func(e *domain.Execution) { e.CreatedAt = time.Time{} }, true},
		{"output and cause both set", func(e *domain.Execution) {
			e.Output = json.RawMessage(`{}`)
			e.FailureCause = &domain.FailureCause{Message: "boom"}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := valid()
			tt.mutate(exec)
			if err := exec.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFailureCause_String(t *testing.T) {
	var nilCause *domain.FailureCause
	if got := nilCause.String(); got != "" {
		t.Errorf("nil cause String() = %q, want empty", got)
	}

	cause := &domain.FailureCause{Stage: "KnowledgeBaseSync", Message: "sync job failed"}
	if got := cause.String(); got != "KnowledgeBaseSync: sync job failed" {
		t.Errorf("String() = %q", got)
	}

	infra := &domain.FailureCause{Message: "state lost"}
	if got := infra.String(); got != "state lost" {
		t.Errorf("String() without stage = %q", got)
	}
}
