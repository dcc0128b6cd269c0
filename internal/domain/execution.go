// internal/domain/execution.go
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ExecutionStatus defines the lifecycle state of a pipeline execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "PENDING"
	ExecutionStatusRunning   ExecutionStatus = "RUNNING"
	ExecutionStatusSucceeded ExecutionStatus = "SUCCEEDED"
	ExecutionStatusFailed    ExecutionStatus = "FAILED"
	ExecutionStatusTimedOut  ExecutionStatus = "TIMED_OUT"
	ExecutionStatusAborted   ExecutionStatus = "ABORTED"
)

// Terminal reports whether the status is final. A terminal execution is never
// mutated again.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusSucceeded, ExecutionStatusFailed, ExecutionStatusTimedOut, ExecutionStatusAborted:
		return true
	}
	return false
}

// FailureCause describes why an execution ended in a non-success terminal state.
type FailureCause struct {
	Stage   string `json:"stage,omitempty"` // Name of the stage that failed, empty for infra-level causes
	Message string `json:"message"`
}

func (c *FailureCause) String() string {
	if c == nil {
		return ""
	}
	if c.Stage == "" {
		return c.Message
	}
	return fmt.Sprintf("%s: %s", c.Stage, c.Message)
}

// Execution represents one end-to-end run of the stage pipeline for one submission.
type Execution struct {
	ID                string          `json:"id"`                  // Assigned at submission time, immutable, never reused
	Status            ExecutionStatus `json:"status"`              // State machine: PENDING -> RUNNING -> terminal
	CurrentStageIndex int             `json:"current_stage_index"` // 0-based, non-decreasing, never exceeds the stage count
	Input             SubmissionInput `json:"input"`               // Original submission payload
	Output            json.RawMessage `json:"output,omitempty"`    // Last stage's output, set only on SUCCEEDED
	FailureCause      *FailureCause   `json:"failure_cause,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int64           `json:"version"` // Store-managed revision for compare-and-set updates
}

// NewExecution creates a fresh execution in the PENDING state.
func NewExecution(id string, input SubmissionInput) *Execution {
	now := time.Now()
	return &Execution{
		ID:        id,
		Status:    ExecutionStatusPending,
		Input:     input,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks if the execution record is valid.
func (e *Execution) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("execution ID cannot be empty")
	}
	if e.Status == "" {
		return fmt.Errorf("execution status cannot be empty")
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("execution creation time cannot be zero")
	}
	if e.Output != nil && e.FailureCause != nil {
		return fmt.Errorf("execution output and failure cause are mutually exclusive")
	}
	return nil
}

// ErrExecutionNotFound is a sentinel error returned when an execution does not
// exist or has been purged by retention.
var ErrExecutionNotFound = errors.New("execution not found")

// ErrExecutionFinished is returned by stores when an update targets an
// execution that already reached a terminal state.
var ErrExecutionFinished = errors.New("execution already in a terminal state")

// ExecutionStore defines the interface for persisting and retrieving executions.
// The orchestrator is the only component that drives state transitions; the store
// is the single writer-of-record and must apply each update atomically so that a
// duplicate trigger racing with the orchestrator's own progress write cannot lose
// an update.
type ExecutionStore interface {
	// Create persists a new execution. The ID must not already exist.
	Create(ctx context.Context, exec *Execution) error
	// Get retrieves a single execution by ID, or ErrExecutionNotFound.
	Get(ctx context.Context, id string) (*Execution, error)
	// Update applies mutate to the stored execution under a per-execution
	// read-modify-write. It returns ErrExecutionFinished if the stored
	// execution is already terminal, and the updated execution otherwise.
	Update(ctx context.Context, id string, mutate func(*Execution) error) (*Execution, error)
	// List returns all stored executions, in no particular order.
	List(ctx context.Context) ([]*Execution, error)
	// Delete removes an execution. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error
}
