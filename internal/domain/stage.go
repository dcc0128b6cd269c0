package domain

import (
	"context"
	"encoding/json"
)

// Stage defines the interface for one unit of pipeline work. A stage is opaque
// to the orchestrator: it receives the previous stage's output payload and
// returns its own, or an error that ends the execution.
type Stage interface {
	Name() string
	Run(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}
