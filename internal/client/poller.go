// internal/client/poller.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"form-orchestrator/internal/domain"
)

// Default polling parameters: a status query every two seconds for up to five
// minutes.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxWait      = 5 * time.Minute
)

// ErrWaitTimeout is returned when the poller's wait budget is exhausted while
// the execution is still non-terminal. This is a client-side abandonment: the
// execution may still be progressing on the server.
var ErrWaitTimeout = errors.New("timed out waiting for execution to complete")

// ExecutionError reports an execution that ended in a non-success terminal
// state.
type ExecutionError struct {
	Status domain.ExecutionStatus
	Cause  string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution %s: %s", e.Status, e.Cause)
}

// StatusUpdate is one observation of the execution's progress. The poller
// emits these as an explicit value stream for a UI layer to subscribe to.
type StatusUpdate struct {
	Status     domain.ExecutionStatus
	StageIndex int
	Elapsed    time.Duration
}

// SubmissionParams is the submission the poller sends to the gateway.
type SubmissionParams struct {
	Username        string `json:"username"`
	ApplicationForm string `json:"applicationForm"`
	DocumentCount   int    `json:"documentCount"`
	StoragePrefix   string `json:"s3Path"`
	Year            int    `json:"year,omitempty"`
	NumResults      int    `json:"numResults,omitempty"`
}

// statusResponse mirrors the status endpoint's body.
type statusResponse struct {
	Status     domain.ExecutionStatus `json:"status"`
	StageIndex int                    `json:"stageIndex"`
	Output     json.RawMessage        `json:"output,omitempty"`
	Cause      string                 `json:"cause,omitempty"`
}

// Poller submits a job to the gateway and polls the status endpoint on a fixed
// interval until the execution reaches a terminal state or the wait budget is
// exhausted.
type Poller struct {
	GatewayURL   string
	StatusURL    string
	PollInterval time.Duration
	MaxWait      time.Duration

	// OnProgress, when set, receives a StatusUpdate for every non-terminal
	// observation.
	OnProgress func(StatusUpdate)

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewPoller creates a poller with the default interval and wait budget.
func NewPoller(gatewayURL, statusURL string, logger *slog.Logger) *Poller {
	return &Poller{
		GatewayURL:   gatewayURL,
		StatusURL:    statusURL,
		PollInterval: DefaultPollInterval,
		MaxWait:      DefaultMaxWait,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		Logger:       logger.With("component", "poller"),
	}
}

// Run submits the job and waits for its outcome. It returns the execution's
// output on success, an *ExecutionError for a non-success terminal state, and
// ErrWaitTimeout if the budget runs out first. A gateway validation failure is
// surfaced immediately; no polling occurs.
func (p *Poller) Run(ctx context.Context, params SubmissionParams) (json.RawMessage, error) {
	executionID, err := p.Submit(ctx, params)
	if err != nil {
		return nil, err
	}
	p.Logger.Info("execution started", "execution_id", executionID)
	return p.Wait(ctx, executionID)
}

// Submit posts the submission to the gateway and returns the execution
// identifier.
func (p *Poller) Submit(ctx context.Context, params SubmissionParams) (string, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submission request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("submission rejected with %s: %s", resp.Status, bytes.TrimSpace(respBody))
	}

	var result struct {
		ExecutionArn string `json:"executionArn"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode submission response: %w", err)
	}
	if result.ExecutionArn == "" {
		return "", fmt.Errorf("gateway returned no execution identifier")
	}
	return result.ExecutionArn, nil
}

// Wait polls the status endpoint until the execution is terminal or the wait
// budget is exhausted. The sleep between polls is cooperative and honors ctx.
func (p *Poller) Wait(ctx context.Context, executionID string) (json.RawMessage, error) {
	start := time.Now()
	for {
		status, err := p.queryStatus(ctx, executionID)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case domain.ExecutionStatusSucceeded:
			return status.Output, nil
		case domain.ExecutionStatusFailed, domain.ExecutionStatusTimedOut, domain.ExecutionStatusAborted:
			return nil, &ExecutionError{Status: status.Status, Cause: status.Cause}
		}

		if p.OnProgress != nil {
			p.OnProgress(StatusUpdate{
				Status:     status.Status,
				StageIndex: status.StageIndex,
				Elapsed:    time.Since(start),
			})
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.PollInterval):
		}
		if time.Since(start) > p.MaxWait {
			return nil, ErrWaitTimeout
		}
	}
}

func (p *Poller) queryStatus(ctx context.Context, executionID string) (*statusResponse, error) {
	endpoint := fmt.Sprintf("%s?executionArn=%s", p.StatusURL, url.QueryEscape(executionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrExecutionNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status check failed: %s", resp.Status)
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &status, nil
}
