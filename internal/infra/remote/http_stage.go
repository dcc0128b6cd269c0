package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"form-orchestrator/internal/domain"
)

// Stage invokes an external worker function over HTTP: the input payload is
// POSTed as JSON and the response body becomes the stage's output payload.
// Used for stages whose work runs outside this process, such as the
// markdown-to-docx format conversion.
type Stage struct {
	name   string
	url    string
	client *http.Client
}

var _ domain.Stage = (*Stage)(nil)

// NewStage creates an HTTP-backed stage with the given wire name and endpoint.
func NewStage(name, url string) *Stage {
	return &Stage{
		name: name,
		url:  url,
		client: &http.Client{
			Timeout: 15 * time.Minute, // Remote functions may run long conversions
		},
	}
}

func (s *Stage) Name() string { return s.name }

// Run performs a single invocation. 4xx and 5xx responses are stage failures;
// there is no retry at this layer.
func (s *Stage) Run(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for stage %s: %w", s.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stage %s request failed: %w", s.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read stage %s response: %w", s.name, err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("stage %s returned %s: %s", s.name, resp.Status, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
