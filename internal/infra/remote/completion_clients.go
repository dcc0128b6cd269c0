package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"form-orchestrator/internal/pipeline"
)

// retriever queries the knowledge-base retrieval endpoint. Retrieval is scoped
// to one user's documents via metadata filters written by the metadata stage.
type retriever struct {
	url    string
	client *http.Client
}

var _ pipeline.Retriever = (*retriever)(nil)

// NewRetriever creates an HTTP-backed knowledge-base retriever.
func NewRetriever(url string) pipeline.Retriever {
	return &retriever{
		url: url,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (r *retriever) Retrieve(ctx context.Context, query, username string, year, numResults int) ([]string, error) {
	payload, err := json.Marshal(map[string]any{
		"query":      query,
		"username":   username,
		"year":       year,
		"numResults": numResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode retrieval request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieval request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("retrieval service returned %s", resp.Status)
	}

	var result struct {
		Contexts []string `json:"contexts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode retrieval response: %w", err)
	}
	return result.Contexts, nil
}

// modelInvoker calls the form-drafting model endpoint.
type modelInvoker struct {
	url    string
	client *http.Client
}

var _ pipeline.ModelInvoker = (*modelInvoker)(nil)

// NewModelInvoker creates an HTTP-backed model client. Drafting a full form is
// slow, so the timeout is generous.
func NewModelInvoker(url string) pipeline.ModelInvoker {
	return &modelInvoker{
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

func (m *modelInvoker) GenerateForm(ctx context.Context, genReq pipeline.GenerationRequest) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"template":  genReq.Template, // base64 on the wire
		"prompt":    genReq.Prompt,
		"questions": genReq.Questions,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("generation service returned %s", resp.Status)
	}

	var result struct {
		FormText string `json:"formText"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}
	if result.FormText == "" {
		return "", fmt.Errorf("generation service returned an empty form")
	}
	return result.FormText, nil
}
