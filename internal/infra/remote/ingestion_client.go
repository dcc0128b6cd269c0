package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"form-orchestrator/internal/pipeline"
)

// IngestionClient talks to the knowledge-base service's ingestion API over
// HTTP. The service exposes start and status endpoints keyed by knowledge-base
// and data-source identifiers.
type ingestionClient struct {
	baseURL string
	client  *http.Client
}

var _ pipeline.IngestionClient = (*ingestionClient)(nil)

// NewIngestionClient creates an HTTP-backed ingestion client rooted at baseURL.
func NewIngestionClient(baseURL string) pipeline.IngestionClient {
	return &ingestionClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *ingestionClient) StartIngestionJob(ctx context.Context, knowledgeBaseID, dataSourceID string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"knowledgeBaseId": knowledgeBaseID,
		"dataSourceId":    dataSourceID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode ingestion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ingestion-jobs", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create ingestion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		IngestionJobID string `json:"ingestionJobId"`
	}
	if err := c.do(req, &result); err != nil {
		return "", fmt.Errorf("failed to start ingestion job: %w", err)
	}
	if result.IngestionJobID == "" {
		return "", fmt.Errorf("ingestion service returned no job id")
	}
	return result.IngestionJobID, nil
}

func (c *ingestionClient) GetIngestionJob(ctx context.Context, knowledgeBaseID, dataSourceID, jobID string) (string, error) {
	endpoint := fmt.Sprintf("%s/ingestion-jobs/%s?knowledgeBaseId=%s&dataSourceId=%s",
		c.baseURL, url.PathEscape(jobID), url.QueryEscape(knowledgeBaseID), url.QueryEscape(dataSourceID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create ingestion status request: %w", err)
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := c.do(req, &result); err != nil {
		return "", fmt.Errorf("failed to get ingestion job %s: %w", jobID, err)
	}
	return result.Status, nil
}

func (c *ingestionClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("ingestion service returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
