package http

import (
	"form-orchestrator/internal/domain"
)

// SubmitApplicationRequest is the Data Transfer Object for starting a form
// generation run. The wire names match the upstream gateway contract.
type SubmitApplicationRequest struct {
	Username        string `json:"username" validate:"required,notblank"`
	ApplicationForm string `json:"applicationForm" validate:"required"`
	DocumentCount   int    `json:"documentCount" validate:"gte=1,lte=10"`
	StoragePrefix   string `json:"s3Path" validate:"required"`
	Year            int    `json:"year" validate:"omitempty,gte=2000,lte=2100"`
	NumResults      int    `json:"numResults" validate:"omitempty,gte=1,lte=50"`
}

// ToDomainRequest converts the DTO to a domain.SubmissionRequest.
func (r *SubmitApplicationRequest) ToDomainRequest() *domain.SubmissionRequest {
	return &domain.SubmissionRequest{
		Username:        r.Username,
		ApplicationForm: r.ApplicationForm,
		DocumentCount:   r.DocumentCount,
		StoragePrefix:   r.StoragePrefix,
		Year:            r.Year,
		NumResults:      r.NumResults,
	}
}

// SubmitApplicationResponse carries the execution identifier back to the
// client, which polls the status endpoint with it.
type SubmitApplicationResponse struct {
	ExecutionArn string `json:"executionArn"`
}
