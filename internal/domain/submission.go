package domain

import (
	"fmt"
	"strings"
	"time"
)

// Submission limits. A submission must reference at least one uploaded document
// and at most MaxDocuments.
const (
	MinDocuments = 1
	MaxDocuments = 10
)

// ValidationError describes a client-input constraint violation. No execution
// is created when one is returned.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SubmissionInput is the portion of a submission that is persisted on the
// execution and threaded through the stage pipeline as the first stage's input.
// The JSON field names are the wire names the stages expect.
type SubmissionInput struct {
	Username        string `json:"username"`
	ApplicationForm string `json:"applicationForm"`
	DocumentCount   int    `json:"documentCount"`
	StoragePrefix   string `json:"s3Path"` // Prefix in the document bucket holding the uploaded blobs
	Year            int    `json:"year"`
	NumResults      int    `json:"numResults"` // Knowledge-base results per retrieval query
}

// SubmissionRequest is what the gateway validates before creating an execution.
// It is ephemeral and never persisted beyond request handling.
type SubmissionRequest struct {
	Username        string
	ApplicationForm string
	DocumentCount   int
	StoragePrefix   string
	Year            int
	NumResults      int
}

// Validate checks the submission against the gateway's input constraints.
// recognizedForms is the configured set of accepted form-type selectors.
func (r *SubmissionRequest) Validate(recognizedForms []string) error {
	if strings.TrimSpace(r.Username) == "" {
		return &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if r.DocumentCount < MinDocuments || r.DocumentCount > MaxDocuments {
		return &ValidationError{
			Field:  "documentCount",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", MinDocuments, MaxDocuments, r.DocumentCount),
		}
	}
	form := strings.ToLower(strings.TrimSpace(r.ApplicationForm))
	recognized := false
	for _, f := range recognizedForms {
		if form == f {
			recognized = true
			break
		}
	}
	if !recognized {
		return &ValidationError{
			Field:  "applicationForm",
			Reason: fmt.Sprintf("unrecognized form type %q", r.ApplicationForm),
		}
	}
	return nil
}

// Input normalizes the request into the persisted submission payload.
// Username is trimmed and the form selector lowercased; the year defaults to
// the current one when unset, matching the upstream stage contracts.
func (r *SubmissionRequest) Input() SubmissionInput {
	year := r.Year
	if year == 0 {
		year = time.Now().Year()
	}
	numResults := r.NumResults
	if numResults == 0 {
		numResults = 5
	}
	return SubmissionInput{
		Username:        strings.TrimSpace(r.Username),
		ApplicationForm: strings.ToLower(strings.TrimSpace(r.ApplicationForm)),
		DocumentCount:   r.DocumentCount,
		StoragePrefix:   r.StoragePrefix,
		Year:            year,
		NumResults:      numResults,
	}
}
