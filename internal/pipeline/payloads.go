package pipeline

// These structs define the JSON payloads threaded between stages. Every stage
// echoes the submission fields forward so that later stages can run from the
// previous stage's output alone.

// BasePayload carries the submission fields common to every stage payload.
type BasePayload struct {
	Username        string `json:"username"`
	ApplicationForm string `json:"applicationForm"`
	DocumentCount   int    `json:"documentCount,omitempty"`
	StoragePrefix   string `json:"s3Path,omitempty"`
	Year            int    `json:"year"`
	NumResults      int    `json:"numResults,omitempty"`
}

// MetadataOutput is the metadata stage's result.
type MetadataOutput struct {
	BasePayload
	MetadataCreated int    `json:"metadataCreated"`
	MetadataFailed  int    `json:"metadataFailed"`
	NextStep        string `json:"nextStep,omitempty"`
}

// SyncOutput is the knowledge-base sync stage's result.
type SyncOutput struct {
	BasePayload
	Indexed         bool   `json:"indexed"`
	IngestionJobID  string `json:"ingestionJobId,omitempty"`
	IngestionStatus string `json:"ingestionStatus,omitempty"`
}

// CompletionOutput is the form-completion stage's result.
type CompletionOutput struct {
	BasePayload
	FormText    string `json:"formText"`
	Filename    string `json:"filename"`
	OutputKey   string `json:"outputKey,omitempty"` // Key of the filled form in the filled bucket
	GeneratedAt string `json:"generatedAt,omitempty"`
}
