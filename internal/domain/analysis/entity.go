package analysis

import (
	"time"
)

// SubmissionID is the content-addressed id of an uploaded source tree
// (hex SHA-512 over the normalized archive contents).
type SubmissionID string

// Status enum
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// ErrorRecord is the failure recorded on a Submission; it is returned
// verbatim on fetch and never retried automatically.
type ErrorRecord struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Aggregate Root: Submission
type Submission struct {
	ID          SubmissionID `json:"id"`
	TenantID    string       `json:"tenant_id"`
	SubmittedAt time.Time    `json:"submitted_at"`
	Status      Status       `json:"status"`
	SourcePath  string       `json:"source_path,omitempty"`
	SourceFiles int          `json:"source_files,omitempty"`
	Bundle      string       `json:"bundle,omitempty"`
	ArtifactURL string       `json:"artifact_url,omitempty"`
	DurationMS  int64        `json:"duration_ms"`
	Error       *ErrorRecord `json:"error,omitempty"`
}

// RunMeta carries per-run diagnostics of the engine invocation.
type RunMeta struct {
	ExitCode   int   `json:"exit_code"`
	DurationMS int64 `json:"duration_ms"`
}
