package analysis

import "context"

// Registry port (interface untuk persistence of submission state)
type Registry interface {
	Save(ctx context.Context, s *Submission) error
	Get(ctx context.Context, tenant string, id SubmissionID) (*Submission, error)
	UpdateStatus(ctx context.Context, tenant string, id SubmissionID, st Status, rec *ErrorRecord) error
	Latest(ctx context.Context, tenant string, limit int) ([]*Submission, error)
	// Summary counts submissions by status since N days: total, done, failed, running.
	Summary(ctx context.Context, tenant string, sinceDays int) (int, int, int, int, error)
}

// Runner port (interface untuk the external extraction engine)
type Runner interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
}

// ContentStore port: stages an uploaded archive and derives its content id.
type ContentStore interface {
	Stage(archive []byte) (Staged, error)
}

// Staged describes a staged source tree.
type Staged struct {
	ID          SubmissionID
	Path        string
	SourceFiles int
}

// ResultStore port: persists per-submission artifact bundles atomically.
type ResultStore interface {
	// NewStaging creates a fresh staging directory under the submission's
	// results root; the engine and cleaner write into it.
	NewStaging(id SubmissionID) (string, error)
	// WriteBundle materializes the normalized bundle files into staging.
	WriteBundle(stagingDir string, b *Bundle) error
	// Publish promotes a staging directory to a bundle directory; the bundle
	// becomes visible once a saved Submission names it.
	Publish(id SubmissionID, stagingDir string) (bundle string, err error)
	// Prune drops all staging/bundle directories except keep.
	Prune(id SubmissionID, keep string)
	Discard(stagingDir string)
	// Load reads a published bundle by name; NotReady when bundle is empty.
	Load(id SubmissionID, bundle string) (*Bundle, error)
	// TreePath locates the rendered tree artifact of a published bundle.
	TreePath(id SubmissionID, bundle string) string
}

// ArtifactStore port (interface untuk remote artifact upload)
type ArtifactStore interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}
