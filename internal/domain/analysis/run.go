package analysis

// RunRequest for Runner
type RunRequest struct {
	ID          SubmissionID
	SourcePath  string // staged source tree, mounted read-only into the engine
	ResultsPath string // writable directory the engine drops its output files into
}

// RunResult is the raw extraction produced by one engine invocation.
type RunResult struct {
	Functions []RawFunction
	Calls     []RawCall
	Meta      RunMeta
}
