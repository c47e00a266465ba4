package pipeline

import (
	"context"
	"time"
)

// Status is a template's position in the execute/extract/download lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusExecuted   Status = "executed"
	StatusExtracted  Status = "extracted"
	StatusDownloaded Status = "downloaded"
	StatusFailed     Status = "failed"
)

// Stage is one idempotent unit of pipeline work per template.
type Stage string

const (
	StageExecute  Stage = "execute"
	StageExtract  Stage = "extract"
	StageDownload Stage = "download"
)

// Defaults matching the reference warehouse behavior.
const (
	// DefaultExpiration is the table TTL set after a successful execute,
	// so storage is self-cleaning.
	DefaultExpiration = 14 * 24 * time.Hour
	// DefaultObjectPrefix namespaces extract objects within the bucket.
	DefaultObjectPrefix = "_warepipe"
)

// QueryEngine is the warehouse job API the executor depends on. All
// "has this already run" state is inferred through TableExists; the
// pipeline keeps no journal of its own.
type QueryEngine interface {
	// TableExists reports whether table (fully qualified) already exists
	// as a completed output.
	TableExists(ctx context.Context, table string) (bool, error)
	// Execute submits sql targeting the destination table and blocks
	// until the job completes or fails.
	Execute(ctx context.Context, sql, table string) error
	// SetExpiration sets the table's expiration instant.
	SetExpiration(ctx context.Context, table string, expires time.Time) error
}

// ObjectStore is the extract bucket API the executor depends on.
type ObjectStore interface {
	// Extract materializes table as compressed files under prefix,
	// blocking until the job completes.
	Extract(ctx context.Context, table, prefix string) error
	// Exists reports whether any extract object exists under prefix.
	Exists(ctx context.Context, prefix string) (bool, error)
	// Parts lists the extract object names under prefix.
	Parts(ctx context.Context, prefix string) ([]string, error)
	// Download copies one remote object to a local path.
	Download(ctx context.Context, object, localPath string) error
}

// Options configures a single pipeline run.
type Options struct {
	// Params supplies values for free parameters. No defaulting.
	Params map[string]string
	// Extract materializes each output table to the bucket.
	Extract bool
	// Download copies extract parts to DownloadDir. Implies that extracts
	// exist or are produced in this run.
	Download bool
	// Force re-runs the execute stage even when the output table exists.
	// Extract and download stages are unaffected.
	Force bool
	// DownloadDir receives downloaded extract parts. Defaults to ".".
	DownloadDir string
	// ObjectPrefix namespaces extract objects. Defaults to DefaultObjectPrefix.
	ObjectPrefix string
	// Expiration is the output table TTL. Defaults to DefaultExpiration.
	Expiration time.Duration
	// Concurrency bounds how many independent templates run at once.
	// Defaults to 1, matching the reference behavior.
	Concurrency int
}

// Result is the per-template outcome of a run.
type Result struct {
	Name         string
	ArtifactName string
	FullName     string
	Status       Status
	// ExecuteSkipped and ExtractSkipped record skip decisions for
	// reporting; they are informational, not part of the contract.
	ExecuteSkipped bool
	ExtractSkipped bool
	Err            error
}

// Report is the outcome of one pipeline run, results in execution order.
type Report struct {
	RunID   string
	Results []*Result
	Elapsed time.Duration
}

// Failed reports whether any template ended in StatusFailed.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Result returns the result for a template name, or nil.
func (r *Report) Result(name string) *Result {
	for _, res := range r.Results {
		if res.Name == name {
			return res
		}
	}
	return nil
}
