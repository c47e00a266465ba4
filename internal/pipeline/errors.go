package pipeline

import "fmt"

// StageError reports an external job failure in one stage of a template's
// lifecycle. It is fatal for the template and all transitive dependents.
type StageError struct {
	Template string
	Stage    Stage
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("template %q: %s stage failed: %v", e.Template, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// UpstreamError marks a template failed because a dependency failed;
// nothing was attempted for the template itself.
type UpstreamError struct {
	Template string
	Upstream string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("template %q: skipped, upstream template %q failed", e.Template, e.Upstream)
}
