package coordinator

import "fmt"

// BuildError is fatal for the current experiment: the build is not retried
// and no completion marker is written. It indicates environmental flakiness
// rather than a sweep-definition defect, so the sweep continues.
type BuildError struct {
	Err error
}

func (e *BuildError) Error() string { return fmt.Sprintf("build failed: %v", e.Err) }
func (e *BuildError) Unwrap() error { return e.Err }

// RunError is fatal for the current experiment's run phase. No partial marker
// is written, so a subsequent invocation retries the whole experiment.
type RunError struct {
	Err error
}

func (e *RunError) Error() string { return fmt.Sprintf("run failed: %v", e.Err) }
func (e *RunError) Unwrap() error { return e.Err }
