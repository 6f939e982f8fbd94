// Package remote defines the remote command execution capability the
// coordinator consumes: run a command line on a numbered cluster machine,
// either synchronously or in the background with stdout/stderr redirected to
// local sink files.
package remote

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Sinks names the local files a background execution's output is captured in.
type Sinks struct {
	Stdout string
	Stderr string
}

// Handle tracks one background execution.
type Handle interface {
	// Wait blocks until the execution finishes and returns its error, if
	// any. Wait must be called exactly once.
	Wait() error
}

// Executor runs command lines on cluster machines. The command string is
// handed to the remote shell verbatim; quoting is the caller's concern.
type Executor interface {
	// Run executes the command on the given machine and waits for it.
	Run(ctx context.Context, machineID int, command string) error

	// Start launches the command on the given machine in the background,
	// redirecting its output to the sinks.
	Start(ctx context.Context, machineID int, command string, sinks Sinks) (Handle, error)
}

// JoinAll waits for every handle at a single barrier. Failure of any one
// execution fails the join; there is no partial success. A hung execution
// hangs the join indefinitely.
func JoinAll(handles []Handle) error {
	var g errgroup.Group
	for _, h := range handles {
		g.Go(h.Wait)
	}
	return g.Wait()
}
