package remote

import (
	"context"

	"github.com/vk/sweepbench/internal/ctxlog"
)

// DryRun is an Executor that only logs the commands it would have run. It is
// installed when the operator passes --dryrun, short-circuiting every remote
// side effect.
type DryRun struct{}

// Run logs the command and succeeds without executing anything.
func (DryRun) Run(ctx context.Context, machineID int, command string) error {
	ctxlog.FromContext(ctx).Info("dry-run: would run remote command",
		"machine", machineID, "command", command)
	return nil
}

// Start logs the command and returns a handle that completes immediately.
func (DryRun) Start(ctx context.Context, machineID int, command string, sinks Sinks) (Handle, error) {
	ctxlog.FromContext(ctx).Info("dry-run: would start remote command",
		"machine", machineID, "command", command, "stdout", sinks.Stdout, "stderr", sinks.Stderr)
	return noopHandle{}, nil
}

type noopHandle struct{}

func (noopHandle) Wait() error { return nil }
