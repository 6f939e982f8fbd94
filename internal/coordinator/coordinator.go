// Package coordinator orchestrates the two-phase (build, run) execution of
// one experiment: completion-marker idempotency, synchronous build on a
// designated machine, concurrent dispatch of all run commands, a single join
// barrier, and the final marker write.
package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/sweepbench/internal/cluster"
	"github.com/vk/sweepbench/internal/command"
	"github.com/vk/sweepbench/internal/ctxlog"
	"github.com/vk/sweepbench/internal/experiment"
	"github.com/vk/sweepbench/internal/pattern"
	"github.com/vk/sweepbench/internal/remote"
	"github.com/vk/sweepbench/internal/topology"
)

// State is the coordinator's position in an experiment's lifecycle.
type State int

const (
	NotStarted State = iota
	Building
	Built
	Running
	Done
	// Skipped is terminal: the completion marker already existed, so nothing
	// was built, dispatched or written.
	Skipped
	// FailedConfig is terminal: topology or configuration validation failed
	// before any remote action.
	FailedConfig
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Building:
		return "building"
	case Built:
		return "built"
	case Running:
		return "running"
	case Done:
		return "done"
	case Skipped:
		return "skipped"
	case FailedConfig:
		return "failed-config"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options selects which phases run for an experiment.
type Options struct {
	// Build issues the build command before the run phase.
	Build bool
	// Run dispatches the run commands and writes the marker on success.
	Run bool
	// DryRun turns every mutating action (directory creation, setup writes,
	// remote dispatch, marker write) into a logged no-op.
	DryRun bool
}

// Coordinator drives experiments against a fixed cluster context. Experiments
// are processed one at a time; only the run phase inside one experiment is
// concurrent.
type Coordinator struct {
	cluster cluster.Context
	builder command.Builder
	exec    remote.Executor
	gen     pattern.Generator
}

// New creates a coordinator using the given remote executor and pattern
// generator collaborators.
func New(c cluster.Context, exec remote.Executor, gen pattern.Generator) *Coordinator {
	return &Coordinator{
		cluster: c,
		builder: command.Builder{Cluster: c},
		exec:    exec,
		gen:     gen,
	}
}

// RunExperiment drives one experiment through its lifecycle and returns the
// terminal state reached. machineID is the single machine id in machine-local
// mode or the base machine id in distributed mode; pass
// topology.MachineIDUnset when the operator provided none.
func (c *Coordinator) RunExperiment(ctx context.Context, exp *experiment.Experiment, machineID int, opts Options) (State, error) {
	logger := ctxlog.FromContext(ctx).With("experiment", exp.Name(), "fingerprint", exp.Fingerprint())
	ctx = ctxlog.WithLogger(ctx, logger)
	cfg := exp.Config()

	// Validate the topology first: a missing machine id must surface before
	// any directory is created or command dispatched.
	mode := topology.Distributed
	if cfg.MachineLocal {
		mode = topology.MachineLocal
	}
	topo, err := topology.Plan(mode, machineID, cfg.Processes, c.cluster.BasePort, c.cluster.Hostname)
	if err != nil {
		return FailedConfig, err
	}

	marker := c.localPath(exp.Paths().DoneMarker())
	if _, err := os.Stat(marker); err == nil {
		logger.Info("results already present, not running", "marker", marker)
		return Skipped, nil
	}

	logger.Info("running experiment",
		"mode", mode.String(), "processes", cfg.Processes, "results", exp.Paths().ResultDir())

	// Dry runs swap in the logging executor here, so the no-op guarantee does
	// not depend on how the coordinator was wired.
	exec := c.exec
	if opts.DryRun {
		exec = remote.DryRun{}
	}

	state := NotStarted

	if opts.Build {
		state = Building
		buildCmd := c.builder.Build(exp)
		if err := exec.Run(ctx, topo.BuildMachine(), buildCmd); err != nil {
			return state, &BuildError{Err: err}
		}
		state = Built
	}

	if !opts.Run {
		return state, nil
	}

	if err := c.writeSetup(ctx, exp, topo, opts.DryRun); err != nil {
		return state, &RunError{Err: err}
	}

	plan := NewPlan(c.builder, exp, topo, c.localPath)

	if !opts.DryRun {
		if err := os.MkdirAll(c.localPath(exp.Paths().ResultDir()), 0o755); err != nil {
			return state, &RunError{Err: fmt.Errorf("creating result directory: %w", err)}
		}
	} else {
		logger.Info("dry-run: would create result directory", "dir", exp.Paths().ResultDir())
	}

	// Fan out all processes, then join at a single barrier. Any failure
	// fails the join and the marker is never written, so the next invocation
	// retries the whole experiment.
	state = Running
	handles := make([]remote.Handle, 0, len(plan.Launches))
	for _, launch := range plan.Launches {
		h, err := exec.Start(ctx, launch.Machine, launch.Command, remote.Sinks{
			Stdout: launch.Stdout,
			Stderr: launch.Stderr,
		})
		if err != nil {
			return state, &RunError{Err: fmt.Errorf("dispatching process %d: %w", launch.Process, err)}
		}
		handles = append(handles, h)
	}
	if err := remote.JoinAll(handles); err != nil {
		return state, &RunError{Err: err}
	}

	if opts.DryRun {
		logger.Info("dry-run: would write manifest and completion marker")
		return Done, nil
	}
	if err := writeManifest(c.localPath(exp.Paths().ResultDir()+"/"+metaFile), exp, topo, time.Now()); err != nil {
		return state, &RunError{Err: err}
	}
	if err := touch(marker); err != nil {
		return state, &RunError{Err: fmt.Errorf("writing completion marker: %w", err)}
	}
	logger.Info("experiment complete", "marker", marker)
	return Done, nil
}

// writeSetup persists the migration pattern and the hostfile. The hostfile is
// rendered from the same topology instance the run commands reference.
func (c *Coordinator) writeSetup(ctx context.Context, exp *experiment.Experiment, topo *topology.Topology, dryRun bool) error {
	logger := ctxlog.FromContext(ctx)
	paths := exp.Paths()

	if dryRun {
		logger.Info("dry-run: would write setup files",
			"migration_pattern", paths.MigrationPattern(), "hostfile", paths.Hostfile())
		return nil
	}

	if err := os.MkdirAll(c.localPath(paths.SetupDir()), 0o755); err != nil {
		return fmt.Errorf("creating setup directory: %w", err)
	}

	patternPath := c.localPath(paths.MigrationPattern())
	logger.Info("writing migration pattern", "path", patternPath)
	f, err := os.Create(patternPath)
	if err != nil {
		return fmt.Errorf("creating migration pattern file: %w", err)
	}
	if err := c.gen.Generate(ctx, pattern.SpecFor(exp.Config()), f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing migration pattern: %w", err)
	}

	hostfilePath := c.localPath(paths.Hostfile())
	logger.Info("writing hostfile", "path", hostfilePath)
	if err := os.WriteFile(hostfilePath, []byte(topo.RenderHostfile()), 0o644); err != nil {
		return fmt.Errorf("writing hostfile: %w", err)
	}
	return nil
}

// localPath resolves a coordinator-relative path on the local filesystem.
func (c *Coordinator) localPath(rel string) string {
	return filepath.Join(c.cluster.LocalDir, rel)
}

// touch creates the zero-byte completion marker.
func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
