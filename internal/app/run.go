package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/sweepbench/internal/cluster"
	"github.com/vk/sweepbench/internal/coordinator"
	"github.com/vk/sweepbench/internal/ctxlog"
	"github.com/vk/sweepbench/internal/experiment"
	"github.com/vk/sweepbench/internal/gitrev"
	"github.com/vk/sweepbench/internal/pattern"
	"github.com/vk/sweepbench/internal/remote"
	"github.com/vk/sweepbench/internal/sweep"
	"github.com/vk/sweepbench/internal/topology"
)

// Run loads the sweep definition, expands it, and drives every experiment
// sequentially through the coordinator. A configuration error aborts the
// whole sweep; a build or run failure logs and continues with the next
// experiment.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	model, err := sweep.Load(ctx, a.config.SweepPath)
	if err != nil {
		return err
	}

	clusterCtx, patternGen, err := a.resolveCluster(model.Cluster)
	if err != nil {
		return err
	}

	units, err := model.Expand()
	if err != nil {
		return err
	}
	if len(units) == 0 {
		a.logger.Warn("sweep expanded to zero experiments, nothing to do")
		return nil
	}

	revision := a.config.Revision
	if revision == "" {
		revision, err = gitrev.Current(ctx)
		if err != nil {
			return err
		}
	}

	opts := coordinator.Options{
		Build:  !a.config.NoBuild,
		Run:    !a.config.BuildOnly,
		DryRun: a.config.DryRun,
	}
	if a.config.DryRun {
		a.logger.Info("dry-run")
	}

	gen, err := a.generator(patternGen, opts)
	if err != nil {
		return err
	}
	coord := coordinator.New(clusterCtx, a.executor(clusterCtx), gen)

	a.logger.Info("starting sweep",
		"experiments", len(units), "revision", revision, "build", opts.Build, "run", opts.Run)

	var done, skipped, failed int
	for _, unit := range units {
		exp, err := experiment.New(unit.Name, revision, unit.Config)
		if err != nil {
			// A sweep-definition defect; nothing remote has happened yet.
			return fmt.Errorf("aborting sweep: %w", err)
		}

		state, err := coord.RunExperiment(ctx, exp, a.resolveMachineID(unit), opts)
		if err != nil {
			var cfgErr *experiment.ConfigError
			if errors.As(err, &cfgErr) {
				return fmt.Errorf("aborting sweep: %w", err)
			}
			failed++
			a.logger.Error("experiment failed, continuing sweep",
				"experiment", exp.Name(), "fingerprint", exp.Fingerprint(),
				"state", state.String(), "error", err)
			continue
		}
		switch state {
		case coordinator.Skipped:
			skipped++
		default:
			done++
		}
	}

	a.logger.Info("sweep finished", "completed", done, "skipped", skipped, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d experiments failed", failed, len(units))
	}
	return nil
}

// resolveCluster merges the sweep's cluster block with the CLI overrides.
func (a *App) resolveCluster(block *sweep.ClusterBlock) (cluster.Context, string, error) {
	var c cluster.Context
	patternGen := ""
	if block != nil {
		c = cluster.Context{
			SrcPath:      block.Path,
			ServerPrefix: block.ServerPrefix,
			HostSuffix:   block.HostSuffix,
			BasePort:     block.BasePort,
			WorkDir:      block.WorkDir,
			LocalDir:     block.LocalDir,
			NumaBinder:   block.NumaBinder,
			BuildPrelude: block.BuildPrelude,
		}
		patternGen = block.PatternGenerator
	}
	if a.config.ClusterPath != "" {
		c.SrcPath = a.config.ClusterPath
	}
	if a.config.ServerPrefix != "" {
		c.ServerPrefix = a.config.ServerPrefix
	}
	if a.config.PatternGenerator != "" {
		patternGen = a.config.PatternGenerator
	}
	resolved, err := cluster.New(c)
	return resolved, patternGen, err
}

// executor picks the remote execution implementation: injected for tests,
// ssh otherwise. Dry runs are neutralized inside the coordinator.
func (a *App) executor(c cluster.Context) remote.Executor {
	if a.exec != nil {
		return a.exec
	}
	return remote.NewSSH(c)
}

// generator picks the pattern generator implementation. The external command
// is only required when setup files will actually be written.
func (a *App) generator(path string, opts coordinator.Options) (pattern.Generator, error) {
	if a.gen != nil {
		return a.gen, nil
	}
	if path == "" && opts.Run && !opts.DryRun {
		return nil, fmt.Errorf("no pattern generator configured: set pattern_generator in the cluster block or pass --pattern-gen")
	}
	return pattern.CommandGenerator{Path: path}, nil
}

// resolveMachineID picks the machine id for the unit's topology mode:
// a per-experiment override wins over the CLI flag.
func (a *App) resolveMachineID(unit sweep.Unit) int {
	if unit.Config.MachineLocal {
		if unit.MachineID != nil {
			return *unit.MachineID
		}
		if a.config.MachineID != MachineIDUnset {
			return a.config.MachineID
		}
	} else {
		if unit.BaseID != nil {
			return *unit.BaseID
		}
		if a.config.BaseID != MachineIDUnset {
			return a.config.BaseID
		}
	}
	return topology.MachineIDUnset
}
