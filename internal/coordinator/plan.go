package coordinator

import (
	"github.com/vk/sweepbench/internal/command"
	"github.com/vk/sweepbench/internal/experiment"
	"github.com/vk/sweepbench/internal/topology"
)

// Launch is the dispatch unit for one process of an experiment.
type Launch struct {
	// Process is the process index.
	Process int
	// Machine is the cluster machine the command is dispatched to.
	Machine int
	// Command is the full rendered command line.
	Command string
	// Stdout and Stderr are the local sink paths output is captured in.
	Stdout string
	Stderr string
}

// Plan is the full set of launches for one experiment. It is built once from
// the planned topology and is immutable afterwards, so the hostfile and every
// launch reference the same topology instance.
type Plan struct {
	Launches []Launch
}

// NewPlan renders one launch per process index. localPath resolves a
// coordinator-relative result path to the local filesystem.
func NewPlan(b command.Builder, exp *experiment.Experiment, topo *topology.Topology, localPath func(string) string) Plan {
	paths := exp.Paths()
	launches := make([]Launch, 0, topo.Processes())
	for p := 0; p < topo.Processes(); p++ {
		launches = append(launches, Launch{
			Process: p,
			Machine: topo.Machine(p),
			Command: b.Run(exp, topo, p),
			Stdout:  localPath(paths.ResultFile(experiment.StdoutFile, p)),
			Stderr:  localPath(paths.ResultFile(experiment.StderrFile, p)),
		})
	}
	return Plan{Launches: launches}
}
