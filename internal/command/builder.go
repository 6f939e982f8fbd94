// Package command renders the build command and the per-process run commands
// for an experiment. Commands are built as explicit token lists with explicit
// quoting, so the rendered string is safe to hand to a remote shell verbatim.
package command

import (
	"path"
	"strconv"
	"strings"

	"github.com/vk/sweepbench/internal/cluster"
	"github.com/vk/sweepbench/internal/experiment"
	"github.com/vk/sweepbench/internal/topology"
)

// crashBacktrace enables crash backtraces in the binary under test. It is
// passed through bit-exact and must not be altered.
const crashBacktrace = "RUST_BACKTRACE=1"

// Builder renders commands against a fixed cluster context. Rendering is
// pure string construction; Builder performs no I/O.
type Builder struct {
	Cluster cluster.Context
}

// Build renders the build toolchain invocation for the experiment's feature
// set. The build directory is keyed by the feature set only, so the build
// toolchain's own incremental behavior dedupes repeated invocations.
func (b Builder) Build(exp *experiment.Experiment) string {
	cfg := exp.Config()
	tokens := []string{
		"cargo", "rustc",
		"--target-dir", Quote(exp.Paths().BuildDir()),
		"--bin", Quote(cfg.Binary),
		"--release",
		"--no-default-features",
		"--features", Quote(strings.Join(cfg.Features(), " ")),
	}
	cmd := strings.Join(tokens, " ")
	if b.Cluster.BuildPrelude != "" {
		cmd = b.Cluster.BuildPrelude + " && " + cmd
	}
	return cmd
}

// Run renders the command line for process index p of the experiment. The
// topology passed in must be the same instance the hostfile was written from.
//
// Token order is: affinity binding, binary path, migration pattern, rate,
// pass-through arguments, then the cluster topology flags after a bare "--".
// Downstream result parsing depends on this order.
func (b Builder) Run(exp *experiment.Experiment, topo *topology.Topology, p int) string {
	cfg := exp.Config()
	paths := exp.Paths()

	// Machine-local processes each get their own socket; distributed runs
	// have one process per machine and always bind socket 0.
	socket := 0
	if topo.Mode() == topology.MachineLocal {
		socket = p
	}

	tokens := []string{
		crashBacktrace,
		b.Cluster.NumaBinder, "socket:" + strconv.Itoa(socket) + ".pu:even", "--",
		"./" + paths.BuildDir() + "/release/" + cfg.Binary,
		"--migration", b.workPath(paths.MigrationPattern()),
		"--rate", strconv.Itoa(exp.ProcessRate()),
	}
	tokens = append(tokens, b.passThroughArgs(cfg)...)
	tokens = append(tokens,
		"--",
		"--hostfile", b.workPath(paths.Hostfile()),
		"-n", strconv.Itoa(cfg.Processes),
		"-p", strconv.Itoa(p),
		"-w", strconv.Itoa(cfg.Workers),
	)
	return strings.Join(tokens, " ")
}

// passThroughArgs renders the experiment arguments forwarded verbatim to the
// binary: duration and queries when set, then the extra parameters in order.
func (b Builder) passThroughArgs(cfg experiment.Config) []string {
	var tokens []string
	if cfg.Duration > 0 {
		tokens = append(tokens, "--duration", strconv.Itoa(cfg.Duration))
	}
	if len(cfg.Queries) > 0 {
		tokens = append(tokens, "--queries", Quote(experiment.Strings(cfg.Queries...).Render()))
	}
	for _, param := range cfg.Extra {
		tokens = append(tokens, "--"+param.Key, Quote(param.Value.Render()))
	}
	return tokens
}

// workPath resolves a coordinator-relative path against the remote working
// directory convention, so remote invocation does not depend on the
// coordinator's own filesystem layout.
func (b Builder) workPath(rel string) string {
	return path.Join(b.Cluster.WorkDir, rel)
}
