package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vk/sweepbench/internal/cluster"
	"github.com/vk/sweepbench/internal/experiment"
	"github.com/vk/sweepbench/internal/testutil"
	"github.com/vk/sweepbench/internal/topology"
)

func testCluster(t *testing.T) cluster.Context {
	t.Helper()
	c, err := cluster.New(cluster.Context{
		SrcPath:      "/cluster/megaphone",
		ServerPrefix: "andreal@fdr",
		HostSuffix:   ".ethz.ch",
		WorkDir:      "../experiments/nexmark",
		LocalDir:     t.TempDir(),
	})
	require.NoError(t, err)
	return c
}

func testExperiment(t *testing.T, mutate func(*experiment.Config)) *experiment.Experiment {
	t.Helper()
	cfg := experiment.Config{
		Binary:        "timely",
		Rate:          1600000,
		Migration:     experiment.MigrationFluid,
		BinShift:      8,
		Workers:       8,
		Processes:     2,
		InitialConfig: experiment.DistributionUniform,
		FinalConfig:   experiment.DistributionUniform,
		MachineLocal:  true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	exp, err := experiment.New("test", "abc123", cfg)
	require.NoError(t, err)
	return exp
}

func allPhases() Options { return Options{Build: true, Run: true} }

func TestRunExperiment_Success(t *testing.T) {
	t.Parallel()

	c := testCluster(t)
	exec := &testutil.FakeExecutor{}
	gen := &testutil.FakeGenerator{Payload: "pattern-bytes\n"}
	coord := New(c, exec, gen)
	exp := testExperiment(t, nil)

	state, err := coord.RunExperiment(context.Background(), exp, 3, allPhases())
	require.NoError(t, err)
	assert.Equal(t, Done, state)

	// Setup files on disk, rendered from the planned topology.
	pat, err := os.ReadFile(filepath.Join(c.LocalDir, exp.Paths().MigrationPattern()))
	require.NoError(t, err)
	assert.Equal(t, "pattern-bytes\n", string(pat))

	hosts, err := os.ReadFile(filepath.Join(c.LocalDir, exp.Paths().Hostfile()))
	require.NoError(t, err)
	assert.Equal(t, "fdr3.ethz.ch:3210\nfdr3.ethz.ch:3211\n", string(hosts))

	// Completion marker and manifest in the result directory.
	assert.FileExists(t, filepath.Join(c.LocalDir, exp.Paths().DoneMarker()))

	raw, err := os.ReadFile(filepath.Join(c.LocalDir, exp.Paths().ResultDir(), "meta.yaml"))
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &m))
	assert.Equal(t, "test", m["name"])
	assert.Equal(t, exp.Fingerprint(), m["fingerprint"])
	assert.Equal(t, 100000, m["process_rate"])

	// One synchronous build, one background start per process.
	require.Len(t, exec.RunCalls(), 1)
	assert.Contains(t, exec.RunCalls()[0].Command, "cargo rustc")
	assert.Equal(t, 3, exec.RunCalls()[0].Machine)

	starts := exec.StartCalls()
	require.Len(t, starts, 2)
	for p, call := range starts {
		assert.Equal(t, 3, call.Machine)
		assert.Contains(t, call.Command, fmt.Sprintf(" -p %d ", p))
		assert.Equal(t, filepath.Join(c.LocalDir, exp.Paths().ResultFile(experiment.StdoutFile, p)), call.Sinks.Stdout)
		assert.Equal(t, filepath.Join(c.LocalDir, exp.Paths().ResultFile(experiment.StderrFile, p)), call.Sinks.Stderr)
	}
}

func TestRunExperiment_BuildBeforeAnyDispatch(t *testing.T) {
	t.Parallel()

	c := testCluster(t)
	exec := &testutil.FakeExecutor{}
	coord := New(c, exec, &testutil.FakeGenerator{})

	_, err := coord.RunExperiment(context.Background(), testExperiment(t, nil), 1, allPhases())
	require.NoError(t, err)

	calls := exec.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, testutil.CallRun, calls[0].Kind, "the build must complete before any run dispatch")
	for _, call := range calls[1:] {
		assert.Equal(t, testutil.CallStart, call.Kind)
	}
}

func TestRunExperiment_SkipsWhenMarkerPresent(t *testing.T) {
	t.Parallel()

	c := testCluster(t)
	exec := &testutil.FakeExecutor{}
	coord := New(c, exec, &testutil.FakeGenerator{})
	exp := testExperiment(t, nil)

	state, err := coord.RunExperiment(context.Background(), exp, 3, allPhases())
	require.NoError(t, err)
	require.Equal(t, Done, state)
	before := len(exec.Calls())

	state, err = coord.RunExperiment(context.Background(), exp, 3, allPhases())
	require.NoError(t, err)
	assert.Equal(t, Skipped, state)
	assert.Len(t, exec.Calls(), before, "a completed experiment must not be rebuilt or redispatched")
}

func TestRunExperiment_BuildFailure(t *testing.T) {
	t.Parallel()

	c := testCluster(t)
	exec := &testutil.FakeExecutor{RunErr: errors.New("compiler exploded")}
	coord := New(c, exec, &testutil.FakeGenerator{})
	exp := testExperiment(t, nil)

	state, err := coord.RunExperiment(context.Background(), exp, 3, allPhases())
	require.Error(t, err)
	assert.Equal(t, Building, state)

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)

	assert.Empty(t, exec.StartCalls(), "nothing is dispatched after a failed build")
	assert.NoFileExists(t, filepath.Join(c.LocalDir, exp.Paths().DoneMarker()))
}

func TestRunExperiment_DispatchFailure(t *testing.T) {
	t.Parallel()

	c := testCluster(t)
	exec := &testutil.FakeExecutor{StartErr: errors.New("ssh refused")}
	coord := New(c, exec, &testutil.FakeGenerator{})
	exp := testExperiment(t, nil)

	state, err := coord.RunExperiment(context.Background(), exp, 3, allPhases())
	require.Error(t, err)
	assert.Equal(t, Running, state)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.NoFileExists(t, filepath.Join(c.LocalDir, exp.Paths().DoneMarker()))
}

func TestRunExperiment_ProcessFailureFailsJoin(t *testing.T) {
	t.Parallel()

	c := testCluster(t)
	exec := &testutil.FakeExecutor{WaitErrFor: map[int]error{1: errors.New("process crashed")}}
	coord := New(c, exec, &testutil.FakeGenerator{})
	exp := testExperiment(t, nil)

	state, err := coord.RunExperiment(context.Background(), exp, 3, allPhases())
	require.Error(t, err)
	assert.Equal(t, Running, state)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)

	// All processes were still dispatched; the failure surfaces at the join
	// and the marker is withheld so the next invocation retries.
	assert.Len(t, exec.StartCalls(), 2)
	assert.NoFileExists(t, filepath.Join(c.LocalDir, exp.Paths().DoneMarker()))
	assert.NoFileExists(t, filepath.Join(c.LocalDir, exp.Paths().ResultDir(), "meta.yaml"))
}

func TestRunExperiment_GeneratorFailure(t *testing.T) {
	t.Parallel()

	c := testCluster(t)
	exec := &testutil.FakeExecutor{}
	gen := &testutil.FakeGenerator{Err: errors.New("generator unavailable")}
	coord := New(c, exec, gen)
	exp := testExperiment(t, nil)

	_, err := coord.RunExperiment(context.Background(), exp, 3, allPhases())
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Empty(t, exec.StartCalls())
	assert.NoFileExists(t, filepath.Join(c.LocalDir, exp.Paths().DoneMarker()))
}

func TestRunExperiment_MissingMachineID(t *testing.T) {
	t.Parallel()

	c := testCluster(t)
	exec := &testutil.FakeExecutor{}
	coord := New(c, exec, &testutil.FakeGenerator{})

	state, err := coord.RunExperiment(context.Background(), testExperiment(t, nil), topology.MachineIDUnset, allPhases())
	require.Error(t, err)
	assert.Equal(t, FailedConfig, state)

	var cfgErr *experiment.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, exec.Calls(), "configuration failures must precede any remote action")
}

func TestRunExperiment_BuildOnly(t *testing.T) {
	t.Parallel()

	c := testCluster(t)
	exec := &testutil.FakeExecutor{}
	coord := New(c, exec, &testutil.FakeGenerator{})
	exp := testExperiment(t, nil)

	state, err := coord.RunExperiment(context.Background(), exp, 3, Options{Build: true})
	require.NoError(t, err)
	assert.Equal(t, Built, state)

	assert.Len(t, exec.RunCalls(), 1)
	assert.Empty(t, exec.StartCalls())
	assert.NoFileExists(t, filepath.Join(c.LocalDir, exp.Paths().DoneMarker()))
	assert.NoDirExists(t, filepath.Join(c.LocalDir, exp.Paths().SetupDir()))
}

func TestRunExperiment_NoBuild(t *testing.T) {
	t.Parallel()

	c := testCluster(t)
	exec := &testutil.FakeExecutor{}
	coord := New(c, exec, &testutil.FakeGenerator{})
	exp := testExperiment(t, nil)

	state, err := coord.RunExperiment(context.Background(), exp, 3, Options{Run: true})
	require.NoError(t, err)
	assert.Equal(t, Done, state)

	assert.Empty(t, exec.RunCalls())
	assert.Len(t, exec.StartCalls(), 2)
}

func TestRunExperiment_DryRunWritesNothing(t *testing.T) {
	t.Parallel()

	c := testCluster(t)
	exec := &testutil.FakeExecutor{}
	coord := New(c, exec, &testutil.FakeGenerator{})
	exp := testExperiment(t, nil)

	state, err := coord.RunExperiment(context.Background(), exp, 3, Options{Build: true, Run: true, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, Done, state)

	entries, err := os.ReadDir(c.LocalDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "a dry run must leave the filesystem untouched")

	// The configured executor is bypassed entirely, so dry-run safety does
	// not depend on which executor the coordinator was wired with.
	assert.Empty(t, exec.Calls(), "a dry run must not reach the real executor")
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "failed-config", FailedConfig.String())
	assert.Equal(t, "State(42)", State(42).String())
}
