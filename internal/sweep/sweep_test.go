package sweep

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/sweepbench/internal/experiment"
)

// writeSweep writes one sweep file into a fresh directory and returns the
// directory path.
func writeSweep(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	return dir
}

const validSweep = `
cluster {
  path              = "/cluster/megaphone"
  server_prefix     = "andreal@fdr"
  host_suffix       = ".ethz.ch"
  work_dir          = "../experiments/nexmark"
  pattern_generator = "./pattern-gen"
}

experiment "bin-scaling" {
  binary         = "timely"
  duration       = 300
  workers        = 8
  processes      = 2
  initial_config = "uniform"
  final_config   = "uniform"
  machine_local  = true
  migration      = "fluid"
  rate           = 1600000
  queries        = ["q3-flex"]
  machine_id     = 3

  args = {
    domain  = 1000000
    backend = "hashmap"
  }

  matrix {
    bin_shift = [8, 12]
    rate      = [400000, 800000, 1600000]
  }
}
`

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := writeSweep(t, "sweep.hcl", validSweep)
	model, err := Load(context.Background(), dir)
	require.NoError(t, err)

	require.NotNil(t, model.Cluster)
	assert.Equal(t, "/cluster/megaphone", model.Cluster.Path)
	assert.Equal(t, "andreal@fdr", model.Cluster.ServerPrefix)
	assert.Equal(t, "./pattern-gen", model.Cluster.PatternGenerator)

	require.Len(t, model.Experiments, 1)
	b := model.Experiments[0]
	assert.Equal(t, "bin-scaling", b.Name)
	assert.Equal(t, "timely", b.Binary)
	assert.Equal(t, 8, b.Workers)
	require.NotNil(t, b.MachineID)
	assert.Equal(t, 3, *b.MachineID)
}

func TestLoad_SingleFilePath(t *testing.T) {
	t.Parallel()

	dir := writeSweep(t, "sweep.hcl", validSweep)
	model, err := Load(context.Background(), filepath.Join(dir, "sweep.hcl"))
	require.NoError(t, err)
	assert.Len(t, model.Experiments, 1)
}

func TestLoad_NoFiles(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .hcl sweep files")
}

func TestLoad_DuplicateClusterBlock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	block := "cluster {\n  path = \"/a\"\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hcl"), []byte(block), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.hcl"), []byte(block), 0o644))

	_, err := Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate cluster block")
}

func TestExpand_MatrixProduct(t *testing.T) {
	t.Parallel()

	dir := writeSweep(t, "sweep.hcl", validSweep)
	model, err := Load(context.Background(), dir)
	require.NoError(t, err)

	units, err := model.Expand()
	require.NoError(t, err)
	require.Len(t, units, 6, "2 bin shifts x 3 rates")

	// Axes are ordered by name (bin_shift before rate) and the last axis
	// varies fastest.
	wantPoints := []struct{ binShift, rate int }{
		{8, 400000}, {8, 800000}, {8, 1600000},
		{12, 400000}, {12, 800000}, {12, 1600000},
	}
	for i, want := range wantPoints {
		u := units[i]
		assert.Equal(t, "bin-scaling", u.Name)
		assert.Equal(t, want.binShift, u.Config.BinShift, "unit %d", i)
		assert.Equal(t, want.rate, u.Config.Rate, "unit %d", i)

		// Scalars and args apply to every point.
		assert.Equal(t, 300, u.Config.Duration)
		assert.Equal(t, experiment.MigrationFluid, u.Config.Migration)
		assert.Equal(t, []string{"q3-flex"}, u.Config.Queries)
		assert.Equal(t, []experiment.Param{
			{Key: "backend", Value: experiment.String("hashmap")},
			{Key: "domain", Value: experiment.Int(1000000)},
		}, u.Config.Extra)
		require.NotNil(t, u.MachineID)
		assert.Equal(t, 3, *u.MachineID)
	}

	// Every expanded point must survive validation and fingerprint uniquely.
	seen := map[string]bool{}
	for _, u := range units {
		exp, err := experiment.New(u.Name, "abc123", u.Config)
		require.NoError(t, err)
		assert.False(t, seen[exp.Fingerprint()], "duplicate fingerprint %s", exp.Fingerprint())
		seen[exp.Fingerprint()] = true
	}
}

func TestExpand_NoMatrix(t *testing.T) {
	t.Parallel()

	dir := writeSweep(t, "sweep.hcl", `
experiment "single" {
  binary         = "timely"
  workers        = 4
  processes      = 1
  bin_shift      = 8
  rate           = 100000
  migration      = "sudden"
  initial_config = "uniform"
  final_config   = "half"
}
`)
	model, err := Load(context.Background(), dir)
	require.NoError(t, err)

	units, err := model.Expand()
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, experiment.MigrationSudden, units[0].Config.Migration)
	assert.Nil(t, units[0].MachineID)
}

func TestExpand_MatrixVariesExtras(t *testing.T) {
	t.Parallel()

	dir := writeSweep(t, "sweep.hcl", `
experiment "domains" {
  binary         = "timely"
  workers        = 4
  processes      = 1
  bin_shift      = 8
  rate           = 100000
  migration      = "fluid"
  initial_config = "uniform"
  final_config   = "uniform"

  matrix {
    domain = [1000, 1000000]
  }
}
`)
	model, err := Load(context.Background(), dir)
	require.NoError(t, err)

	units, err := model.Expand()
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, []experiment.Param{{Key: "domain", Value: experiment.Int(1000)}}, units[0].Config.Extra)
	assert.Equal(t, []experiment.Param{{Key: "domain", Value: experiment.Int(1000000)}}, units[1].Config.Extra)
}

func TestExpand_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		body      string
		expectErr string
	}{
		{
			"bin_shift missing",
			`rate = 100000
  migration = "fluid"`,
			"bin_shift must be set",
		},
		{
			"matrix varies reserved key",
			`bin_shift = 8
  rate = 100000
  migration = "fluid"
  matrix {
    workers = [2, 4]
  }`,
			"matrix cannot vary",
		},
		{
			"args override reserved key",
			`bin_shift = 8
  rate = 100000
  migration = "fluid"
  args = { processes = 4 }`,
			"args cannot override",
		},
		{
			"args shadow a scalar parameter",
			`bin_shift = 8
  rate = 100000
  migration = "fluid"
  args = { rate = 400 }`,
			"args cannot override",
		},
		{
			"matrix attribute not a list",
			`bin_shift = 8
  rate = 100000
  migration = "fluid"
  matrix {
    domain = 1000
  }`,
			"must be a list",
		},
		{
			"empty matrix axis",
			`bin_shift = 8
  rate = 100000
  migration = "fluid"
  matrix {
    domain = []
  }`,
			"must not be empty",
		},
		{
			"fractional rate",
			`bin_shift = 8
  migration = "fluid"
  matrix {
    rate = [100000.5]
  }`,
			"whole number",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeSweep(t, "sweep.hcl", `
experiment "bad" {
  binary         = "timely"
  workers        = 4
  processes      = 1
  initial_config = "uniform"
  final_config   = "uniform"
  `+tc.body+`
}
`)
			model, err := Load(context.Background(), dir)
			require.NoError(t, err)

			_, err = model.Expand()
			require.Error(t, err)
			var cfgErr *experiment.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tc.expectErr)
		})
	}
}
