// Package sweep defines the declarative sweep model loaded from .hcl files
// and its expansion into concrete experiment configurations. A sweep file
// holds one optional cluster block and any number of experiment blocks; an
// experiment block's matrix expands into one configuration per point of the
// cartesian product of its lists.
package sweep

import (
	"github.com/hashicorp/hcl/v2"
)

// Model is the merged view of all loaded sweep files.
type Model struct {
	Cluster     *ClusterBlock
	Experiments []*ExperimentBlock
}

// hclSweepFile is the top-level structure of one sweep file for decoding.
type hclSweepFile struct {
	Cluster     *ClusterBlock      `hcl:"cluster,block"`
	Experiments []*ExperimentBlock `hcl:"experiment,block"`
}

// ClusterBlock mirrors cluster.Context; CLI flags override its values.
type ClusterBlock struct {
	Path             string `hcl:"path,optional"`
	ServerPrefix     string `hcl:"server_prefix,optional"`
	HostSuffix       string `hcl:"host_suffix,optional"`
	BasePort         int    `hcl:"base_port,optional"`
	WorkDir          string `hcl:"work_dir,optional"`
	LocalDir         string `hcl:"local_dir,optional"`
	NumaBinder       string `hcl:"numa_binder,optional"`
	BuildPrelude     string `hcl:"build_prelude,optional"`
	PatternGenerator string `hcl:"pattern_generator,optional"`
}

// ExperimentBlock is one `experiment "<name>" { ... }` block. Scalar
// attributes apply to every point; the matrix block's list attributes are
// expanded into the cartesian product.
type ExperimentBlock struct {
	Name          string         `hcl:"name,label"`
	Binary        string         `hcl:"binary"`
	Duration      int            `hcl:"duration,optional"`
	Workers       int            `hcl:"workers"`
	Processes     int            `hcl:"processes"`
	BinShift      *int           `hcl:"bin_shift,optional"`
	Rate          *int           `hcl:"rate,optional"`
	Migration     *string        `hcl:"migration,optional"`
	Queries       []string       `hcl:"queries,optional"`
	InitialConfig string         `hcl:"initial_config"`
	FinalConfig   string         `hcl:"final_config"`
	MachineLocal  bool           `hcl:"machine_local,optional"`
	FakeStateful  bool           `hcl:"fake_stateful,optional"`
	MachineID     *int           `hcl:"machine_id,optional"`
	BaseID        *int           `hcl:"base_id,optional"`
	Args          hcl.Expression `hcl:"args,optional"`
	Matrix        *MatrixBlock   `hcl:"matrix,block"`
}

// MatrixBlock captures the matrix attributes without evaluating them; every
// attribute must evaluate to a list.
type MatrixBlock struct {
	Body hcl.Body `hcl:",remain"`
}
