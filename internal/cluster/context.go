// Package cluster defines the immutable cluster context shared by the
// coordinator and all path/command builders. It replaces ad hoc process-wide
// state with a single value constructed once at startup.
package cluster

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultBasePort is the first port assigned to a process on a machine.
const DefaultBasePort = 3210

// Context describes how to reach the cluster and where the benchmark
// checkout lives on it. A Context is immutable once constructed.
type Context struct {
	// SrcPath is the path of the benchmark checkout on the cluster machines.
	// Remote commands run with this as their working directory.
	SrcPath string

	// ServerPrefix is an ssh user@host prefix, e.g. "andreal@fdr". The
	// machine number is appended to form the ssh target.
	ServerPrefix string

	// HostSuffix is appended to the bare host name in hostfile records,
	// e.g. ".ethz.ch".
	HostSuffix string

	// BasePort is the first port used by machine-local topologies and the
	// fixed port used by distributed topologies.
	BasePort int

	// WorkDir is the directory, relative to SrcPath, that setup and result
	// paths are resolved against in rendered run commands. Remote processes
	// must find the same files the coordinator wrote.
	WorkDir string

	// LocalDir is the directory the coordinator resolves setup and result
	// paths against on its own filesystem. By convention this names the same
	// location as WorkDir through a shared mount.
	LocalDir string

	// NumaBinder is the CPU/NUMA affinity binding executable prefixed to
	// every run command.
	NumaBinder string

	// BuildPrelude, when non-empty, is a shell fragment prepended to the
	// build command with " && ". Used for site-specific proxy setup.
	BuildPrelude string
}

// New validates the given context and fills in defaults.
func New(c Context) (Context, error) {
	if c.SrcPath == "" {
		return Context{}, errors.New("cluster: path must not be empty")
	}
	if c.ServerPrefix == "" {
		return Context{}, errors.New("cluster: server prefix must not be empty")
	}
	if !strings.Contains(c.ServerPrefix, "@") {
		return Context{}, fmt.Errorf("cluster: server prefix %q must have the form user@host", c.ServerPrefix)
	}
	if c.BasePort == 0 {
		c.BasePort = DefaultBasePort
	}
	if c.BasePort < 0 || c.BasePort > 65535 {
		return Context{}, fmt.Errorf("cluster: base port %d out of range", c.BasePort)
	}
	if c.WorkDir == "" {
		c.WorkDir = "."
	}
	if c.LocalDir == "" {
		c.LocalDir = "."
	}
	if c.NumaBinder == "" {
		c.NumaBinder = "hwloc-bind"
	}
	return c, nil
}

// SSHTarget returns the ssh destination for the given machine id.
func (c Context) SSHTarget(machineID int) string {
	return fmt.Sprintf("%s%d", c.ServerPrefix, machineID)
}

// Hostname returns the network host name for the given machine id, as it
// appears in hostfile records.
func (c Context) Hostname(machineID int) string {
	host := c.ServerPrefix
	if i := strings.Index(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	return fmt.Sprintf("%s%d%s", host, machineID, c.HostSuffix)
}
