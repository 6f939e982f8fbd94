// Package topology computes the process-index to network-location mapping
// for an experiment and renders it as a hostfile. The planned Topology is the
// single source of truth: the persisted hostfile and every rendered run
// command must reference the same instance, never a re-derivation.
package topology

import (
	"fmt"
	"strings"

	"github.com/vk/sweepbench/internal/experiment"
)

// Mode selects how processes are placed on machines.
type Mode int

const (
	// MachineLocal pins all processes to one machine, on consecutive ports
	// starting at the base port.
	MachineLocal Mode = iota
	// Distributed places one process per machine, on consecutive machine ids
	// starting at the base id, all using the base port.
	Distributed
)

func (m Mode) String() string {
	switch m {
	case MachineLocal:
		return "machine-local"
	case Distributed:
		return "distributed"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Endpoint is the network location of one process.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string { return fmt.Sprintf("%s:%d", e.Host, e.Port) }

// Topology maps each process index to its endpoint and its target machine.
type Topology struct {
	mode      Mode
	endpoints []Endpoint
	machines  []int
}

// MachineIDUnset marks an absent machine id in a Plan call.
const MachineIDUnset = -1

// Plan computes the topology for processCount processes.
//
// In MachineLocal mode, machineID names the single machine all processes run
// on; ports are basePort..basePort+processCount-1. In Distributed mode,
// machineID is the base id; process p runs on machine machineID+p with the
// fixed basePort. A missing machine id for the selected mode is a
// configuration error, caught here before any remote command is issued.
func Plan(mode Mode, machineID, processCount, basePort int, hostname func(machineID int) string) (*Topology, error) {
	if processCount <= 0 {
		return nil, experiment.NewConfigError("topology: process count must be positive, got %d", processCount)
	}
	if machineID == MachineIDUnset {
		switch mode {
		case MachineLocal:
			return nil, experiment.NewConfigError("topology: machine-local mode requires a machine id")
		case Distributed:
			return nil, experiment.NewConfigError("topology: distributed mode requires a base machine id")
		}
	}

	t := &Topology{
		mode:      mode,
		endpoints: make([]Endpoint, 0, processCount),
		machines:  make([]int, 0, processCount),
	}
	for p := 0; p < processCount; p++ {
		switch mode {
		case MachineLocal:
			t.endpoints = append(t.endpoints, Endpoint{Host: hostname(machineID), Port: basePort + p})
			t.machines = append(t.machines, machineID)
		case Distributed:
			t.endpoints = append(t.endpoints, Endpoint{Host: hostname(machineID + p), Port: basePort})
			t.machines = append(t.machines, machineID+p)
		default:
			return nil, experiment.NewConfigError("topology: unknown mode %d", int(mode))
		}
	}
	return t, nil
}

// Mode reports how this topology places processes.
func (t *Topology) Mode() Mode { return t.mode }

// Processes is the number of processes in the topology.
func (t *Topology) Processes() int { return len(t.endpoints) }

// Endpoint returns the network location of process p.
func (t *Topology) Endpoint(p int) Endpoint { return t.endpoints[p] }

// Machine returns the machine id process p is dispatched to.
func (t *Topology) Machine(p int) int { return t.machines[p] }

// BuildMachine is the machine the build command runs on: the single machine
// in machine-local mode, the base machine in distributed mode.
func (t *Topology) BuildMachine() int { return t.machines[0] }

// RenderHostfile produces the persisted hostfile content: one host:port
// record per line, line order equal to process index order, no trailing
// metadata.
func (t *Topology) RenderHostfile() string {
	var sb strings.Builder
	for _, ep := range t.endpoints {
		sb.WriteString(ep.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
