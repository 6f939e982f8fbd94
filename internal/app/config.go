package app

import "errors"

// MachineIDUnset marks an absent machine id flag.
const MachineIDUnset = -1

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// SweepPath is a single .hcl file or a directory of .hcl files.
	SweepPath string

	// ClusterPath and ServerPrefix override the sweep's cluster block.
	ClusterPath  string
	ServerPrefix string

	// Revision overrides the git-resolved source revision.
	Revision string

	// PatternGenerator is the external migration-pattern generator
	// executable; overrides the sweep's cluster block.
	PatternGenerator string

	DryRun    bool
	BuildOnly bool
	NoBuild   bool

	// MachineID selects the machine for machine-local experiments; BaseID
	// the first machine for distributed ones. MachineIDUnset means the sweep
	// must provide one per experiment.
	MachineID int
	BaseID    int

	LogFormat string
	LogLevel  string
}

// NewConfig validates the configuration.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.SweepPath == "" {
		return nil, errors.New("SweepPath is a required configuration field and cannot be empty")
	}
	if cfg.BuildOnly && cfg.NoBuild {
		return nil, errors.New("cannot select --build-only and --no-build at the same time")
	}
	return &cfg, nil
}
