package experiment

import (
	"fmt"
	"sort"
)

// Migration pattern kinds understood by the pattern generator.
const (
	MigrationSudden  = "sudden"
	MigrationFluid   = "fluid"
	MigrationBatched = "batched"
)

// Workload distribution kinds for the initial and final configuration.
const (
	DistributionUniform     = "uniform"
	DistributionUniformSkew = "uniform_skew"
	DistributionHalf        = "half"
)

// ConfigError reports a defect in the sweep definition. It is detected before
// any directory is created or command dispatched, and aborts the whole sweep.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

// NewConfigError creates a ConfigError with a formatted message.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// Config is the closed configuration type for one experiment point. It
// captures every parameter that contributes to the configuration fingerprint.
type Config struct {
	// Binary is the name of the compute binary under test.
	Binary string

	// Duration is the experiment duration in seconds. Zero means the binary's
	// default; a zero duration is omitted from the fingerprint.
	Duration int

	// Rate is the total input rate, split evenly across all workers.
	Rate int

	// Queries selects the query set; empty for workloads without queries.
	Queries []string

	// Migration selects the migration pattern kind.
	Migration string

	// BinShift is the log2 number of state bins; it selects the binary
	// variant rather than a runtime parameter.
	BinShift int

	// Workers is the number of worker threads per process.
	Workers int

	// Processes is the number of processes in the topology.
	Processes int

	// InitialConfig and FinalConfig name the workload distribution before and
	// after migration.
	InitialConfig string
	FinalConfig   string

	// MachineLocal pins all processes to a single machine.
	MachineLocal bool

	// FakeStateful swaps in the synthetic-state binary variant.
	FakeStateful bool

	// Extra holds pass-through arguments forwarded verbatim to the binary,
	// ordered by key.
	Extra []Param
}

// builtinParamKeys are the keys Params renders from named Config fields. A
// pass-through argument must never shadow one: the fingerprint is a mapping
// with unique keys, and a duplicate would corrupt both the fingerprint and
// the rendered run command.
var builtinParamKeys = map[string]struct{}{
	"binary":         {},
	"duration":       {},
	"rate":           {},
	"queries":        {},
	"migration":      {},
	"bin_shift":      {},
	"workers":        {},
	"processes":      {},
	"initial_config": {},
	"final_config":   {},
	"machine_local":  {},
	"fake_stateful":  {},
}

// BuiltinParam reports whether key names a built-in configuration field.
func BuiltinParam(key string) bool {
	_, ok := builtinParamKeys[key]
	return ok
}

// Params returns the full normalized parameter list of the configuration,
// sorted by key. Two semantically equal configurations always produce the
// same list, regardless of how they were assembled.
func (c Config) Params() []Param {
	params := []Param{
		{Key: "binary", Value: String(c.Binary)},
		{Key: "rate", Value: Int(c.Rate)},
		{Key: "migration", Value: String(c.Migration)},
		{Key: "bin_shift", Value: Int(c.BinShift)},
		{Key: "workers", Value: Int(c.Workers)},
		{Key: "processes", Value: Int(c.Processes)},
		{Key: "initial_config", Value: String(c.InitialConfig)},
		{Key: "final_config", Value: String(c.FinalConfig)},
		{Key: "machine_local", Value: Bool(c.MachineLocal)},
		{Key: "fake_stateful", Value: Bool(c.FakeStateful)},
	}
	if c.Duration > 0 {
		params = append(params, Param{Key: "duration", Value: Int(c.Duration)})
	}
	if len(c.Queries) > 0 {
		params = append(params, Param{Key: "queries", Value: Strings(c.Queries...)})
	}
	params = append(params, c.Extra...)
	sort.SliceStable(params, func(i, j int) bool { return params[i].Key < params[j].Key })
	return params
}

// Validate checks the configuration for defects that must be caught before
// any remote command is issued. All failures are ConfigErrors.
func (c Config) Validate() error {
	if c.Binary == "" {
		return NewConfigError("experiment: binary must not be empty")
	}
	if c.Workers <= 0 {
		return NewConfigError("experiment: workers must be positive, got %d", c.Workers)
	}
	if c.Processes <= 0 {
		return NewConfigError("experiment: processes must be positive, got %d", c.Processes)
	}
	if c.Rate <= 0 {
		return NewConfigError("experiment: rate must be positive, got %d", c.Rate)
	}
	switch c.Migration {
	case MigrationSudden, MigrationFluid, MigrationBatched:
	default:
		return NewConfigError("experiment: unknown migration pattern %q", c.Migration)
	}
	if err := validateDistribution("initial_config", c.InitialConfig); err != nil {
		return err
	}
	if err := validateDistribution("final_config", c.FinalConfig); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Extra))
	for _, p := range c.Extra {
		if p.Key == "" {
			return NewConfigError("experiment: pass-through argument with empty key")
		}
		if BuiltinParam(p.Key) {
			return NewConfigError("experiment: pass-through argument %q shadows a built-in parameter", p.Key)
		}
		if _, dup := seen[p.Key]; dup {
			return NewConfigError("experiment: duplicate pass-through argument %q", p.Key)
		}
		seen[p.Key] = struct{}{}
	}
	return nil
}

func validateDistribution(field, kind string) error {
	switch kind {
	case DistributionUniform, DistributionUniformSkew, DistributionHalf:
		return nil
	}
	return NewConfigError("experiment: unknown %s distribution %q", field, kind)
}
