package sweep

import (
	"math/big"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/sweepbench/internal/experiment"
)

// Unit is one expanded sweep point: a named experiment configuration plus
// optional per-experiment machine id overrides.
type Unit struct {
	Name      string
	Config    experiment.Config
	MachineID *int
	BaseID    *int
}

// Expand turns every experiment block into its concrete configuration
// points, in deterministic order: blocks in file order, matrix axes sorted by
// name, the last axis varying fastest.
func (m *Model) Expand() ([]Unit, error) {
	var units []Unit
	for _, block := range m.Experiments {
		blockUnits, err := expandBlock(block)
		if err != nil {
			return nil, err
		}
		units = append(units, blockUnits...)
	}
	return units, nil
}

// axis is one matrix attribute and its candidate values.
type axis struct {
	name   string
	values []cty.Value
}

// reservedMatrixKeys are configuration fields that shape the topology or
// binary identity in ways a matrix must not vary.
var reservedMatrixKeys = map[string]struct{}{
	"binary":         {},
	"workers":        {},
	"processes":      {},
	"initial_config": {},
	"final_config":   {},
	"machine_local":  {},
	"fake_stateful":  {},
}

func expandBlock(b *ExperimentBlock) ([]Unit, error) {
	baseExtras, err := decodeArgs(b)
	if err != nil {
		return nil, err
	}
	axes, err := decodeMatrix(b)
	if err != nil {
		return nil, err
	}

	var units []Unit
	idx := make([]int, len(axes))
	for {
		cfg, err := pointConfig(b, baseExtras, axes, idx)
		if err != nil {
			return nil, err
		}
		units = append(units, Unit{Name: b.Name, Config: cfg, MachineID: b.MachineID, BaseID: b.BaseID})

		// Odometer increment: the last axis varies fastest.
		i := len(axes) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(axes[i].values) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return units, nil
}

// pointConfig assembles the configuration for one matrix point.
func pointConfig(b *ExperimentBlock, baseExtras map[string]experiment.Value, axes []axis, idx []int) (experiment.Config, error) {
	cfg := experiment.Config{
		Binary:        b.Binary,
		Duration:      b.Duration,
		Workers:       b.Workers,
		Processes:     b.Processes,
		InitialConfig: b.InitialConfig,
		FinalConfig:   b.FinalConfig,
		MachineLocal:  b.MachineLocal,
		FakeStateful:  b.FakeStateful,
	}
	binShiftSet := false
	if b.BinShift != nil {
		cfg.BinShift = *b.BinShift
		binShiftSet = true
	}
	if b.Rate != nil {
		cfg.Rate = *b.Rate
	}
	if b.Migration != nil {
		cfg.Migration = *b.Migration
	}
	if len(b.Queries) > 0 {
		cfg.Queries = append([]string(nil), b.Queries...)
	}

	extras := make(map[string]experiment.Value, len(baseExtras))
	for k, v := range baseExtras {
		extras[k] = v
	}

	for i, ax := range axes {
		v := ax.values[idx[i]]
		switch ax.name {
		case "rate":
			n, err := ctyInt(b.Name, ax.name, v)
			if err != nil {
				return cfg, err
			}
			cfg.Rate = n
		case "bin_shift":
			n, err := ctyInt(b.Name, ax.name, v)
			if err != nil {
				return cfg, err
			}
			cfg.BinShift = n
			binShiftSet = true
		case "duration":
			n, err := ctyInt(b.Name, ax.name, v)
			if err != nil {
				return cfg, err
			}
			cfg.Duration = n
		case "migration":
			if v.Type() != cty.String {
				return cfg, experiment.NewConfigError("sweep %q: matrix migration values must be strings", b.Name)
			}
			cfg.Migration = v.AsString()
		case "queries":
			if v.Type() != cty.String {
				return cfg, experiment.NewConfigError("sweep %q: matrix queries values must be strings", b.Name)
			}
			cfg.Queries = []string{v.AsString()}
		default:
			val, err := ctyToValue(b.Name, ax.name, v)
			if err != nil {
				return cfg, err
			}
			extras[ax.name] = val
		}
	}

	if !binShiftSet {
		return cfg, experiment.NewConfigError("sweep %q: bin_shift must be set, either directly or via the matrix", b.Name)
	}

	cfg.Extra = sortedParams(extras)
	return cfg, nil
}

// decodeArgs evaluates the args attribute into pass-through parameters.
func decodeArgs(b *ExperimentBlock) (map[string]experiment.Value, error) {
	extras := map[string]experiment.Value{}
	if b.Args == nil {
		return extras, nil
	}
	val, diags := b.Args.Value(nil)
	if diags.HasErrors() {
		return nil, experiment.NewConfigError("sweep %q: invalid args: %s", b.Name, diags.Error())
	}
	if val.IsNull() {
		return extras, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, experiment.NewConfigError("sweep %q: args must be an object of key/value pairs", b.Name)
	}
	for key, v := range val.AsValueMap() {
		if experiment.BuiltinParam(key) {
			return nil, experiment.NewConfigError("sweep %q: args cannot override %q", b.Name, key)
		}
		converted, err := ctyToValue(b.Name, key, v)
		if err != nil {
			return nil, err
		}
		extras[key] = converted
	}
	return extras, nil
}

// decodeMatrix evaluates the matrix block into axes sorted by name.
func decodeMatrix(b *ExperimentBlock) ([]axis, error) {
	if b.Matrix == nil {
		return nil, nil
	}
	attrs, diags := b.Matrix.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, experiment.NewConfigError("sweep %q: invalid matrix: %s", b.Name, diags.Error())
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	axes := make([]axis, 0, len(names))
	for _, name := range names {
		if _, reserved := reservedMatrixKeys[name]; reserved {
			return nil, experiment.NewConfigError("sweep %q: matrix cannot vary %q", b.Name, name)
		}
		val, diags := attrs[name].Expr.Value(nil)
		if diags.HasErrors() {
			return nil, experiment.NewConfigError("sweep %q: invalid matrix attribute %q: %s", b.Name, name, diags.Error())
		}
		if !val.Type().IsTupleType() && !val.Type().IsListType() {
			return nil, experiment.NewConfigError("sweep %q: matrix attribute %q must be a list", b.Name, name)
		}
		values := val.AsValueSlice()
		if len(values) == 0 {
			return nil, experiment.NewConfigError("sweep %q: matrix attribute %q must not be empty", b.Name, name)
		}
		axes = append(axes, axis{name: name, values: values})
	}
	return axes, nil
}

// ctyToValue converts an HCL value to a configuration value.
func ctyToValue(sweepName, key string, v cty.Value) (experiment.Value, error) {
	switch {
	case v.Type() == cty.String:
		return experiment.String(v.AsString()), nil
	case v.Type() == cty.Number:
		n, err := ctyInt(sweepName, key, v)
		if err != nil {
			return experiment.Value{}, err
		}
		return experiment.Int(n), nil
	case v.Type() == cty.Bool:
		return experiment.Bool(v.True()), nil
	case v.Type().IsTupleType() || v.Type().IsListType():
		elems := v.AsValueSlice()
		ss := make([]string, 0, len(elems))
		for _, e := range elems {
			if e.Type() != cty.String {
				return experiment.Value{}, experiment.NewConfigError("sweep %q: %s: sequence elements must be strings", sweepName, key)
			}
			ss = append(ss, e.AsString())
		}
		return experiment.Strings(ss...), nil
	}
	return experiment.Value{}, experiment.NewConfigError("sweep %q: %s: unsupported value type %s", sweepName, key, v.Type().FriendlyName())
}

// ctyInt converts an HCL number to an int, rejecting fractions.
func ctyInt(sweepName, key string, v cty.Value) (int, error) {
	if v.Type() != cty.Number {
		return 0, experiment.NewConfigError("sweep %q: %s must be a number", sweepName, key)
	}
	n, acc := v.AsBigFloat().Int64()
	if acc != big.Exact {
		return 0, experiment.NewConfigError("sweep %q: %s must be a whole number", sweepName, key)
	}
	return int(n), nil
}

// sortedParams flattens the extras map into a key-ordered parameter list.
func sortedParams(extras map[string]experiment.Value) []experiment.Param {
	if len(extras) == 0 {
		return nil
	}
	keys := make([]string, 0, len(extras))
	for k := range extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := make([]experiment.Param, 0, len(keys))
	for _, k := range keys {
		params = append(params, experiment.Param{Key: k, Value: extras[k]})
	}
	return params
}
