// Package pattern consumes the external migration-pattern generator. The
// coordinator only knows the pattern file's path and the bytes the generator
// produces; the pattern's structure is opaque to this system.
package pattern

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/vk/sweepbench/internal/experiment"
)

// Spec carries the parameters the generator derives a pattern from.
type Spec struct {
	// Migration is the migration pattern kind (sudden, fluid, batched).
	Migration string
	// BinShift is the log2 number of state bins.
	BinShift int
	// Slots is the total worker count across all processes.
	Slots int
	// Initial and Final name the workload distribution before and after
	// migration (uniform, uniform_skew, half).
	Initial string
	Final   string
	// DurationNS is the experiment duration in nanoseconds.
	DurationNS int64
}

// SpecFor derives the generator parameters from an experiment configuration.
func SpecFor(cfg experiment.Config) Spec {
	return Spec{
		Migration:  cfg.Migration,
		BinShift:   cfg.BinShift,
		Slots:      cfg.Workers * cfg.Processes,
		Initial:    cfg.InitialConfig,
		Final:      cfg.FinalConfig,
		DurationNS: int64(cfg.Duration) * 1_000_000_000,
	}
}

// Generator produces the migration pattern bytes for a spec. Implementations
// must treat w as the only output; a non-nil error means nothing usable was
// written.
type Generator interface {
	Generate(ctx context.Context, spec Spec, w io.Writer) error
}

// CommandGenerator invokes an external generator executable and streams its
// stdout into the pattern file.
type CommandGenerator struct {
	// Path is the generator executable.
	Path string
}

// Generate runs the generator with the spec encoded as flags and copies its
// stdout to w.
func (g CommandGenerator) Generate(ctx context.Context, spec Spec, w io.Writer) error {
	cmd := exec.CommandContext(ctx, g.Path,
		"--migration", spec.Migration,
		"--bin-shift", strconv.Itoa(spec.BinShift),
		"--slots", strconv.Itoa(spec.Slots),
		"--initial", spec.Initial,
		"--final", spec.Final,
		"--duration-ns", strconv.FormatInt(spec.DurationNS, 10),
	)
	cmd.Stdout = w
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pattern generator %s failed: %w", g.Path, err)
	}
	return nil
}
