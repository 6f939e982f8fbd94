// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates CLI flags into the application's internal configuration.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/sweepbench/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("sweepbench", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
sweepbench - configuration-addressed cluster benchmark sweeps.

Usage:
  sweepbench [options] [SWEEP_PATH]

Arguments:
  SWEEP_PATH
    Path to a single .hcl sweep file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	sweepFlag := flagSet.String("sweep", "", "Path to the sweep file or directory.")
	sFlag := flagSet.String("s", "", "Path to the sweep file or directory (shorthand).")
	clusterPathFlag := flagSet.String("clusterpath", "", "Path of the benchmark checkout on the cluster machines.")
	serverPrefixFlag := flagSet.String("serverprefix", "", "An ssh user@server prefix, e.g. andreal@fdr; the machine number is appended.")
	revisionFlag := flagSet.String("revision", "", "Source revision for fingerprints. Defaults to the current git commit.")
	patternGenFlag := flagSet.String("pattern-gen", "", "Path to the external migration-pattern generator.")
	dryRunFlag := flagSet.Bool("dryrun", false, "Log intended actions without doing anything.")
	machineIDFlag := flagSet.Int("machineid", app.MachineIDUnset, "Machine for machine-local experiments (can be overridden per experiment).")
	baseIDFlag := flagSet.Int("baseid", app.MachineIDUnset, "First machine for distributed experiments (can be overridden per experiment).")
	buildOnlyFlag := flagSet.Bool("build-only", false, "Only build the experiments' binaries.")
	noBuildFlag := flagSet.Bool("no-build", false, "Do not build the experiments' binaries.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *sweepFlag != "" {
		path = *sweepFlag
	} else if *sFlag != "" {
		path = *sFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		SweepPath:        path,
		ClusterPath:      *clusterPathFlag,
		ServerPrefix:     *serverPrefixFlag,
		Revision:         *revisionFlag,
		PatternGenerator: *patternGenFlag,
		DryRun:           *dryRunFlag,
		BuildOnly:        *buildOnlyFlag,
		NoBuild:          *noBuildFlag,
		MachineID:        *machineIDFlag,
		BaseID:           *baseIDFlag,
		LogFormat:        logFormat,
		LogLevel:         logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
