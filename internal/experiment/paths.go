package experiment

import "fmt"

// Well-known file names under the setup and result directories.
const (
	MigrationPatternFile = "migration_pattern"
	HostfileFile         = "hostfile"
	DoneMarkerFile       = "done"
	StdoutFile           = "stdout"
	StderrFile           = "stderr"
)

// Paths resolves every directory and file path derived from a fingerprint and
// a feature-set encoding. All paths are relative to the working directory
// convention; Paths performs no I/O and callers are responsible for creating
// directories before writing.
type Paths struct {
	fingerprint string
	features    string
}

// NewPaths builds a resolver for the given fingerprint and feature encoding.
func NewPaths(fingerprint, featuresEncoded string) Paths {
	return Paths{fingerprint: fingerprint, features: featuresEncoded}
}

// SetupDir is the directory holding per-configuration input files.
func (p Paths) SetupDir() string { return "setups/" + p.fingerprint }

// ResultDir is the directory holding per-configuration output files.
func (p Paths) ResultDir() string { return "results/" + p.fingerprint }

// BuildDir is the build artifact directory. It is keyed by the feature set
// only, so configurations sharing a binary variant share one build.
func (p Paths) BuildDir() string { return "build/" + p.features }

// SetupFile names a file inside the setup directory.
func (p Paths) SetupFile(name string) string {
	return fmt.Sprintf("%s/%s", p.SetupDir(), name)
}

// ResultFile names a per-process file inside the result directory.
func (p Paths) ResultFile(name string, process int) string {
	return fmt.Sprintf("%s/%s.%d", p.ResultDir(), name, process)
}

// MigrationPattern is the path of the persisted migration pattern.
func (p Paths) MigrationPattern() string { return p.SetupFile(MigrationPatternFile) }

// Hostfile is the path of the persisted process topology.
func (p Paths) Hostfile() string { return p.SetupFile(HostfileFile) }

// DoneMarker is the completion sentinel. Its presence means the results in
// ResultDir are valid and the experiment must not be re-run.
func (p Paths) DoneMarker() string {
	return fmt.Sprintf("%s/%s", p.ResultDir(), DoneMarkerFile)
}
