// Package experiment defines the closed configuration type for one sweep
// point and everything derived purely from it: the deterministic
// configuration fingerprint, the build feature set, and all setup, build and
// result paths.
package experiment

// Experiment is one fully resolved configuration point of a sweep. It is
// immutable once constructed; the fingerprint and paths are fixed at
// construction so every consumer sees the same identity.
type Experiment struct {
	name        string
	revision    string
	config      Config
	fingerprint string
	paths       Paths
}

// New validates the configuration and derives the experiment's identity.
// Validation failures are ConfigErrors and indicate a defect in the sweep
// definition.
func New(name, revision string, cfg Config) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fp := Fingerprint(revision, cfg)
	return &Experiment{
		name:        name,
		revision:    revision,
		config:      cfg,
		fingerprint: fp,
		paths:       NewPaths(fp, cfg.FeaturesEncoded()),
	}, nil
}

// Name is the sweep family name. It does not contribute to the fingerprint.
func (e *Experiment) Name() string { return e.name }

// Revision is the source revision the fingerprint is keyed under.
func (e *Experiment) Revision() string { return e.revision }

// Config returns the experiment's configuration.
func (e *Experiment) Config() Config { return e.config }

// Fingerprint is the deterministic storage key of this configuration.
func (e *Experiment) Fingerprint() string { return e.fingerprint }

// Paths resolves all paths derived from this experiment's identity.
func (e *Experiment) Paths() Paths { return e.paths }

// ProcessRate is the input rate assigned to each process. The division
// truncates: per-process rates are meant to sum approximately to the
// requested total, not exactly.
func (e *Experiment) ProcessRate() int {
	return e.config.Rate / (e.config.Processes * e.config.Workers)
}
