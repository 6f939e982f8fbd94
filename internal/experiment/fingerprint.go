package experiment

import "strings"

// Fingerprint derives the deterministic storage key for a configuration at a
// given source revision. Parameters are sorted by key, rendered as key=value
// pairs joined with "+", and prefixed with "revision/". The result is used as
// a path segment, so downstream consumers (result directories, plotting)
// depend on this exact encoding.
//
// Known limitation: a value that itself contains "+", "=" or "|" can collide
// with a differently structured configuration. The encoding is kept as-is
// because directory names are parsed back by downstream tooling.
func Fingerprint(revision string, cfg Config) string {
	params := cfg.Params()
	pairs := make([]string, 0, len(params))
	for _, p := range params {
		pairs = append(pairs, p.Key+"="+p.Value.Render())
	}
	return revision + "/" + strings.Join(pairs, "+")
}
