package experiment

import (
	"fmt"
	"sort"
	"strings"
)

// Features returns the build-time feature flags selected by the
// configuration. Features select which binary variant must be built, as
// opposed to runtime parameters.
func (c Config) Features() []string {
	features := []string{fmt.Sprintf("dynamic_scaling_mechanism/bin-%d", c.BinShift)}
	if c.FakeStateful {
		features = append(features, "fake_stateful")
	}
	return features
}

// FeaturesEncoded returns the feature set as a single path-safe segment:
// sorted, with "/" escaped to "@", joined with "+". Distinct feature sets
// always map to distinct encodings so binary variants never share a build
// directory.
func (c Config) FeaturesEncoded() string {
	features := c.Features()
	sort.Strings(features)
	escaped := make([]string, 0, len(features))
	for _, f := range features {
		escaped = append(escaped, strings.ReplaceAll(f, "/", "@"))
	}
	return strings.Join(escaped, "+")
}
