// Package gitrev resolves the current source revision, which keys every
// configuration fingerprint.
package gitrev

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Current returns the abbreviated hash of the checked-out commit.
func Current(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "", fmt.Errorf("resolving current revision: %w", err)
	}
	rev := strings.TrimSpace(string(out))
	if rev == "" {
		return "", fmt.Errorf("git rev-parse returned an empty revision")
	}
	return rev, nil
}
