package sweep

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/sweepbench/internal/ctxlog"
	"github.com/vk/sweepbench/internal/fsutil"
)

// Load finds and parses all sweep files under sweepPath and merges them into
// a single Model. At most one cluster block is allowed across all files;
// experiment blocks are appended in file order.
func Load(ctx context.Context, sweepPath string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("loading sweep definition", "path", sweepPath)

	files, err := fsutil.FindFilesByExtension(sweepPath, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to find sweep files in %s: %w", sweepPath, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl sweep files found in %s", sweepPath)
	}

	model := &Model{}
	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse sweep file %s: %w", file, diags)
		}

		var parsed hclSweepFile
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &parsed); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode sweep file %s: %w", file, diags)
		}

		if parsed.Cluster != nil {
			if model.Cluster != nil {
				return nil, fmt.Errorf("duplicate cluster block in %s: only one cluster block is allowed across all sweep files", file)
			}
			model.Cluster = parsed.Cluster
		}
		model.Experiments = append(model.Experiments, parsed.Experiments...)
	}

	logger.Info("sweep definition loaded", "files", len(files), "experiments", len(model.Experiments))
	return model, nil
}
