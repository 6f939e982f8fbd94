package coordinator

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vk/sweepbench/internal/experiment"
	"github.com/vk/sweepbench/internal/topology"
)

// metaFile is the human-readable result manifest written next to the
// completion marker.
const metaFile = "meta.yaml"

type manifestParam struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type manifest struct {
	Name        string          `yaml:"name"`
	Revision    string          `yaml:"revision"`
	Fingerprint string          `yaml:"fingerprint"`
	Features    []string        `yaml:"features"`
	Config      []manifestParam `yaml:"config"`
	Topology    []string        `yaml:"topology"`
	Processes   int             `yaml:"processes"`
	Workers     int             `yaml:"workers"`
	ProcessRate int             `yaml:"process_rate"`
	CompletedAt time.Time       `yaml:"completed_at"`
}

// writeManifest records the completed experiment's identity and topology in
// the result directory, immediately before the completion marker.
func writeManifest(path string, exp *experiment.Experiment, topo *topology.Topology, now time.Time) error {
	cfg := exp.Config()

	params := cfg.Params()
	config := make([]manifestParam, 0, len(params))
	for _, p := range params {
		config = append(config, manifestParam{Key: p.Key, Value: p.Value.Render()})
	}

	endpoints := make([]string, 0, topo.Processes())
	for p := 0; p < topo.Processes(); p++ {
		endpoints = append(endpoints, topo.Endpoint(p).String())
	}

	m := manifest{
		Name:        exp.Name(),
		Revision:    exp.Revision(),
		Fingerprint: exp.Fingerprint(),
		Features:    cfg.Features(),
		Config:      config,
		Topology:    endpoints,
		Processes:   cfg.Processes,
		Workers:     cfg.Workers,
		ProcessRate: exp.ProcessRate(),
		CompletedAt: now.UTC(),
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
