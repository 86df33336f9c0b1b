package workload

import (
	"bytes"
	"cmp"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/ckpt-sim/sim"
)

// JobFile is a fixed job stream:
//
//	jobs:
//	  - {id: 0, priority: 1, runtime: 10, release: 0}
type JobFile struct {
	Jobs []sim.JobSpec `yaml:"jobs"`
}

// LoadJobFile reads a fixed job stream and groups it by release tick.
// Uses strict parsing: unrecognized keys (typos) are rejected. Job values are
// checked by the engine when the stream is run.
func LoadJobFile(path string) (map[int64][]sim.JobSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job file: %w", err)
	}
	var file JobFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing job file: %w", err)
	}
	return GroupByRelease(file.Jobs), nil
}

// GroupByRelease keys specs by their release tick, preserving input order
// within a tick.
func GroupByRelease(specs []sim.JobSpec) map[int64][]sim.JobSpec {
	jobs := make(map[int64][]sim.JobSpec)
	for _, s := range specs {
		jobs[s.ReleaseTime] = append(jobs[s.ReleaseTime], s)
	}
	return jobs
}

// Flatten lists every spec ordered by release tick, then by ID.
func Flatten(jobs map[int64][]sim.JobSpec) []sim.JobSpec {
	out := make([]sim.JobSpec, 0)
	for _, specs := range jobs {
		out = append(out, specs...)
	}
	slices.SortFunc(out, func(a, b sim.JobSpec) int {
		if c := cmp.Compare(a.ReleaseTime, b.ReleaseTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
